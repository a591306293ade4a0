// Package auth authenticates API requests by bearer credential
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/wrale/sitepub/cmd/sitepub-server/handlers/common"
	"github.com/wrale/sitepub/internal/oauth"
)

type contextKey struct{}

// Middleware validates the Authorization header and stores the token info in the request context
type Middleware struct {
	authenticator oauth.Authenticator
	logger        *zap.Logger
}

// New creates the authentication middleware
func New(authenticator oauth.Authenticator, logger *zap.Logger) *Middleware {
	return &Middleware{authenticator: authenticator, logger: logger}
}

// Handler wraps next, rejecting requests without a valid bearer credential
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			unauthorized(w, "Bearer credential required")
			return
		}

		info, err := m.authenticator.ValidateToken(r.Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, oauth.ErrTokenExpired):
			unauthorized(w, "Credential expired, run sitepub login")
			return
		case errors.Is(err, oauth.ErrInvalidToken):
			unauthorized(w, "Credential not recognized, run sitepub login")
			return
		default:
			m.logger.Warn("token validation failed", zap.Error(err))
			common.WriteError(w, http.StatusServiceUnavailable, common.ErrorCodeUnavailable,
				"Unable to validate credential")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithTokenInfo(r.Context(), info)))
	})
}

// BearerToken extracts the credential from an Authorization: Bearer header
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithTokenInfo returns a context carrying info
func WithTokenInfo(ctx context.Context, info *oauth.TokenInfo) context.Context {
	return context.WithValue(ctx, contextKey{}, info)
}

// TokenInfo returns the authenticated caller, or nil
func TokenInfo(ctx context.Context) *oauth.TokenInfo {
	info, _ := ctx.Value(contextKey{}).(*oauth.TokenInfo)
	return info
}

// Owner returns the authenticated caller's identity, or ""
func Owner(ctx context.Context) string {
	if info := TokenInfo(ctx); info != nil {
		return info.Owner()
	}
	return ""
}

func unauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	common.WriteError(w, http.StatusUnauthorized, common.ErrorCodeInvalidToken, description)
}
