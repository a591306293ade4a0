// Package preview checks whether a request may view a published project
package preview

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wrale/sitepub/cmd/sitepub-server/handlers/auth"
	"github.com/wrale/sitepub/cmd/sitepub-server/handlers/common"
	"github.com/wrale/sitepub/internal/metrics"
	"github.com/wrale/sitepub/internal/project"
	"github.com/wrale/sitepub/internal/ratelimit"
	"github.com/wrale/sitepub/internal/sharetoken"
	"github.com/wrale/sitepub/internal/validation"
)

// Projects looks up projects by name regardless of owner
type Projects interface {
	Lookup(ctx context.Context, name string) (*project.Project, error)
}

// Authorizer resolves a share token secret for a project
type Authorizer interface {
	Authorize(ctx context.Context, projectID, secret string) (*sharetoken.ShareToken, error)
}

// Response describes the granted access
type Response struct {
	Project    string     `json:"project"`
	Visibility string     `json:"visibility"`
	Access     string     `json:"access"`
	TokenID    string     `json:"share_token_id,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// Handler serves GET /preview/{project}
type Handler struct {
	projects Projects
	tokens   Authorizer
	limiter  ratelimit.Limiter
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// New creates the preview access handler. Failed token attempts are counted per
// client address in limiter.
func New(projects Projects, tokens Authorizer, limiter ratelimit.Limiter, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{projects: projects, tokens: tokens, limiter: limiter, metrics: m, logger: logger}
}

// ServeHTTP grants access to public projects, and to private ones with an active share token
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	client := clientKey(r)

	exceeded, err := h.limiter.Exceeded(ctx, client)
	if err != nil {
		h.logger.Warn("rate limit check failed", zap.Error(err))
	}
	if exceeded {
		h.metrics.RecordPreviewAuthorization("rate_limited")
		w.Header().Set("Retry-After", retryAfter(h.limiter.Window()))
		common.WriteError(w, http.StatusTooManyRequests, common.ErrorCodeTooManyRequests,
			"Too many failed share token attempts")
		return
	}

	p, err := h.projects.Lookup(ctx, chi.URLParam(r, "project"))
	if err != nil {
		common.WriteServiceError(w, h.logger, err)
		return
	}

	secret := r.URL.Query().Get(sharetoken.SecretQueryParam)
	if secret == "" {
		secret, _ = auth.BearerToken(r)
	}

	if secret == "" {
		if p.Visibility == validation.VisibilityPublic {
			h.metrics.RecordPreviewAuthorization("public")
			common.WriteJSON(w, http.StatusOK, Response{Project: p.Name, Visibility: p.Visibility, Access: "public"})
			return
		}
		h.metrics.RecordPreviewAuthorization("missing")
		w.Header().Set("WWW-Authenticate", `Bearer realm="preview"`)
		common.WriteError(w, http.StatusUnauthorized, common.ErrorCodeInvalidToken, "Share token required")
		return
	}

	token, err := h.tokens.Authorize(ctx, p.ID, secret)
	if err != nil {
		h.reject(w, r, client, err)
		return
	}

	h.metrics.RecordPreviewAuthorization("granted")
	expiresAt := token.ExpiresAt
	common.WriteJSON(w, http.StatusOK, Response{
		Project:    p.Name,
		Visibility: p.Visibility,
		Access:     "share_token",
		TokenID:    token.ID,
		ExpiresAt:  &expiresAt,
	})
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request, client string, err error) {
	var code, description, result string
	switch {
	case errors.Is(err, sharetoken.ErrRevoked):
		code, description, result = common.ErrorCodeTokenRevoked, "Share token has been revoked", "revoked"
	case errors.Is(err, sharetoken.ErrExpired):
		code, description, result = common.ErrorCodeTokenExpired, "Share token has expired", "expired"
	case errors.Is(err, sharetoken.ErrNotFound):
		code, description, result = common.ErrorCodeInvalidToken, "Share token not recognized", "unknown"
		if recErr := h.limiter.Record(r.Context(), client); recErr != nil {
			h.logger.Warn("recording failed attempt", zap.Error(recErr))
		}
	default:
		common.WriteServiceError(w, h.logger, err)
		return
	}

	h.metrics.RecordPreviewAuthorization(result)
	w.Header().Set("WWW-Authenticate", `Bearer realm="preview", error="invalid_token"`)
	common.WriteError(w, http.StatusUnauthorized, code, description)
}

// retryAfter is the limiter window in whole seconds, the longest a client may
// wait before its oldest failed attempt stops counting
func retryAfter(window time.Duration) string {
	return strconv.Itoa(max(1, int(math.Ceil(window.Seconds()))))
}

// clientKey identifies the caller for rate limiting. RemoteAddr is already
// rewritten by the RealIP middleware when behind a proxy.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "preview:" + r.RemoteAddr
	}
	return "preview:" + host
}
