// Package oauth validates the bearer credentials presented to the publishing service
package oauth

import (
	"context"
	"errors"
	"time"
)

// Common errors returned by authenticators
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrProviderUnavailable = errors.New("oauth provider unavailable")
)

// TokenInfo is the RFC 7662 introspection response of an active token
type TokenInfo struct {
	Active    bool   `json:"active"`
	Subject   string `json:"sub"`
	ClientID  string `json:"client_id"`
	Username  string `json:"username,omitempty"`
	Scope     string `json:"scope,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
	Issuer    string `json:"iss,omitempty"`
}

// Owner returns the identity projects are registered under
func (i *TokenInfo) Owner() string {
	if i.Subject != "" {
		return i.Subject
	}
	return i.Username
}

// Expired reports whether the token's exp claim has passed. Tokens without exp never expire here.
func (i *TokenInfo) Expired(now time.Time) bool {
	return i.ExpiresAt != 0 && !now.Before(time.Unix(i.ExpiresAt, 0))
}

// Authenticator validates bearer credentials
type Authenticator interface {
	// ValidateToken returns the token's info, or ErrInvalidToken / ErrTokenExpired
	ValidateToken(ctx context.Context, token string) (*TokenInfo, error)

	// CheckHealth verifies the provider is accessible
	CheckHealth(ctx context.Context) error
}

// Config holds introspection client configuration
type Config struct {
	IntrospectionURL string
	ClientID         string
	ClientSecret     string
	// HealthURL is probed by CheckHealth. Empty skips the probe.
	HealthURL string
	Timeout   time.Duration
}
