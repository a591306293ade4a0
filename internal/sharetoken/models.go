package sharetoken

import (
	"time"

	"github.com/wrale/sitepub/internal/expiry"
)

// ShareToken is the persisted metadata of a preview share token.
// ExpiresAt is fixed at creation; expired and active states are derived at read time.
type ShareToken struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	Name      string          `json:"name"`
	Duration  expiry.Duration `json:"duration"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	RevokedAt *time.Time      `json:"revoked_at"`

	// SHA-256 of the secret, hex encoded. Never leaves the service.
	SecretHash string `json:"-"`
}

// IsRevoked reports whether the token was explicitly revoked
func (t *ShareToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsExpired reports whether now has reached the token's expiry, regardless of revocation
func (t *ShareToken) IsExpired(now time.Time) bool {
	return expiry.IsExpired(t.ExpiresAt, now)
}

// IsActive reports whether the token still grants preview access at now
func (t *ShareToken) IsActive(now time.Time) bool {
	return !t.IsRevoked() && !t.IsExpired(now)
}

// View returns the API representation of the token evaluated at now
func (t *ShareToken) View(now time.Time) View {
	return View{
		ID:        t.ID,
		ProjectID: t.ProjectID,
		Name:      t.Name,
		Duration:  t.Duration,
		CreatedAt: t.CreatedAt,
		ExpiresAt: t.ExpiresAt,
		IsRevoked: t.IsRevoked(),
		RevokedAt: t.RevokedAt,
		IsExpired: t.IsExpired(now),
		IsActive:  t.IsActive(now),
	}
}

// View is the share token metadata returned by list, revoke and create.
// It has no field capable of carrying the secret.
type View struct {
	ID        string          `json:"id"`
	ProjectID string          `json:"project_id"`
	Name      string          `json:"name"`
	Duration  expiry.Duration `json:"duration"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	IsRevoked bool            `json:"is_revoked"`
	RevokedAt *time.Time      `json:"revoked_at"`
	IsExpired bool            `json:"is_expired"`
	IsActive  bool            `json:"is_active"`
}

// CreateResult is the only shape that carries the raw secret
type CreateResult struct {
	ShareToken View   `json:"share_token"`
	Token      string `json:"token"`
	ShareURL   string `json:"share_url"`
}

// ListResult wraps a project's share tokens
type ListResult struct {
	ShareTokens []View `json:"share_tokens"`
}

// RevokeResult wraps the revoked token
type RevokeResult struct {
	ShareToken View `json:"share_token"`
}

// Scope identifies the project a token is created for and how its previews are served
type Scope struct {
	ProjectID   string
	ProjectName string
	// WWW publishes at the root of the preview domain instead of under /{ProjectName}
	WWW bool
}
