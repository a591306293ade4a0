// Package sharetoken issues, lists and revokes project-scoped preview share tokens
package sharetoken

import (
	"context"
	"time"
)

// Store defines the persistence interface for share tokens
type Store interface {
	// SaveShareToken persists a new token. It fails with ErrDuplicateID if the id exists.
	SaveShareToken(ctx context.Context, token *ShareToken) error

	// GetShareToken returns a token of the project, or nil if it does not exist there
	GetShareToken(ctx context.Context, projectID, id string) (*ShareToken, error)

	// ListShareTokens returns all tokens of the project ordered by creation time
	ListShareTokens(ctx context.Context, projectID string) ([]*ShareToken, error)

	// RevokeShareToken sets revoked_at only if it is not already set. It returns the stored
	// record and whether this call performed the revocation; nil if the token does not exist
	// in the project.
	RevokeShareToken(ctx context.Context, projectID, id string, at time.Time) (*ShareToken, bool, error)

	// GetShareTokenBySecretHash resolves a secret hash to its token, or nil if unknown
	GetShareTokenBySecretHash(ctx context.Context, secretHash string) (*ShareToken, error)

	// CheckHealth verifies the storage backend is reachable
	CheckHealth(ctx context.Context) error
}
