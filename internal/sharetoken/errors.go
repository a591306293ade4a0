package sharetoken

import "errors"

// Errors returned by the share token service
var (
	// ErrNotFound indicates the token does not exist or belongs to another project
	ErrNotFound = errors.New("share token not found")

	// ErrRevoked indicates the token was revoked and no longer grants access
	ErrRevoked = errors.New("share token revoked")

	// ErrExpired indicates the token reached its expiry
	ErrExpired = errors.New("share token expired")

	// ErrDuplicateID indicates a generated identifier collided with a stored one
	ErrDuplicateID = errors.New("share token id already exists")
)
