// Package credential persists the CLI's access credential per publishing server.
package credential

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Errors returned by credential stores
var (
	// ErrNotFound indicates no credential is stored for the server
	ErrNotFound = errors.New("no stored credential")

	// ErrInsecurePermissions indicates the credential file is readable by other users
	ErrInsecurePermissions = errors.New("credential file permissions are too open")
)

// Credential is an opaque bearer credential scoped to one server
type Credential struct {
	Server      string    `json:"server"`
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type,omitempty"`
	Scope       string    `json:"scope,omitempty"`
	SavedAt     time.Time `json:"saved_at"`
}

// Token returns the credential as an OAuth2 bearer token
func (c *Credential) Token() *oauth2.Token {
	tokenType := c.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{AccessToken: c.AccessToken, TokenType: tokenType}
}

// Store holds the credential for a single server
type Store interface {
	// Save replaces any stored credential for the server
	Save(ctx context.Context, cred *Credential) error

	// Load returns the stored credential or ErrNotFound
	Load(ctx context.Context) (*Credential, error)

	// Clear removes the stored credential. Clearing an absent credential succeeds.
	Clear(ctx context.Context) error
}

// NormalizeServer reduces a server URL to the key credentials are stored under
func NormalizeServer(server string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(server))
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: scheme and host are required", server)
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + strings.TrimSuffix(u.Path, "/"), nil
}

func validate(cred *Credential, server string) error {
	if cred == nil || cred.AccessToken == "" {
		return errors.New("credential has no access token")
	}
	if cred.Server != "" && cred.Server != server {
		if normalized, err := NormalizeServer(cred.Server); err != nil || normalized != server {
			return fmt.Errorf("credential is for %q, store is for %q", cred.Server, server)
		}
	}
	return nil
}
