package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zalando/go-keyring"
)

// KeyringService is the OS keyring service name credentials are stored under
const KeyringService = "sitepub"

// KeyringStore keeps the credential in the OS keyring (macOS Keychain,
// Windows Credential Manager, Secret Service on Linux), keyed by server URL
type KeyringStore struct {
	server string
	now    func() time.Time
}

// NewKeyringStore returns a keyring-backed store for server
func NewKeyringStore(server string) (*KeyringStore, error) {
	key, err := NormalizeServer(server)
	if err != nil {
		return nil, err
	}
	return &KeyringStore{server: key, now: time.Now}, nil
}

// Save implements Store
func (s *KeyringStore) Save(ctx context.Context, cred *Credential) error {
	if err := validate(cred, s.server); err != nil {
		return err
	}
	stored := *cred
	stored.Server = s.server
	if stored.SavedAt.IsZero() {
		stored.SavedAt = s.now().UTC()
	}

	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}
	if err := keyring.Set(KeyringService, s.server, string(data)); err != nil {
		return fmt.Errorf("writing keyring: %w", err)
	}
	return nil
}

// Load implements Store
func (s *KeyringStore) Load(ctx context.Context) (*Credential, error) {
	secret, err := keyring.Get(KeyringService, s.server)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading keyring: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal([]byte(secret), &cred); err != nil {
		return nil, fmt.Errorf("decoding keyring entry: %w", err)
	}
	if cred.AccessToken == "" {
		return nil, ErrNotFound
	}
	return &cred, nil
}

// Clear implements Store
func (s *KeyringStore) Clear(ctx context.Context) error {
	err := keyring.Delete(KeyringService, s.server)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("deleting keyring entry: %w", err)
	}
	return nil
}
