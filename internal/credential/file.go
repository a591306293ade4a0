package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// FileName is the credential file inside the config directory
	FileName = "credentials.json"

	dirMode  fs.FileMode = 0o700
	fileMode fs.FileMode = 0o600
)

// fileContents maps normalized server URLs to their credential
type fileContents map[string]*Credential

// FileStore keeps credentials in a JSON file readable only by the owner.
// One file serves every server; each FileStore reads and writes its own entry.
type FileStore struct {
	path   string
	server string
	now    func() time.Time
	mu     sync.Mutex
}

// NewFileStore returns a store for server backed by dir/credentials.json
func NewFileStore(dir, server string) (*FileStore, error) {
	key, err := NormalizeServer(server)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return nil, errors.New("config directory is required")
	}
	return &FileStore{
		path:   filepath.Join(dir, FileName),
		server: key,
		now:    time.Now,
	}, nil
}

// Path returns the credential file location
func (s *FileStore) Path() string {
	return s.path
}

// Save implements Store
func (s *FileStore) Save(ctx context.Context, cred *Credential) error {
	if err := validate(cred, s.server); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := s.read()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if contents == nil {
		contents = fileContents{}
	}

	stored := *cred
	stored.Server = s.server
	if stored.SavedAt.IsZero() {
		stored.SavedAt = s.now().UTC()
	}
	contents[s.server] = &stored
	return s.write(contents)
}

// Load implements Store
func (s *FileStore) Load(ctx context.Context) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := s.read()
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	cred, ok := contents[s.server]
	if !ok || cred == nil || cred.AccessToken == "" {
		return nil, ErrNotFound
	}
	return cred, nil
}

// Clear implements Store
func (s *FileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := s.read()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, ok := contents[s.server]; !ok {
		return nil
	}
	delete(contents, s.server)
	if len(contents) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("removing credential file: %w", err)
		}
		return nil
	}
	return s.write(contents)
}

func (s *FileStore) read() (fileContents, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, err
	}
	if info.Mode().Perm()&0o077 != 0 {
		return nil, fmt.Errorf("%w: %s has mode %s, want %s", ErrInsecurePermissions, s.path, info.Mode().Perm(), fileMode)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading credential file: %w", err)
	}
	var contents fileContents
	if err := json.Unmarshal(data, &contents); err != nil {
		return nil, fmt.Errorf("decoding credential file %s: %w", s.path, err)
	}
	return contents, nil
}

// write replaces the file atomically via a temp file in the same directory
func (s *FileStore) write(contents fileContents) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(contents, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		return fmt.Errorf("setting credential file mode: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing credential file: %w", err)
	}
	return nil
}
