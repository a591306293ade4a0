package sharetoken

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wrale/sitepub/internal/sqlitedb"
)

// ErrStoreUnhealthy indicates the store is not available
var ErrStoreUnhealthy = errors.New("store unhealthy")

// mockStore implements Store in memory for service tests
type mockStore struct {
	mu      sync.Mutex
	tokens  map[string]*ShareToken
	saves   int
	healthy bool
}

func newMockStore() *mockStore {
	return &mockStore{
		tokens:  make(map[string]*ShareToken),
		healthy: true,
	}
}

func (m *mockStore) SaveShareToken(ctx context.Context, token *ShareToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.healthy {
		return ErrStoreUnhealthy
	}
	if _, exists := m.tokens[token.ID]; exists {
		return ErrDuplicateID
	}
	cp := *token
	m.tokens[token.ID] = &cp
	m.saves++
	return nil
}

func (m *mockStore) GetShareToken(ctx context.Context, projectID, id string) (*ShareToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.healthy {
		return nil, ErrStoreUnhealthy
	}
	token, exists := m.tokens[id]
	if !exists || token.ProjectID != projectID {
		return nil, nil
	}
	cp := *token
	return &cp, nil
}

func (m *mockStore) ListShareTokens(ctx context.Context, projectID string) ([]*ShareToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.healthy {
		return nil, ErrStoreUnhealthy
	}
	var out []*ShareToken
	for _, token := range m.tokens {
		if token.ProjectID == projectID {
			cp := *token
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *mockStore) RevokeShareToken(ctx context.Context, projectID, id string, at time.Time) (*ShareToken, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.healthy {
		return nil, false, ErrStoreUnhealthy
	}
	token, exists := m.tokens[id]
	if !exists || token.ProjectID != projectID {
		return nil, false, nil
	}
	changed := false
	if token.RevokedAt == nil {
		revokedAt := at
		token.RevokedAt = &revokedAt
		changed = true
	}
	cp := *token
	return &cp, changed, nil
}

func (m *mockStore) GetShareTokenBySecretHash(ctx context.Context, secretHash string) (*ShareToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.healthy {
		return nil, ErrStoreUnhealthy
	}
	for _, token := range m.tokens {
		if token.SecretHash == secretHash {
			cp := *token
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockStore) CheckHealth(ctx context.Context) error {
	if !m.healthy {
		return ErrStoreUnhealthy
	}
	return nil
}

// fakeClock is a settable time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// storeFactories returns one constructor per real backend
func storeFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return NewRedisStore(client)
		},
		"sqlite": func(t *testing.T) Store {
			db, err := sqlitedb.Open(filepath.Join(t.TempDir(), "sharetoken.db"))
			if err != nil {
				t.Fatalf("opening sqlite: %v", err)
			}
			t.Cleanup(func() { _ = db.Close() })
			return NewSQLiteStore(db)
		},
	}
}
