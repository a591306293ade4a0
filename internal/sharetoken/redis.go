package sharetoken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wrale/sitepub/internal/expiry"
)

const (
	tokenPrefix   = "sharetoken:"
	projectPrefix = "sharetoken:project:"
	secretPrefix  = "sharetoken:secret:"

	// Records are kept this long past expiry so listings still show expired tokens
	retention = 30 * 24 * time.Hour
)

// revokeScript performs revoke-if-not-already-revoked in one atomic step.
// Returns 0 when the token is missing or in another project, 1 when this call
// revoked it and 2 when it was already revoked.
var revokeScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'project_id') ~= ARGV[1] then
	return 0
end
if redis.call('HSETNX', KEYS[1], 'revoked_at', ARGV[2]) == 1 then
	return 1
end
return 2
`)

// RedisStore implements the Store interface using Redis hashes
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// CheckHealth verifies Redis connectivity
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// SaveShareToken stores a token hash, its project index entry and its secret lookup
func (s *RedisStore) SaveShareToken(ctx context.Context, token *ShareToken) error {
	key := tokenPrefix + token.ID
	ttl := time.Until(token.ExpiresAt) + retention
	if ttl <= 0 {
		ttl = retention
	}

	// Claim the id first so a colliding id never overwrites an existing record
	ok, err := s.client.HSetNX(ctx, key, "id", token.ID).Result()
	if err != nil {
		return fmt.Errorf("claiming share token id: %w", err)
	}
	if !ok {
		return ErrDuplicateID
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"project_id":  token.ProjectID,
		"name":        token.Name,
		"duration":    string(token.Duration),
		"created_at":  token.CreatedAt.UTC().Format(time.RFC3339Nano),
		"expires_at":  token.ExpiresAt.UTC().Format(time.RFC3339Nano),
		"secret_hash": token.SecretHash,
	})
	pipe.Expire(ctx, key, ttl)
	pipe.ZAdd(ctx, projectPrefix+token.ProjectID, redis.Z{
		Score:  float64(token.CreatedAt.UnixMilli()),
		Member: token.ID,
	})
	pipe.Set(ctx, secretPrefix+token.SecretHash, token.ID, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		// Release the claimed id; a leftover index entry is pruned on listing
		if delErr := s.client.Del(context.WithoutCancel(ctx), key, secretPrefix+token.SecretHash).Err(); delErr != nil {
			return fmt.Errorf("saving share token: %w (releasing id: %v)", err, delErr)
		}
		return fmt.Errorf("saving share token: %w", err)
	}
	return nil
}

// GetShareToken retrieves a token of the project
func (s *RedisStore) GetShareToken(ctx context.Context, projectID, id string) (*ShareToken, error) {
	token, err := s.getByID(ctx, id)
	if err != nil || token == nil {
		return nil, err
	}
	if token.ProjectID != projectID {
		return nil, nil
	}
	return token, nil
}

// ListShareTokens returns the project's tokens ordered by creation time
func (s *RedisStore) ListShareTokens(ctx context.Context, projectID string) ([]*ShareToken, error) {
	indexKey := projectPrefix + projectID
	ids, err := s.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("listing share token ids: %w", err)
	}

	tokens := make([]*ShareToken, 0, len(ids))
	var stale []any
	for _, id := range ids {
		token, err := s.getByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if token == nil {
			// Record aged out past retention
			stale = append(stale, id)
			continue
		}
		tokens = append(tokens, token)
	}

	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, indexKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("pruning share token index: %w", err)
		}
	}
	return tokens, nil
}

// RevokeShareToken atomically sets revoked_at if it is not already set
func (s *RedisStore) RevokeShareToken(ctx context.Context, projectID, id string, at time.Time) (*ShareToken, bool, error) {
	res, err := revokeScript.Run(ctx, s.client,
		[]string{tokenPrefix + id},
		projectID, at.UTC().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return nil, false, fmt.Errorf("revoking share token: %w", err)
	}
	if res == 0 {
		return nil, false, nil
	}

	token, err := s.getByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return token, res == 1, nil
}

// GetShareTokenBySecretHash resolves a secret hash to its token
func (s *RedisStore) GetShareTokenBySecretHash(ctx context.Context, secretHash string) (*ShareToken, error) {
	id, err := s.client.Get(ctx, secretPrefix+secretHash).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting secret reference: %w", err)
	}
	return s.getByID(ctx, id)
}

func (s *RedisStore) getByID(ctx context.Context, id string) (*ShareToken, error) {
	fields, err := s.client.HGetAll(ctx, tokenPrefix+id).Result()
	if err != nil {
		return nil, fmt.Errorf("getting share token: %w", err)
	}
	// A record without project_id is missing or still being claimed
	if len(fields) == 0 || fields["project_id"] == "" {
		return nil, nil
	}
	return decodeHash(fields)
}

func decodeHash(fields map[string]string) (*ShareToken, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, fields["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}

	token := &ShareToken{
		ID:         fields["id"],
		ProjectID:  fields["project_id"],
		Name:       fields["name"],
		Duration:   expiry.Duration(fields["duration"]),
		CreatedAt:  createdAt,
		ExpiresAt:  expiresAt,
		SecretHash: fields["secret_hash"],
	}

	if v, ok := fields["revoked_at"]; ok && v != "" {
		revokedAt, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("parsing revoked_at: %w", err)
		}
		token.RevokedAt = &revokedAt
	}
	return token, nil
}
