package project

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const namePrefix = "project:name:"

// RedisStore implements the Store interface using Redis
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed project store
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

// CreateProject stores a project only if its name is free
func (s *RedisStore) CreateProject(ctx context.Context, p *Project) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling project: %w", err)
	}
	ok, err := s.client.SetNX(ctx, namePrefix+p.Name, data, 0).Result()
	if err != nil {
		return fmt.Errorf("saving project: %w", err)
	}
	if !ok {
		return ErrNameTaken
	}
	return nil
}

// UpdateProject overwrites an existing project record
func (s *RedisStore) UpdateProject(ctx context.Context, p *Project) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling project: %w", err)
	}
	ok, err := s.client.SetXX(ctx, namePrefix+p.Name, data, 0).Result()
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// GetProjectByName retrieves a project by name
func (s *RedisStore) GetProjectByName(ctx context.Context, name string) (*Project, error) {
	data, err := s.client.Get(ctx, namePrefix+name).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting project: %w", err)
	}

	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshaling project: %w", err)
	}
	return &p, nil
}
