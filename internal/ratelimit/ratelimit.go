// Package ratelimit counts events per key over a sliding window
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rate:"

// Limiter tracks events per key and reports when a key has used up its window
type Limiter interface {
	// Exceeded reports whether key has reached the limit within the window
	Exceeded(ctx context.Context, key string) (bool, error)

	// Record adds one event for key
	Record(ctx context.Context, key string) error

	// Window is how long an event counts against its key
	Window() time.Duration
}

// Config sets the limit and its window
type Config struct {
	Limit  int
	Window time.Duration
}

// RedisLimiter keeps one sorted set of event timestamps per key
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
	now    func() time.Time
	seq    atomic.Uint64
}

// NewRedisLimiter creates a Redis-backed sliding window limiter
func NewRedisLimiter(client *redis.Client, cfg Config) *RedisLimiter {
	return &RedisLimiter{client: client, cfg: cfg, now: time.Now}
}

// Exceeded implements Limiter
func (l *RedisLimiter) Exceeded(ctx context.Context, key string) (bool, error) {
	now := l.now()
	min := strconv.FormatInt(now.Add(-l.cfg.Window).UnixMilli(), 10)
	max := strconv.FormatInt(now.UnixMilli(), 10)

	count, err := l.client.ZCount(ctx, keyPrefix+key, min, max).Result()
	if err != nil {
		return false, fmt.Errorf("counting events: %w", err)
	}
	return int(count) >= l.cfg.Limit, nil
}

// Window implements Limiter
func (l *RedisLimiter) Window() time.Duration { return l.cfg.Window }

// Record implements Limiter
func (l *RedisLimiter) Record(ctx context.Context, key string) error {
	now := l.now().UnixMilli()
	member := strconv.FormatInt(now, 10) + "-" + strconv.FormatUint(l.seq.Add(1), 10)

	pipe := l.client.TxPipeline()
	pipe.ZAdd(ctx, keyPrefix+key, redis.Z{Score: float64(now), Member: member})
	pipe.ZRemRangeByScore(ctx, keyPrefix+key, "-inf", "("+strconv.FormatInt(now-l.cfg.Window.Milliseconds(), 10))
	pipe.Expire(ctx, keyPrefix+key, l.cfg.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	return nil
}

// MemoryLimiter is a process-local Limiter for single-instance deployments
type MemoryLimiter struct {
	cfg    Config
	now    func() time.Time
	mu     sync.Mutex
	events map[string][]time.Time
}

// NewMemoryLimiter creates an in-process sliding window limiter
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{cfg: cfg, now: time.Now, events: make(map[string][]time.Time)}
}

// Exceeded implements Limiter
func (l *MemoryLimiter) Exceeded(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prune(key)) >= l.cfg.Limit, nil
}

// Window implements Limiter
func (l *MemoryLimiter) Window() time.Duration { return l.cfg.Window }

// Record implements Limiter
func (l *MemoryLimiter) Record(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events[key] = append(l.prune(key), l.now())
	return nil
}

// prune drops events older than the window. Callers hold mu.
func (l *MemoryLimiter) prune(key string) []time.Time {
	cutoff := l.now().Add(-l.cfg.Window)
	events := l.events[key]
	i := 0
	for i < len(events) && events[i].Before(cutoff) {
		i++
	}
	events = events[i:]
	if len(events) == 0 {
		delete(l.events, key)
		return nil
	}
	l.events[key] = events
	return events
}
