package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/wrale/sitepub/internal/project"
	"github.com/wrale/sitepub/internal/ratelimit"
	"github.com/wrale/sitepub/internal/sharetoken"
	"github.com/wrale/sitepub/internal/sqlitedb"
)

// backend bundles the stores of the configured storage technology
type backend struct {
	tokens   sharetoken.Store
	projects project.Store
	limiter  ratelimit.Limiter
	close    func() error
}

func openBackend(ctx context.Context, cfg Config, logger *zap.Logger) (*backend, error) {
	limits := ratelimit.Config{Limit: cfg.PreviewAttemptLimit, Window: cfg.PreviewAttemptWindow}

	switch cfg.Store {
	case storeSQLite:
		db, err := sqlitedb.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite database: %w", err)
		}
		logger.Info("using sqlite store", zap.String("path", cfg.SQLitePath))
		return &backend{
			tokens:   sharetoken.NewSQLiteStore(db),
			projects: project.NewSQLiteStore(db),
			limiter:  ratelimit.NewMemoryLimiter(limits),
			close:    db.Close,
		}, nil

	default:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing Redis URL: %w", err)
		}
		client := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connecting to Redis: %w", err)
		}
		logger.Info("using redis store", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
		return &backend{
			tokens:   sharetoken.NewRedisStore(client),
			projects: project.NewRedisStore(client),
			limiter:  ratelimit.NewRedisLimiter(client, limits),
			close:    client.Close,
		}, nil
	}
}
