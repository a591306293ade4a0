// Command sitepub-server hosts project registration, share-token management and
// preview access checks for published sites
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/wrale/sitepub/internal/logging"
	"github.com/wrale/sitepub/internal/metrics"
	"github.com/wrale/sitepub/internal/oauth"
	"github.com/wrale/sitepub/internal/project"
	"github.com/wrale/sitepub/internal/sharetoken"
)

// Version is set by the build process
var Version = "dev"

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel).With(zap.String("version", Version))
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := be.close(); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
	}()

	authenticator, err := oauth.NewIntrospector(oauth.Config{
		IntrospectionURL: cfg.IntrospectionURL,
		ClientID:         cfg.IntrospectionClientID,
		ClientSecret:     cfg.IntrospectionClientSecret,
		HealthURL:        cfg.AuthHealthURL,
	})
	if err != nil {
		return fmt.Errorf("configuring authenticator: %w", err)
	}

	srv := newServer(cfg, dependencies{
		projects: project.NewService(be.projects, logger.Named("projects")),
		tokens: sharetoken.NewService(be.tokens, cfg.PreviewBaseURL,
			sharetoken.WithLogger(logger.Named("sharetokens"))),
		authenticator: authenticator,
		limiter:       be.limiter,
		metrics:       metrics.New(),
		logger:        logger,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           srv.router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.Int("port", cfg.Port), zap.String("store", cfg.Store))
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("starting server: %w", err)

	case <-ctx.Done():
		logger.Info("starting shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown failed", zap.Error(err))
			if err := httpServer.Close(); err != nil {
				return fmt.Errorf("closing server: %w", err)
			}
		}
		logger.Info("shutdown complete", zap.Duration("timeout", cfg.ShutdownTimeout))
		return nil
	}
}
