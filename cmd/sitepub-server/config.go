package main

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Storage backends
const (
	storeRedis  = "redis"
	storeSQLite = "sqlite"
)

// envPrefix namespaces every variable, e.g. SITEPUB_PORT
const envPrefix = "sitepub"

// Config holds server configuration loaded from environment variables
type Config struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	Store      string `envconfig:"STORE" default:"redis"`
	RedisURL   string `envconfig:"REDIS_URL" default:"redis://localhost:6379/0"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"sitepub.db"`

	IntrospectionURL          string `envconfig:"INTROSPECTION_URL" required:"true"`
	IntrospectionClientID     string `envconfig:"INTROSPECTION_CLIENT_ID" required:"true"`
	IntrospectionClientSecret string `envconfig:"INTROSPECTION_CLIENT_SECRET"`
	AuthHealthURL             string `envconfig:"AUTH_HEALTH_URL"`

	PreviewBaseURL       string        `envconfig:"PREVIEW_BASE_URL" required:"true"`
	PreviewAttemptLimit  int           `envconfig:"PREVIEW_ATTEMPT_LIMIT" default:"20"`
	PreviewAttemptWindow time.Duration `envconfig:"PREVIEW_ATTEMPT_WINDOW" default:"5m"`

	RequestTimeout    time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"35s"`
	IdleTimeout       time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// loadConfig reads and validates the SITEPUB_* environment
func loadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Store {
	case storeRedis, storeSQLite:
	default:
		return fmt.Errorf("SITEPUB_STORE must be %q or %q, got %q", storeRedis, storeSQLite, c.Store)
	}

	u, err := url.Parse(c.PreviewBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("SITEPUB_PREVIEW_BASE_URL must be an absolute URL, got %q", c.PreviewBaseURL)
	}
	if c.PreviewAttemptLimit < 1 {
		return fmt.Errorf("SITEPUB_PREVIEW_ATTEMPT_LIMIT must be positive")
	}
	return nil
}
