// Package integration exercises a running sitepub-server end to end.
// The suite is skipped unless SITEPUB_IT_CREDENTIAL holds a bearer credential
// the server's authorization server accepts.
package integration

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/oauth2"

	"github.com/wrale/sitepub/internal/publishapi"
)

// Config locates the deployment under test
type Config struct {
	Server     string        `envconfig:"SERVER" default:"http://localhost:8080"`
	Credential string        `envconfig:"CREDENTIAL"`
	Timeout    time.Duration `envconfig:"TIMEOUT" default:"60s"`
}

// RetryInterval is the delay between health probes
const RetryInterval = 2 * time.Second

// TestSuite provides shared functionality for integration tests
type TestSuite struct {
	T      *testing.T
	Config Config
	Client *http.Client
	API    *publishapi.Client
	Ctx    context.Context
}

// NewSuite loads SITEPUB_IT_* settings, skipping the test when no credential is configured
func NewSuite(t *testing.T) *TestSuite {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	var cfg Config
	if err := envconfig.Process("sitepub_it", &cfg); err != nil {
		t.Fatalf("loading integration config: %v", err)
	}
	if cfg.Credential == "" {
		t.Skip("SITEPUB_IT_CREDENTIAL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	t.Cleanup(cancel)

	api, err := publishapi.NewClient(ctx, cfg.Server, &oauth2.Token{AccessToken: cfg.Credential})
	if err != nil {
		t.Fatalf("creating API client: %v", err)
	}

	return &TestSuite{
		T:      t,
		Config: cfg,
		Client: &http.Client{Timeout: 10 * time.Second},
		API:    api,
		Ctx:    ctx,
	}
}

// WaitForServer polls /health until the server and its dependencies report healthy
func (s *TestSuite) WaitForServer() error {
	ticker := time.NewTicker(RetryInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		req, err := http.NewRequestWithContext(s.Ctx, http.MethodGet, s.Config.Server+"/health", nil)
		if err != nil {
			return fmt.Errorf("creating health request: %w", err)
		}

		resp, err := s.Client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			lastErr = fmt.Errorf("health returned status %d", resp.StatusCode)
		} else {
			lastErr = fmt.Errorf("checking health: %w", err)
		}

		select {
		case <-s.Ctx.Done():
			return fmt.Errorf("timeout waiting for server: %w", lastErr)
		case <-ticker.C:
		}
	}
}

// Preview requests preview access to project with secret and returns the status code
func (s *TestSuite) Preview(project, secret string) (int, error) {
	req, err := http.NewRequestWithContext(s.Ctx, http.MethodGet, s.Config.Server+"/preview/"+project, nil)
	if err != nil {
		return 0, err
	}
	if secret != "" {
		q := req.URL.Query()
		q.Set("share_token", secret)
		req.URL.RawQuery = q.Encode()
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
