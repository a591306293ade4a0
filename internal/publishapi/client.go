// Package publishapi is the CLI-side client of the publishing service's project and
// share-token endpoints. Requests carry the stored credential as a bearer token.
package publishapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/wrale/sitepub/internal/expiry"
	"github.com/wrale/sitepub/internal/project"
	"github.com/wrale/sitepub/internal/sharetoken"
)

const maxResponseBytes = 1 << 20

// Errors classified from server responses
var (
	ErrUnauthorized   = errors.New("credential rejected by server")
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrConflict       = errors.New("conflict")
	ErrServer         = errors.New("server error")
)

// APIError is a non-2xx reply from the publishing service
type APIError struct {
	StatusCode  int
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Description)
	}
	return fmt.Sprintf("%s (%d)", e.Code, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusConflict:
		return ErrConflict
	case e.StatusCode >= http.StatusInternalServerError:
		return ErrServer
	default:
		return ErrInvalidRequest
	}
}

// Client calls the publishing service on behalf of an authenticated user
type Client struct {
	base   *url.URL
	http   *http.Client
	logger *zap.Logger
}

// Option configures the client
type Option func(*Client)

// WithLogger sets the structured logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for serverURL that authenticates with token.
// An *http.Client stored in ctx under oauth2.HTTPClient is used as the base transport.
func NewClient(ctx context.Context, serverURL string, token *oauth2.Token, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q: scheme and host are required", serverURL)
	}
	if token == nil || token.AccessToken == "" {
		return nil, errors.New("access token is required")
	}

	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	if hc.Timeout == 0 {
		hc.Timeout = 30 * time.Second
	}

	c := &Client{base: base, http: hc, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// PublishProject registers the project or updates its settings
func (c *Client) PublishProject(ctx context.Context, name string, settings project.Settings) (*project.Project, error) {
	var out struct {
		Project project.Project `json:"project"`
	}
	if err := c.do(ctx, http.MethodPut, projectPath(name), settings, &out); err != nil {
		return nil, fmt.Errorf("publishing project %s: %w", name, err)
	}
	return &out.Project, nil
}

// CreateShareToken issues a share token for the project
func (c *Client) CreateShareToken(ctx context.Context, projectName, name string, d expiry.Duration) (*sharetoken.CreateResult, error) {
	body := struct {
		Name     string          `json:"name"`
		Duration expiry.Duration `json:"duration"`
	}{Name: name, Duration: d}

	var out sharetoken.CreateResult
	if err := c.do(ctx, http.MethodPost, projectPath(projectName)+"/share-tokens", body, &out); err != nil {
		return nil, fmt.Errorf("creating share token: %w", err)
	}
	return &out, nil
}

// ListShareTokens returns the project's share tokens with derived state
func (c *Client) ListShareTokens(ctx context.Context, projectName string) (*sharetoken.ListResult, error) {
	var out sharetoken.ListResult
	if err := c.do(ctx, http.MethodGet, projectPath(projectName)+"/share-tokens", nil, &out); err != nil {
		return nil, fmt.Errorf("listing share tokens: %w", err)
	}
	return &out, nil
}

// RevokeShareToken revokes a share token. Revoking twice returns the original revocation.
func (c *Client) RevokeShareToken(ctx context.Context, projectName, id string) (*sharetoken.RevokeResult, error) {
	var out sharetoken.RevokeResult
	p := projectPath(projectName) + "/share-tokens/" + url.PathEscape(id) + "/revoke"
	if err := c.do(ctx, http.MethodPost, p, nil, &out); err != nil {
		return nil, fmt.Errorf("revoking share token %s: %w", id, err)
	}
	return &out, nil
}

func projectPath(name string) string {
	return "/api/projects/" + url.PathEscape(name)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	c.logger.Debug("api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Code == "" {
			apiErr.Code = strings.ToLower(strings.ReplaceAll(http.StatusText(resp.StatusCode), " ", "_"))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
