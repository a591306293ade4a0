package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// Introspector validates tokens with RFC 7662 token introspection
type Introspector struct {
	client           *http.Client
	clientID         string
	clientSecret     string
	introspectionURL string
	healthURL        string
	now              func() time.Time
}

// NewIntrospector creates an authenticator calling the introspection endpoint
func NewIntrospector(cfg Config) (*Introspector, error) {
	if cfg.IntrospectionURL == "" {
		return nil, fmt.Errorf("introspection URL is required")
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	u, err := url.Parse(cfg.IntrospectionURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid introspection URL %q", cfg.IntrospectionURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Introspector{
		client:           &http.Client{Timeout: timeout},
		clientID:         cfg.ClientID,
		clientSecret:     cfg.ClientSecret,
		introspectionURL: cfg.IntrospectionURL,
		healthURL:        cfg.HealthURL,
		now:              time.Now,
	}, nil
}

// ValidateToken introspects an access token and returns its info
func (p *Introspector) ValidateToken(ctx context.Context, token string) (*TokenInfo, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}

	data := url.Values{
		"token":           {token},
		"token_type_hint": {"access_token"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.introspectionURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(url.QueryEscape(p.clientID), url.QueryEscape(p.clientSecret))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: introspection returned %s: %s", ErrProviderUnavailable, resp.Status, body)
	}

	var info TokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("parsing introspection response: %w", err)
	}

	if !info.Active {
		return nil, ErrInvalidToken
	}
	if info.Expired(p.now()) {
		return nil, ErrTokenExpired
	}
	if info.Owner() == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}
	return &info, nil
}

// CheckHealth verifies the provider is accessible
func (p *Introspector) CheckHealth(ctx context.Context) error {
	if p.healthURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.healthURL, nil)
	if err != nil {
		return fmt.Errorf("creating health check request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending health check request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ErrProviderUnavailable
	}
	return nil
}
