// Package deviceauth implements the client side of the OAuth 2.0 Device Authorization
// Grant (RFC 8628): requesting a device code and polling the token endpoint until the
// user approves, denies, or the code expires.
package deviceauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	// GrantTypeDeviceCode is the grant type of device access token requests
	GrantTypeDeviceCode = "urn:ietf:params:oauth:grant-type:device_code"

	// SlowDownIncrement is added to the interval on every slow_down reply, per RFC 8628 section 3.5
	SlowDownIncrement = 5 * time.Second

	deviceCodePath = "/device/code"
	tokenPath      = "/device/token"
	requestTimeout = 30 * time.Second
)

// Client drives device authorization against one authorization server.
// It holds no per-session state; sessions are passed explicitly.
type Client struct {
	endpoint   oauth2.Endpoint
	http       *http.Client
	logger     *zap.Logger
	now        func() time.Time
	waiter     Waiter
	newBackOff func() backoff.BackOff
}

// NewClient creates a client for the server at serverURL, using its
// /device/code and /device/token endpoints unless overridden
func NewClient(serverURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(serverURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q: scheme and host are required", serverURL)
	}

	c := &Client{
		endpoint: oauth2.Endpoint{
			DeviceAuthURL: base.String() + deviceCodePath,
			TokenURL:      base.String() + tokenPath,
		},
		http:       &http.Client{Timeout: requestTimeout},
		logger:     zap.NewNop(),
		now:        time.Now,
		waiter:     timerWaiter{},
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the device authorization and token URLs in use
func (c *Client) Endpoint() oauth2.Endpoint {
	return c.endpoint
}

// RequestDeviceCode starts a device authorization attempt per RFC 8628 section 3.1
func (c *Client) RequestDeviceCode(ctx context.Context, clientID, scope string) (*Session, error) {
	if clientID == "" {
		return nil, &RequestError{Code: ErrorCodeInvalidRequest, Description: "client_id is required"}
	}

	form := url.Values{"client_id": {clientID}}
	if scope != "" {
		form.Set("scope", scope)
	}

	rep, err := c.postForm(ctx, c.endpoint.DeviceAuthURL, form)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx.Err())
		}
		return nil, fmt.Errorf("requesting device code: %w", err)
	}

	if rep.status != http.StatusOK {
		var errResp tokenResponse
		_ = json.Unmarshal(rep.body, &errResp)
		code := errResp.Error
		if code == "" {
			code = http.StatusText(rep.status)
		}
		return nil, &RequestError{
			StatusCode:  rep.status,
			Code:        code,
			Description: errResp.ErrorDescription,
		}
	}

	var resp deviceCodeResponse
	if err := json.Unmarshal(rep.body, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding device code response: %w", ErrInvalidResponse, err)
	}
	if resp.DeviceCode == "" || resp.UserCode == "" || resp.VerificationURI == "" {
		return nil, fmt.Errorf("%w: device_code, user_code and verification_uri are required", ErrInvalidResponse)
	}
	if resp.DeviceCode == resp.UserCode {
		return nil, fmt.Errorf("%w: device_code and user_code must differ", ErrInvalidResponse)
	}

	session := &Session{
		DeviceCode:              resp.DeviceCode,
		UserCode:                resp.UserCode,
		VerificationURI:         resp.VerificationURI,
		VerificationURIComplete: resp.VerificationURIComplete,
		Interval:                DefaultInterval,
		ClientID:                clientID,
		Scope:                   scope,
	}
	if resp.Interval > 0 {
		session.Interval = time.Duration(resp.Interval) * time.Second
	}
	if resp.ExpiresIn > 0 {
		session.ExpiresAt = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}

	c.logger.Debug("device code issued",
		zap.String("verification_uri", session.VerificationURI),
		zap.Duration("interval", session.Interval),
		zap.Time("expires_at", session.ExpiresAt),
	)
	return session, nil
}
