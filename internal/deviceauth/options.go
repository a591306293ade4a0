package deviceauth

import (
	"context"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Waiter suspends the caller for d or until ctx is done, whichever comes first
type Waiter interface {
	Wait(ctx context.Context, d time.Duration) error
}

// timerWaiter waits on a real timer
type timerWaiter struct{}

func (timerWaiter) Wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for both endpoints
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithEndpoint overrides the device authorization and token URLs
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(c *Client) {
		if ep.DeviceAuthURL != "" {
			c.endpoint.DeviceAuthURL = ep.DeviceAuthURL
		}
		if ep.TokenURL != "" {
			c.endpoint.TokenURL = ep.TokenURL
		}
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithClock overrides the time source used for session deadlines
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithWaiter overrides how the polling loop suspends between requests
func WithWaiter(w Waiter) Option {
	return func(c *Client) {
		c.waiter = w
	}
}

// WithBackOff sets the retry policy for transport failures.
// The factory is called once per request.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(c *Client) {
		c.newBackOff = newBackOff
	}
}

// defaultBackOff retries a request up to 3 times over a few seconds
func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 4 * time.Second
	b.MaxElapsedTime = 15 * time.Second
	return backoff.WithMaxRetries(b, 3)
}
