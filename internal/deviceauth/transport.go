package deviceauth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// maxResponseBytes bounds how much of a response body is read
const maxResponseBytes = 1 << 20

// reply is a fully read HTTP response
type reply struct {
	status int
	body   []byte
}

// retryableStatus reports whether a status indicates a transient server condition
func retryableStatus(status int) bool {
	return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
}

// postForm sends a form-encoded POST, retrying transport failures and 5xx replies
// with backoff. Replies below 500 are returned as-is for the caller to classify.
func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (*reply, error) {
	var (
		out     *reply
		fatal   error
		attempt int
	)

	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			fatal = fmt.Errorf("creating request: %w", err)
			return backoff.Permanent(fatal)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				fatal = ctx.Err()
				return backoff.Permanent(fatal)
			}
			c.logger.Debug("request failed", zap.String("endpoint", endpoint), zap.Int("attempt", attempt), zap.Error(err))
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}
		if retryableStatus(resp.StatusCode) {
			c.logger.Debug("server error", zap.String("endpoint", endpoint), zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode))
			return fmt.Errorf("server returned %s", resp.Status)
		}

		out = &reply{status: resp.StatusCode, body: body}
		return nil
	}

	err := backoff.Retry(op, backoff.WithContext(c.newBackOff(), ctx))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if fatal != nil {
			return nil, fatal
		}
		return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrNetwork, endpoint, attempt, err)
	}
	return out, nil
}
