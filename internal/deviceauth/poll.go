package deviceauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// PollForToken polls the token endpoint per RFC 8628 section 3.4 until the session
// reaches a terminal state. It waits the session interval before every request;
// each slow_down reply adds SlowDownIncrement for the rest of the session.
//
// On success it returns the access token. Terminal failures are *AuthError values
// matching ErrAuthExpired, ErrAuthDenied, ErrInvalidGrant or ErrAuthFailed.
// Cancelling ctx aborts the loop with ErrCancelled. Nothing is persisted here.
func (c *Client) PollForToken(ctx context.Context, session *Session) (*Token, error) {
	if session == nil {
		return nil, errors.New("session is required")
	}
	if !session.claim() {
		return nil, ErrSessionUsed
	}

	form := url.Values{
		"grant_type":  {GrantTypeDeviceCode},
		"device_code": {session.DeviceCode},
		"client_id":   {session.ClientID},
	}

	interval := session.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	state := StatePending

	for polls := 1; ; polls++ {
		wait := interval
		if !session.ExpiresAt.IsZero() {
			remaining := session.ExpiresAt.Sub(c.now())
			if remaining <= 0 {
				return nil, c.expiredByDeadline(session)
			}
			if remaining < wait {
				wait = remaining
			}
		}

		if err := c.waiter.Wait(ctx, wait); err != nil {
			return nil, cancelled(err)
		}
		if !session.ExpiresAt.IsZero() && !c.now().Before(session.ExpiresAt) {
			return nil, c.expiredByDeadline(session)
		}

		rep, err := c.postForm(ctx, c.endpoint.TokenURL, form)
		if err != nil {
			if ctx.Err() != nil {
				return nil, cancelled(ctx.Err())
			}
			c.logger.Debug("token poll failed", zap.Int("poll", polls), zap.Error(err))
			return nil, fmt.Errorf("polling for token: %w", err)
		}

		outcome := classifyTokenResponse(rep.status, rep.body)
		prev := state
		state = outcome.next()
		c.logger.Debug("token poll",
			zap.Int("poll", polls),
			zap.Stringer("from", prev),
			zap.Stringer("to", state),
			zap.Duration("interval", interval),
		)

		switch o := outcome.(type) {
		case granted:
			return &o.token, nil
		case pending:
		case slowDown:
			interval += SlowDownIncrement
		case expiredToken:
			return nil, &AuthError{State: StateExpired, Code: ErrorCodeExpiredToken, Description: o.description, err: ErrAuthExpired}
		case accessDenied:
			return nil, &AuthError{State: StateDenied, Code: ErrorCodeAccessDenied, Description: o.description, err: ErrAuthDenied}
		case invalidGrant:
			return nil, &AuthError{State: StateError, Code: ErrorCodeInvalidGrant, Description: o.description, err: ErrInvalidGrant}
		case failure:
			return nil, &AuthError{State: StateError, Code: o.code, Description: o.description, err: ErrAuthFailed}
		default:
			return nil, fmt.Errorf("unhandled poll outcome %T", outcome)
		}
	}
}

// expiredByDeadline reports expiry when the server-given lifetime elapses without expired_token
func (c *Client) expiredByDeadline(session *Session) error {
	c.logger.Debug("device code lifetime elapsed", zap.Time("expires_at", session.ExpiresAt))
	return &AuthError{
		State:       StateExpired,
		Code:        ErrorCodeExpiredToken,
		Description: "device code lifetime of the session elapsed at " + session.ExpiresAt.Format(time.RFC3339),
		err:         ErrAuthExpired,
	}
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
