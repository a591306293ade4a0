package deviceauth

import (
	"errors"
	"fmt"
)

// Wire error codes per RFC 8628 section 3.5 and RFC 6749 section 5.2
const (
	ErrorCodeAuthorizationPending = "authorization_pending"
	ErrorCodeSlowDown             = "slow_down"
	ErrorCodeExpiredToken         = "expired_token"
	ErrorCodeAccessDenied         = "access_denied"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidClient        = "invalid_client"
)

// Errors surfaced by the client
var (
	// ErrAuthExpired indicates the device code expired before the user approved it
	ErrAuthExpired = errors.New("device code expired")

	// ErrAuthDenied indicates the user declined the authorization request
	ErrAuthDenied = errors.New("authorization denied")

	// ErrInvalidGrant indicates the server no longer accepts the device code
	ErrInvalidGrant = errors.New("invalid grant")

	// ErrAuthFailed indicates any other terminal authorization error
	ErrAuthFailed = errors.New("authorization failed")

	// ErrCancelled indicates the caller aborted the polling loop
	ErrCancelled = errors.New("authorization cancelled")

	// ErrInvalidRequest indicates the server rejected the device code request
	ErrInvalidRequest = errors.New("invalid device authorization request")

	// ErrNetwork indicates the server could not be reached after retries
	ErrNetwork = errors.New("network error")

	// ErrInvalidResponse indicates the server replied with a malformed body
	ErrInvalidResponse = errors.New("invalid server response")

	// ErrSessionUsed indicates a session was polled more than once
	ErrSessionUsed = errors.New("device authorization session already used")
)

// AuthError is a terminal polling failure carrying the final state and server detail
type AuthError struct {
	State       State
	Code        string
	Description string
	err         error
}

func (e *AuthError) Error() string {
	var msg string
	switch e.State {
	case StateExpired:
		msg = "the code expired before it was approved, run the command again"
	case StateDenied:
		msg = "the request was denied in the browser, run the command again to retry"
	default:
		if errors.Is(e.err, ErrInvalidGrant) {
			msg = "the server no longer accepts this device code, run the command again"
		} else {
			msg = fmt.Sprintf("authorization failed with %q", e.Code)
		}
	}
	if e.Description != "" {
		msg += ": " + e.Description
	}
	return msg
}

func (e *AuthError) Unwrap() error {
	return e.err
}

// RequestError is returned when the server rejects a device code request
type RequestError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *RequestError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("device code request rejected (%d %s): %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("device code request rejected (%d %s)", e.StatusCode, e.Code)
}

func (e *RequestError) Unwrap() error {
	return ErrInvalidRequest
}
