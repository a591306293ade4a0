package deviceauth

import (
	"sync/atomic"
	"time"

	"golang.org/x/oauth2"
)

// DefaultInterval is the polling interval when the server omits one, per RFC 8628 section 3.2
const DefaultInterval = 5 * time.Second

// Session holds one device authorization attempt per RFC 8628 section 3.2.
// A session is passed explicitly to PollForToken and may be polled exactly once.
type Session struct {
	DeviceCode              string        // Opaque, never shown to the user
	UserCode                string        // Short code the user types at VerificationURI
	VerificationURI         string
	VerificationURIComplete string        // Optional URI embedding the user code
	Interval                time.Duration // Time between polls
	ClientID                string
	Scope                   string
	ExpiresAt               time.Time // Zero when the server gave no lifetime

	polled atomic.Bool
}

// claim marks the session as used and reports whether it was still fresh
func (s *Session) claim() bool {
	return s.polled.CompareAndSwap(false, true)
}

// Token is the access credential obtained on success
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type,omitempty"`
	Scope       string `json:"scope,omitempty"`
}

// OAuth2 converts the token for use with an oauth2.TokenSource
func (t *Token) OAuth2() *oauth2.Token {
	tokenType := t.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{AccessToken: t.AccessToken, TokenType: tokenType}
}

// deviceCodeResponse is the device authorization response per RFC 8628 section 3.2
type deviceCodeResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`
	ExpiresIn               int    `json:"expires_in,omitempty"`
	Interval                int    `json:"interval,omitempty"`
}

// tokenResponse is the union of the success and error token responses per RFC 8628 section 3.5
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}
