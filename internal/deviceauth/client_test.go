package deviceauth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name       string
		serverURL  string
		wantErr    bool
		wantDevice string
		wantToken  string
	}{
		{
			name:       "plain host",
			serverURL:  "https://auth.example.com",
			wantDevice: "https://auth.example.com/device/code",
			wantToken:  "https://auth.example.com/device/token",
		},
		{
			name:       "trailing slash",
			serverURL:  "https://auth.example.com/",
			wantDevice: "https://auth.example.com/device/code",
			wantToken:  "https://auth.example.com/device/token",
		},
		{
			name:       "path prefix",
			serverURL:  "http://localhost:8080/api",
			wantDevice: "http://localhost:8080/api/device/code",
			wantToken:  "http://localhost:8080/api/device/token",
		},
		{
			name:      "missing scheme",
			serverURL: "auth.example.com",
			wantErr:   true,
		},
		{
			name:      "empty",
			serverURL: "",
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.serverURL)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewClient() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			ep := c.Endpoint()
			if ep.DeviceAuthURL != tt.wantDevice {
				t.Errorf("DeviceAuthURL = %q, want %q", ep.DeviceAuthURL, tt.wantDevice)
			}
			if ep.TokenURL != tt.wantToken {
				t.Errorf("TokenURL = %q, want %q", ep.TokenURL, tt.wantToken)
			}
		})
	}
}

func TestWithEndpoint(t *testing.T) {
	c, err := NewClient("https://auth.example.com", WithEndpoint(oauth2.Endpoint{
		TokenURL: "https://tokens.example.com/oauth/token",
	}))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	ep := c.Endpoint()
	if ep.DeviceAuthURL != "https://auth.example.com/device/code" {
		t.Errorf("DeviceAuthURL = %q, want default", ep.DeviceAuthURL)
	}
	if ep.TokenURL != "https://tokens.example.com/oauth/token" {
		t.Errorf("TokenURL = %q, want override", ep.TokenURL)
	}
}

func TestRequestDeviceCode(t *testing.T) {
	validResponse := map[string]any{
		"device_code":               "GmRhmhcxhwAzkoEqiMEg_DnyEysNkuNhszIySk9eS",
		"user_code":                 "WDJB-MJHT",
		"verification_uri":          "https://example.com/device",
		"verification_uri_complete": "https://example.com/device?user_code=WDJB-MJHT",
		"expires_in":                1800,
		"interval":                  7,
	}

	tests := []struct {
		name         string
		clientID     string
		reply        scriptedReply
		wantErr      error
		wantInterval time.Duration
		wantTTL      time.Duration
		wantCalls    int
	}{
		{
			name:         "issued",
			clientID:     "sitepub-cli",
			reply:        ok(validResponse),
			wantInterval: 7 * time.Second,
			wantTTL:      30 * time.Minute,
			wantCalls:    1,
		},
		{
			name:     "default interval",
			clientID: "sitepub-cli",
			reply: ok(map[string]any{
				"device_code":      "dev-code",
				"user_code":        "ABCD-EFGH",
				"verification_uri": "https://example.com/device",
			}),
			wantInterval: DefaultInterval,
			wantCalls:    1,
		},
		{
			name:      "invalid client",
			clientID:  "unknown",
			reply:     oauthError(http.StatusUnauthorized, ErrorCodeInvalidClient),
			wantErr:   ErrInvalidRequest,
			wantCalls: 1,
		},
		{
			name:      "missing client id",
			clientID:  "",
			wantErr:   ErrInvalidRequest,
			wantCalls: 0,
		},
		{
			name:      "malformed body",
			clientID:  "sitepub-cli",
			reply:     ok("{not json"),
			wantErr:   ErrInvalidResponse,
			wantCalls: 1,
		},
		{
			name:     "user code equals device code",
			clientID: "sitepub-cli",
			reply: ok(map[string]any{
				"device_code":      "SAME",
				"user_code":        "SAME",
				"verification_uri": "https://example.com/device",
			}),
			wantErr:   ErrInvalidResponse,
			wantCalls: 1,
		},
		{
			name:     "missing verification uri",
			clientID: "sitepub-cli",
			reply: ok(map[string]any{
				"device_code": "dev-code",
				"user_code":   "ABCD-EFGH",
			}),
			wantErr:   ErrInvalidResponse,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newAuthServer(t)
			if tt.wantCalls > 0 {
				srv.deviceCode = []scriptedReply{tt.reply}
			}
			client, clock, _ := newTestClient(t, srv)

			session, err := client.RequestDeviceCode(context.Background(), tt.clientID, "publish")
			if got := srv.CodeCalls(); got != tt.wantCalls {
				t.Errorf("device code calls = %d, want %d", got, tt.wantCalls)
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("RequestDeviceCode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("RequestDeviceCode() unexpected error = %v", err)
			}

			if session.Interval != tt.wantInterval {
				t.Errorf("Interval = %v, want %v", session.Interval, tt.wantInterval)
			}
			if tt.wantTTL > 0 {
				if want := clock.Now().Add(tt.wantTTL); !session.ExpiresAt.Equal(want) {
					t.Errorf("ExpiresAt = %v, want %v", session.ExpiresAt, want)
				}
			} else if !session.ExpiresAt.IsZero() {
				t.Errorf("ExpiresAt = %v, want zero", session.ExpiresAt)
			}
			if session.ClientID != tt.clientID {
				t.Errorf("ClientID = %q, want %q", session.ClientID, tt.clientID)
			}
			if session.Scope != "publish" {
				t.Errorf("Scope = %q, want %q", session.Scope, "publish")
			}
		})
	}
}

func TestRequestDeviceCodeRequestError(t *testing.T) {
	srv := newAuthServer(t)
	srv.deviceCode = []scriptedReply{{
		status: http.StatusBadRequest,
		body:   map[string]string{"error": "invalid_scope", "error_description": "scope publish is not allowed"},
	}}
	client, _, _ := newTestClient(t, srv)

	_, err := client.RequestDeviceCode(context.Background(), "sitepub-cli", "publish")

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("RequestDeviceCode() error = %v, want *RequestError", err)
	}
	if reqErr.StatusCode != http.StatusBadRequest || reqErr.Code != "invalid_scope" {
		t.Errorf("RequestError = %+v, want 400 invalid_scope", reqErr)
	}
	if reqErr.Description != "scope publish is not allowed" {
		t.Errorf("Description = %q", reqErr.Description)
	}
}

func TestRequestDeviceCodeRetries(t *testing.T) {
	srv := newAuthServer(t)
	srv.deviceCode = []scriptedReply{
		oauthError(http.StatusServiceUnavailable, "temporarily_unavailable"),
		ok(map[string]any{
			"device_code":      "dev-code",
			"user_code":        "ABCD-EFGH",
			"verification_uri": "https://example.com/device",
		}),
	}
	client, _, _ := newTestClient(t, srv)

	if _, err := client.RequestDeviceCode(context.Background(), "sitepub-cli", ""); err != nil {
		t.Fatalf("RequestDeviceCode() error = %v", err)
	}
	if got := srv.CodeCalls(); got != 2 {
		t.Errorf("device code calls = %d, want 2", got)
	}
}

func TestRequestDeviceCodeNetworkError(t *testing.T) {
	srv := newAuthServer(t)
	client, _, _ := newTestClient(t, srv)
	srv.Close()

	_, err := client.RequestDeviceCode(context.Background(), "sitepub-cli", "")
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("RequestDeviceCode() error = %v, want ErrNetwork", err)
	}
}

func TestRequestDeviceCodeCancelled(t *testing.T) {
	srv := newAuthServer(t)
	client, _, _ := newTestClient(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.RequestDeviceCode(ctx, "sitepub-cli", "")
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("RequestDeviceCode() error = %v, want ErrCancelled", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RequestDeviceCode() error = %v, want it to wrap context.Canceled", err)
	}
	if got := srv.CodeCalls(); got != 0 {
		t.Errorf("device code calls = %d, want 0", got)
	}
}
