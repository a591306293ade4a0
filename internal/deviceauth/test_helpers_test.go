package deviceauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// fakeClock is a manually advanced time source
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingWaiter records requested waits and advances the clock instead of sleeping
type recordingWaiter struct {
	mu     sync.Mutex
	clock  *fakeClock
	waits  []time.Duration
	onWait func(n int)
}

func (w *recordingWaiter) Wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	w.waits = append(w.waits, d)
	n := len(w.waits)
	w.mu.Unlock()

	w.clock.Advance(d)
	if w.onWait != nil {
		w.onWait(n)
	}
	return ctx.Err()
}

func (w *recordingWaiter) Waits() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Duration(nil), w.waits...)
}

// scriptedReply is one canned HTTP reply
type scriptedReply struct {
	status int
	body   any
}

func ok(body any) scriptedReply {
	return scriptedReply{status: http.StatusOK, body: body}
}

func oauthError(status int, code string) scriptedReply {
	return scriptedReply{status: status, body: map[string]string{"error": code}}
}

// authServer serves scripted replies on the device code and token endpoints
type authServer struct {
	*httptest.Server

	t          *testing.T
	mu         sync.Mutex
	deviceCode []scriptedReply
	token      []scriptedReply
	codeCalls  int
	tokenCalls int
	tokenForms []url.Values
}

func newAuthServer(t *testing.T) *authServer {
	t.Helper()
	s := &authServer{t: t}
	mux := http.NewServeMux()
	mux.HandleFunc("/device/code", s.serveDeviceCode)
	mux.HandleFunc("/device/token", s.serveToken)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *authServer) serveDeviceCode(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.codeCalls++
	reply := s.next(&s.deviceCode, "device code")
	s.mu.Unlock()
	s.write(w, reply)
}

func (s *authServer) serveToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.t.Errorf("parsing token form: %v", err)
	}
	s.mu.Lock()
	s.tokenCalls++
	s.tokenForms = append(s.tokenForms, r.PostForm)
	reply := s.next(&s.token, "token")
	s.mu.Unlock()
	s.write(w, reply)
}

func (s *authServer) next(script *[]scriptedReply, endpoint string) scriptedReply {
	if len(*script) == 0 {
		s.t.Errorf("unexpected %s request", endpoint)
		return oauthError(http.StatusBadRequest, "invalid_request")
	}
	reply := (*script)[0]
	*script = (*script)[1:]
	return reply
}

func (s *authServer) write(w http.ResponseWriter, reply scriptedReply) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.status)
	if raw, isRaw := reply.body.(string); isRaw {
		_, _ = w.Write([]byte(raw))
		return
	}
	_ = json.NewEncoder(w).Encode(reply.body)
}

func (s *authServer) TokenCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenCalls
}

func (s *authServer) CodeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codeCalls
}

// noWaitBackOff retries immediately, up to retries times
func noWaitBackOff(retries uint64) func() backoff.BackOff {
	return func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, retries)
	}
}

// newTestClient returns a client wired to the server with a fake clock and waiter
func newTestClient(t *testing.T, srv *authServer) (*Client, *fakeClock, *recordingWaiter) {
	t.Helper()
	clock := newFakeClock()
	waiter := &recordingWaiter{clock: clock}
	client, err := NewClient(srv.URL,
		WithHTTPClient(srv.Client()),
		WithClock(clock.Now),
		WithWaiter(waiter),
		WithBackOff(noWaitBackOff(2)),
	)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client, clock, waiter
}

// newTestSession returns a fresh session expiring ttl after the clock's current time
func newTestSession(clock *fakeClock, ttl time.Duration) *Session {
	return &Session{
		DeviceCode:      "dev-code-1",
		UserCode:        "WDJB-MJHT",
		VerificationURI: "https://example.com/device",
		Interval:        DefaultInterval,
		ClientID:        "sitepub-cli",
		ExpiresAt:       clock.Now().Add(ttl),
	}
}
