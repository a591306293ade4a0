package sharetokens

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/wrale/sitepub/cmd/sitepub-server/handlers/auth"
	"github.com/wrale/sitepub/cmd/sitepub-server/handlers/common"
	"github.com/wrale/sitepub/internal/expiry"
	"github.com/wrale/sitepub/internal/metrics"
	"github.com/wrale/sitepub/internal/oauth"
	"github.com/wrale/sitepub/internal/project"
	"github.com/wrale/sitepub/internal/sharetoken"
	"github.com/wrale/sitepub/internal/validation"
)

// mockProjects resolves "docs" for alice and "site" for bob
type mockProjects struct{}

func (mockProjects) Resolve(ctx context.Context, owner, name string) (*project.Project, error) {
	switch {
	case owner == "alice" && name == "docs":
		return &project.Project{ID: "p-docs", Name: "docs", Owner: "alice"}, nil
	case owner == "bob" && name == "site":
		return &project.Project{ID: "p-site", Name: "site", Owner: "bob", WWW: true}, nil
	}
	return nil, project.ErrNotFound
}

type mockTokens struct {
	calls []string
	err   error
}

var createdAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func (m *mockTokens) Create(ctx context.Context, scope sharetoken.Scope, name, duration string) (*sharetoken.CreateResult, error) {
	m.calls = append(m.calls, "create "+scope.ProjectID+" "+name+" "+duration)
	if m.err != nil {
		return nil, m.err
	}
	return &sharetoken.CreateResult{
		ShareToken: sharetoken.View{ID: "tok-1", ProjectID: scope.ProjectID, Name: name,
			Duration: expiry.Duration(duration), CreatedAt: createdAt, IsActive: true},
		Token:    "spt_secret",
		ShareURL: "https://preview.example.com/" + scope.ProjectName + "/?share_token=spt_secret",
	}, nil
}

func (m *mockTokens) List(ctx context.Context, projectID string) (*sharetoken.ListResult, error) {
	m.calls = append(m.calls, "list "+projectID)
	if m.err != nil {
		return nil, m.err
	}
	return &sharetoken.ListResult{ShareTokens: []sharetoken.View{{ID: "tok-1", ProjectID: projectID, IsActive: true}}}, nil
}

func (m *mockTokens) Revoke(ctx context.Context, projectID, id string) (*sharetoken.RevokeResult, error) {
	m.calls = append(m.calls, "revoke "+projectID+" "+id)
	if m.err != nil {
		return nil, m.err
	}
	revokedAt := createdAt.Add(time.Hour)
	return &sharetoken.RevokeResult{ShareToken: sharetoken.View{ID: id, ProjectID: projectID, IsRevoked: true, RevokedAt: &revokedAt}}, nil
}

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/projects/{project}/share-tokens", h.Routes)
	return r
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(auth.WithTokenInfo(req.Context(), &oauth.TokenInfo{Active: true, Subject: "alice"}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp common.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error body %q: %v", rec.Body, err)
	}
	return resp.Error
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		body      string
		err       error
		wantCode  int
		wantError string
		wantCalls []string
	}{
		{
			name:      "created",
			path:      "/api/projects/docs/share-tokens",
			body:      `{"name":"review","duration":"1w"}`,
			wantCode:  http.StatusCreated,
			wantCalls: []string{"create p-docs review 1w"},
		},
		{
			name:      "malformed body",
			path:      "/api/projects/docs/share-tokens",
			body:      `{"name":`,
			wantCode:  http.StatusBadRequest,
			wantError: common.ErrorCodeInvalidRequest,
		},
		{
			name:      "unknown field",
			path:      "/api/projects/docs/share-tokens",
			body:      `{"name":"review","duration":"1d","token":"spt_mine"}`,
			wantCode:  http.StatusBadRequest,
			wantError: common.ErrorCodeInvalidRequest,
		},
		{
			name:      "invalid duration",
			path:      "/api/projects/docs/share-tokens",
			body:      `{"name":"review","duration":"2d"}`,
			err:       &validation.ValidationError{Field: "duration", Value: "2d", Message: "must be 1d, 1w or 1m"},
			wantCode:  http.StatusBadRequest,
			wantError: common.ErrorCodeInvalidRequest,
			wantCalls: []string{"create p-docs review 2d"},
		},
		{
			name:      "project of another owner",
			path:      "/api/projects/site/share-tokens",
			body:      `{"name":"review","duration":"1d"}`,
			wantCode:  http.StatusNotFound,
			wantError: common.ErrorCodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := &mockTokens{err: tt.err}
			m := metrics.New()
			router := newRouter(New(mockProjects{}, tokens, m, zap.NewNop()))

			rec := serve(router, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body)
			}
			if diff := cmp.Diff(tt.wantCalls, tokens.calls); diff != "" {
				t.Errorf("token calls mismatch (-want +got):\n%s", diff)
			}

			if tt.wantError != "" {
				if got := errorCode(t, rec); got != tt.wantError {
					t.Errorf("error = %q, want %q", got, tt.wantError)
				}
				return
			}

			var got sharetoken.CreateResult
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			if got.Token != "spt_secret" || got.ShareToken.ID != "tok-1" {
				t.Errorf("response = %+v", got)
			}
			if issued := testutil.ToFloat64(m.ShareTokensIssued.WithLabelValues("1w")); issued != 1 {
				t.Errorf("issued counter = %v, want 1", issued)
			}
		})
	}
}

func TestList(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantCode  int
		wantCalls []string
	}{
		{name: "own project", path: "/api/projects/docs/share-tokens", wantCode: http.StatusOK, wantCalls: []string{"list p-docs"}},
		{name: "project of another owner", path: "/api/projects/site/share-tokens", wantCode: http.StatusNotFound},
		{name: "unknown project", path: "/api/projects/missing/share-tokens", wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := &mockTokens{}
			router := newRouter(New(mockProjects{}, tokens, metrics.New(), zap.NewNop()))

			rec := serve(router, http.MethodGet, tt.path, "")
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body)
			}
			if diff := cmp.Diff(tt.wantCalls, tokens.calls); diff != "" {
				t.Errorf("token calls mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRevoke(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		err        error
		wantCode   int
		wantError  string
		wantCalls  []string
		wantResult string
	}{
		{
			name:       "revoked",
			path:       "/api/projects/docs/share-tokens/tok-1/revoke",
			wantCode:   http.StatusOK,
			wantCalls:  []string{"revoke p-docs tok-1"},
			wantResult: "ok",
		},
		{
			name:       "unknown token",
			path:       "/api/projects/docs/share-tokens/nope/revoke",
			err:        sharetoken.ErrNotFound,
			wantCode:   http.StatusNotFound,
			wantError:  common.ErrorCodeNotFound,
			wantCalls:  []string{"revoke p-docs nope"},
			wantResult: "error",
		},
		{
			name:      "project of another owner",
			path:      "/api/projects/site/share-tokens/tok-1/revoke",
			wantCode:  http.StatusNotFound,
			wantError: common.ErrorCodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := &mockTokens{err: tt.err}
			m := metrics.New()
			router := newRouter(New(mockProjects{}, tokens, m, zap.NewNop()))

			rec := serve(router, http.MethodPost, tt.path, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body)
			}
			if diff := cmp.Diff(tt.wantCalls, tokens.calls); diff != "" {
				t.Errorf("token calls mismatch (-want +got):\n%s", diff)
			}
			if tt.wantError != "" {
				if got := errorCode(t, rec); got != tt.wantError {
					t.Errorf("error = %q, want %q", got, tt.wantError)
				}
			}
			if tt.wantResult != "" {
				if got := testutil.ToFloat64(m.ShareTokenRevocations.WithLabelValues(tt.wantResult)); got != 1 {
					t.Errorf("revocations{result=%q} = %v, want 1", tt.wantResult, got)
				}
			}
		})
	}
}
