// Package sharetokens serves the share-token endpoints of a caller's project
package sharetokens

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wrale/sitepub/cmd/sitepub-server/handlers/auth"
	"github.com/wrale/sitepub/cmd/sitepub-server/handlers/common"
	"github.com/wrale/sitepub/internal/metrics"
	"github.com/wrale/sitepub/internal/project"
	"github.com/wrale/sitepub/internal/sharetoken"
)

// Projects resolves a project owned by the caller
type Projects interface {
	Resolve(ctx context.Context, owner, name string) (*project.Project, error)
}

// Tokens issues, lists and revokes share tokens
type Tokens interface {
	Create(ctx context.Context, scope sharetoken.Scope, name, duration string) (*sharetoken.CreateResult, error)
	List(ctx context.Context, projectID string) (*sharetoken.ListResult, error)
	Revoke(ctx context.Context, projectID, id string) (*sharetoken.RevokeResult, error)
}

// CreateRequest is the body of a create call
type CreateRequest struct {
	Name     string `json:"name"`
	Duration string `json:"duration"`
}

// Handler serves the share-token routes
type Handler struct {
	projects Projects
	tokens   Tokens
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// New creates the share-token handler
func New(projects Projects, tokens Tokens, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{projects: projects, tokens: tokens, metrics: m, logger: logger}
}

// Routes mounts the handlers under /api/projects/{project}/share-tokens
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Post("/{id}/revoke", h.Revoke)
}

// resolve looks up the caller's project named in the path, writing the error response on failure
func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (*project.Project, bool) {
	p, err := h.projects.Resolve(r.Context(), auth.Owner(r.Context()), chi.URLParam(r, "project"))
	if err != nil {
		common.WriteServiceError(w, h.logger, err)
		return nil, false
	}
	return p, true
}

// Create issues a share token. The secret appears only in this response.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := common.DecodeJSON(w, r, &req); err != nil {
		common.WriteError(w, http.StatusBadRequest, common.ErrorCodeInvalidRequest, "Invalid JSON body")
		return
	}

	p, ok := h.resolve(w, r)
	if !ok {
		return
	}

	scope := sharetoken.Scope{ProjectID: p.ID, ProjectName: p.Name, WWW: p.WWW}
	result, err := h.tokens.Create(r.Context(), scope, req.Name, req.Duration)
	if err != nil {
		common.WriteServiceError(w, h.logger, err)
		return
	}

	h.metrics.RecordShareTokenIssued(string(result.ShareToken.Duration))
	common.WriteJSON(w, http.StatusCreated, result)
}

// List returns the project's tokens with state derived at request time
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := h.resolve(w, r)
	if !ok {
		return
	}

	result, err := h.tokens.List(r.Context(), p.ID)
	if err != nil {
		common.WriteServiceError(w, h.logger, err)
		return
	}
	common.WriteJSON(w, http.StatusOK, result)
}

// Revoke revokes a token. Revoking an already revoked token returns it unchanged.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	p, ok := h.resolve(w, r)
	if !ok {
		return
	}

	result, err := h.tokens.Revoke(r.Context(), p.ID, chi.URLParam(r, "id"))
	if err != nil {
		h.metrics.RecordRevocation("error")
		common.WriteServiceError(w, h.logger, err)
		return
	}

	h.metrics.RecordRevocation("ok")
	common.WriteJSON(w, http.StatusOK, result)
}
