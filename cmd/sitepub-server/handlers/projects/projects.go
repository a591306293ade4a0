package projects

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/wrale/sitepub/cmd/sitepub-server/handlers/auth"
	"github.com/wrale/sitepub/cmd/sitepub-server/handlers/common"
	"github.com/wrale/sitepub/internal/metrics"
	"github.com/wrale/sitepub/internal/project"
)

// Publisher registers projects for their owners
type Publisher interface {
	Publish(ctx context.Context, owner, name string, settings project.Settings) (*project.Project, error)
}

// Response wraps the published project
type Response struct {
	Project *project.Project `json:"project"`
}

// Handler serves PUT /api/projects/{project}
type Handler struct {
	projects Publisher
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// New creates a project publish handler
func New(projects Publisher, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{projects: projects, metrics: m, logger: logger}
}

// ServeHTTP registers the project or updates its settings
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var settings project.Settings
	if r.ContentLength != 0 {
		if err := common.DecodeJSON(w, r, &settings); err != nil {
			common.WriteError(w, http.StatusBadRequest, common.ErrorCodeInvalidRequest, "Invalid JSON body")
			return
		}
	}

	owner := auth.Owner(r.Context())
	p, err := h.projects.Publish(r.Context(), owner, chi.URLParam(r, "project"), settings)
	if err != nil {
		h.metrics.RecordPublish("error")
		common.WriteServiceError(w, h.logger, err)
		return
	}

	h.metrics.RecordPublish("ok")
	h.logger.Info("project published",
		zap.String("project", p.Name),
		zap.String("owner", owner),
		zap.String("visibility", p.Visibility),
		zap.Bool("www", p.WWW),
	)
	common.WriteJSON(w, http.StatusOK, Response{Project: p})
}
