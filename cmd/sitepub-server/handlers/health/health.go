package health

import (
	"context"
	"encoding/json"
	"net/http"
)

// Checker reports whether a dependency is usable
type Checker interface {
	CheckHealth(ctx context.Context) error
}

// Handler processes health check requests
type Handler struct {
	checks  map[string]Checker
	version string
}

// Response represents the health check response
type Response struct {
	Status  string         `json:"status"`
	Version string         `json:"version,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// New creates a health handler reporting on each named component
func New(checks map[string]Checker) *Handler {
	return &Handler{
		checks:  checks,
		version: "unknown",
	}
}

// WithVersion sets the version for health check responses
func (h *Handler) WithVersion(version string) *Handler {
	h.version = version
	return h
}

// ServeHTTP handles health check requests
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	response := Response{
		Status:  "healthy",
		Version: h.version,
		Details: make(map[string]any, len(h.checks)),
	}

	for name, check := range h.checks {
		if err := check.CheckHealth(r.Context()); err != nil {
			response.Status = "unhealthy"
			response.Details[name] = map[string]any{
				"status":  "unhealthy",
				"message": err.Error(),
			}
			continue
		}
		response.Details[name] = map[string]any{
			"status": "healthy",
		}
	}

	if response.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, `{"error":"server_error","error_description":"Error encoding response"}`,
			http.StatusInternalServerError)
		return
	}
}
