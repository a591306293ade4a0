package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/wrale/sitepub/internal/project"
	"github.com/wrale/sitepub/internal/sharetoken"
	"github.com/wrale/sitepub/internal/validation"
)

// Error codes returned in the error field
const (
	ErrorCodeInvalidRequest  = "invalid_request"
	ErrorCodeInvalidToken    = "invalid_token"
	ErrorCodeNotFound        = "not_found"
	ErrorCodeNameTaken       = "name_taken"
	ErrorCodeTokenRevoked    = "token_revoked"
	ErrorCodeTokenExpired    = "token_expired"
	ErrorCodeTooManyRequests = "too_many_requests"
	ErrorCodeUnavailable     = "temporarily_unavailable"
	ErrorCodeServerError     = "server_error"
)

// ErrorResponse is the JSON error body, shaped like an OAuth 2.0 error response
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// SetJSONHeaders sets the headers of every JSON response
func SetJSONHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
}

// WriteJSON sends v with the given status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	SetJSONHeaders(w)
	data, err := json.Marshal(v)
	if err != nil {
		WriteJSONError(w, err)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

// WriteError sends a standardized error response
func WriteError(w http.ResponseWriter, status int, code string, description string) {
	WriteJSON(w, status, ErrorResponse{
		Error:            code,
		ErrorDescription: strings.TrimSpace(description),
	})
}

// WriteJSONError handles JSON encoding failures with a standardized response
func WriteJSONError(w http.ResponseWriter, err error) {
	SetJSONHeaders(w)
	w.WriteHeader(http.StatusInternalServerError)

	// Written by hand since encoding just failed
	errResponse := []byte(`{"error":"server_error","error_description":"Failed to encode response"}`)
	_, _ = w.Write(errResponse)
}

// WriteServiceError maps a service error to its HTTP response. Unexpected errors are
// logged and reported without detail.
func WriteServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	var verr *validation.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteError(w, http.StatusBadRequest, ErrorCodeInvalidRequest, verr.Error())
	case errors.Is(err, sharetoken.ErrNotFound):
		WriteError(w, http.StatusNotFound, ErrorCodeNotFound, "Share token not found")
	case errors.Is(err, project.ErrNotFound):
		WriteError(w, http.StatusNotFound, ErrorCodeNotFound, "Project not found")
	case errors.Is(err, project.ErrNameTaken):
		WriteError(w, http.StatusConflict, ErrorCodeNameTaken, "Project name is registered to another owner")
	default:
		logger.Error("request failed", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, ErrorCodeServerError,
			"An unexpected error occurred processing the request")
	}
}

// DecodeJSON reads a JSON request body into v, rejecting unknown fields
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}
