package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/lepinkainen/shelfnotes/internal/errors"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "path", r.URL.Path, "status", status, "error", msg, "request_id", RequestIDFrom(r.Context()))
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case apperrors.IsValidationError(err):
		return http.StatusBadRequest
	case apperrors.IsNotFoundError(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError writes err with its mapped status. prefix is prepended
// to messages of server-side failures.
func writeServiceError(w http.ResponseWriter, r *http.Request, prefix string, err error) {
	status := statusFor(err)
	msg := err.Error()
	var vErr *apperrors.ValidationError
	if errors.As(err, &vErr) {
		msg = vErr.Error()
	}
	if status == http.StatusInternalServerError && prefix != "" {
		msg = prefix + ": " + msg
	}
	writeError(w, r, status, msg)
}
