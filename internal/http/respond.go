package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"moneta/internal/core"
)

const maxBodyBytes = 1 << 20 // 1MB

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// writeError maps the core error taxonomy onto HTTP statuses. Compensation
// failures are checked first: they can wrap any cause and must never be
// downgraded to the cause's status.
func writeError(r *http.Request, w http.ResponseWriter, err error) {
	switch {
	case core.IsFatal(err):
		slog.ErrorContext(r.Context(), "FATAL: compensation failed, manual reconciliation required",
			"error", err, "path", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{Error: "internal inconsistency, contact support"})
	case errors.Is(err, core.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, core.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, core.ErrBackendUnavailable):
		slog.ErrorContext(r.Context(), "storage unavailable", "error", err, "path", r.URL.Path)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "storage unavailable"})
	default:
		slog.ErrorContext(r.Context(), "unhandled error", "error", err, "path", r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return core.Validationf("body", "malformed JSON: %v", err)
	}
	if dec.More() {
		return core.Validationf("body", "unexpected trailing data")
	}
	return nil
}
