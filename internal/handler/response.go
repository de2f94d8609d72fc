// Package handler translates HTTP requests into service calls and service
// results into JSON responses.
//
// Handlers know about status codes, path parameters and query strings. They
// do not know business rules: every decision about who may see or change
// what is made by the service they call.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/drink-journal/internal/apperror"
	"github.com/sakif/drink-journal/internal/auth"
)

// maxBodyBytes caps request bodies. The largest write is a drink with
// 2000 characters of notes, far below this.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every error reply:
//
//	{"error": "not_found", "message": "drink not found with id abc"}
//
// Fields is set for validation failures, keyed by JSON field name.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already out; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a service error to a status code. Anything that is not an
// *apperror.AppError is a server fault: it is logged and the client gets a
// generic message, never the raw error.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
		return
	}

	status := http.StatusInternalServerError
	kind := "internal_error"
	switch {
	case errors.Is(err, apperror.ErrValidation):
		status, kind = http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		status, kind = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		status, kind = http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		status, kind = http.StatusConflict, "conflict"
	}

	fields := appErr.Fields
	if fields == nil && appErr.Field != "" {
		fields = map[string]string{appErr.Field: appErr.Message}
	}
	writeJSON(w, status, ErrorResponse{
		Error:   kind,
		Message: appErr.Message,
		Fields:  fields,
	})
}

// decodeJSON reads a JSON body into dst. Malformed JSON is a validation
// error so it renders as 400 like every other bad input.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperror.ValidationFailed("body", "request body is too large")
		}
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	return nil
}

// userID returns the authenticated caller. The server only mounts handlers
// behind the middleware that sets it, so a miss is answered with 401.
func userID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, r, logger, apperror.Unauthorized("authentication required"))
		return "", false
	}
	return id, true
}
