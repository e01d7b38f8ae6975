package handler

// Response helpers: every endpoint sends JSON through writeJSON and maps
// service errors through writeError, so the error contract lives in
// exactly one place.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gohost/backend/internal/apperror"
)

// ErrorResponse is the error shape returned by every API endpoint:
//
//	{"error": "not_found", "message": "user not found with id abc"}
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already out; logging is all that's left.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError translates the apperror taxonomy to HTTP.
//
// Credential errors (a missing or unsealable third-party token) map to
// 404: from the client's point of view the linked credential does not
// exist and the fix is to run the provider flow again.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrUnauthenticated):
			status = http.StatusUnauthorized
			errorType = "unauthenticated"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrCredential):
			status = http.StatusNotFound
			errorType = "credential_error"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		}

		writeJSON(w, status, ErrorResponse{Error: errorType, Message: appErr.Message})
		return
	}

	// Unknown error: generic 500, details stay in the logs.
	slog.Error("unhandled error at HTTP boundary", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "an unexpected error occurred",
	})
}

// decodeJSON reads a request body into dst, rejecting malformed JSON
// with a validation error.
func decodeJSON(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	return nil
}
