// Package apperror defines the application's error taxonomy.
//
// Services return errors wrapped around one of the sentinel values below;
// the HTTP boundary (internal/handler/response.go) maps each sentinel to a
// status code. Services never import net/http and handlers never invent
// status codes ad hoc — the mapping lives in exactly one place.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrCredential      = errors.New("credential error")
)

// AppError carries a sentinel kind plus a human-readable message.
// errors.Is(err, apperror.ErrX) works through the Unwrap chain.
type AppError struct {
	Err     error  // sentinel kind, one of the Err* values above
	Message string // human-readable error message
	Field   string // optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden indicates a valid identity with insufficient rights.
// HTTP handlers map this to 403.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthenticated indicates a missing or invalid session credential.
// HTTP handlers map this to 401.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}

// Credential indicates a failure involving a stored third-party token:
// the token is missing, or the ciphertext cannot be decrypted with the
// current vault secret.
func Credential(message string) *AppError {
	return &AppError{
		Err:     ErrCredential,
		Message: message,
	}
}
