package apperrors

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest indicates the caller supplied a missing or malformed field. Not retryable.
var ErrInvalidRequest = errors.New("invalid request")

// ErrConflict indicates an idempotency conflict: another caller holds the key
// in-flight, or the key was replayed with a different payload.
var ErrConflict = errors.New("conflict")

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrUpstreamUnavailable indicates an external dataset or feed could not be fetched after retries.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// ErrComputation indicates an unexpected internal fault during compose/merge.
var ErrComputation = errors.New("computation error")

// AppError wraps an underlying error with a status code and message.
type AppError struct {
	Code    int
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a generic AppError with the given code and cause.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NewValidationError creates an AppError wrapping ErrInvalidRequest.
func NewValidationError(message string) *AppError {
	return &AppError{Code: 400, Message: message, Err: ErrInvalidRequest}
}

// NewConflictError creates an AppError wrapping ErrConflict.
func NewConflictError(message string) *AppError {
	return &AppError{Code: 409, Message: message, Err: ErrConflict}
}

// NewNotFoundError creates an AppError wrapping ErrNotFound.
func NewNotFoundError(message string) *AppError {
	return &AppError{Code: 404, Message: message, Err: ErrNotFound}
}

// NewUpstreamError creates an AppError wrapping ErrUpstreamUnavailable.
func NewUpstreamError(message string, err error) *AppError {
	return &AppError{Code: 502, Message: message, Err: errors.Join(ErrUpstreamUnavailable, err)}
}
