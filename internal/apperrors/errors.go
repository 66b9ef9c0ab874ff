// Package apperrors defines the error taxonomy shared by the service and the workflow clients.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds. Use errors.Is to classify a returned error.
var (
	// ErrValidation indicates a missing or empty required field. Never reaches the network.
	ErrValidation = errors.New("validation error")

	// ErrAuthentication indicates there is no usable caller session
	ErrAuthentication = errors.New("authentication error")

	// ErrPermission indicates a role or ownership mismatch
	ErrPermission = errors.New("permission error")

	// ErrConflict indicates a transition attempted from an invalid state
	ErrConflict = errors.New("conflict error")

	// ErrNotFound indicates the item is missing
	ErrNotFound = errors.New("not found error")

	// ErrTransport indicates a network or server failure
	ErrTransport = errors.New("transport error")

	// ErrInvalidInput indicates a programming-level misuse, such as staging a nil file
	ErrInvalidInput = errors.New("invalid input error")
)

// Error carries the kind, the failed operation and a user-facing message
type Error struct {
	Kind    error
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Is reports whether target is the kind of this error
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind error, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Validation creates a validation error
func Validation(op, message string) *Error {
	return newError(ErrValidation, op, message)
}

// Authentication creates an authentication error
func Authentication(op, message string) *Error {
	return newError(ErrAuthentication, op, message)
}

// Permission creates a permission error
func Permission(op, message string) *Error {
	return newError(ErrPermission, op, message)
}

// Conflict creates a conflict error
func Conflict(op, message string) *Error {
	return newError(ErrConflict, op, message)
}

// NotFound creates a not found error
func NotFound(op, message string) *Error {
	return newError(ErrNotFound, op, message)
}

// InvalidInput creates an invalid input error
func InvalidInput(op, message string) *Error {
	return newError(ErrInvalidInput, op, message)
}

// Transport creates a transport error wrapping the underlying cause
func Transport(op, message string, err error) *Error {
	e := newError(ErrTransport, op, message)
	e.Err = err
	return e
}

// Message returns the user-facing message of err, or fallback when err carries none
func Message(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}

// HTTPStatus maps an error to the response status used by the handlers
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// FromStatus builds a client-side error from a non-2xx response status and server message
func FromStatus(op string, status int, message string) *Error {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return Validation(op, message)
	case http.StatusUnauthorized:
		return Authentication(op, message)
	case http.StatusForbidden:
		return Permission(op, message)
	case http.StatusNotFound:
		return NotFound(op, message)
	case http.StatusConflict:
		return Conflict(op, message)
	default:
		return Transport(op, message, fmt.Errorf("unexpected status %d", status))
	}
}
