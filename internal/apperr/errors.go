// Package apperr defines the errors surfaced to HTTP clients.
package apperr

import (
	"fmt"
	"net/http"
)

// Error is a domain error carrying the HTTP status it maps to.
type Error struct {
	Code    int    // HTTP status code
	Message string // User-facing message
	Err     error  // Underlying cause, never shown to clients
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so customized copies still
// satisfy errors.Is against the sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// HTTPCode returns the HTTP status code associated with this error.
func (e *Error) HTTPCode() int { return e.Code }

// WithMessage returns a copy with a custom message.
func (e *Error) WithMessage(msg string) *Error {
	return &Error{Code: e.Code, Message: msg, Err: e.Err}
}

// WithCause returns a copy wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err}
}

// InternalMessage is the only text a client ever sees for a 500.
const InternalMessage = "Internal server error"

var (
	ErrValidation = &Error{Code: http.StatusBadRequest, Message: "invalid input"}
	ErrNotFound   = &Error{Code: http.StatusNotFound, Message: "resource not found"}
	ErrConflict   = &Error{Code: http.StatusConflict, Message: "resource already exists"}
	ErrInternal   = &Error{Code: http.StatusInternalServerError, Message: InternalMessage}
)
