package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error carries a stable machine code, a human message and the HTTP status
// the API should answer with. Err holds the underlying cause and never
// reaches the wire.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New builds a standalone typed error.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap builds a typed error around an underlying cause.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Sentinel errors shared across services. Handlers compare codes, so reuse
// these via Clone when a more specific message is needed.
var (
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrNoAvailableSection = New("NO_AVAILABLE_SECTION", http.StatusConflict, "no available section")
	ErrCapacityExceeded   = New("CAPACITY_EXCEEDED", http.StatusConflict, "section capacity exceeded")
	ErrPrerequisiteNotMet = New("PREREQUISITE_NOT_MET", http.StatusUnprocessableEntity, "prerequisites not met")
	ErrEmptyCatalog       = New("EMPTY_CATALOG", http.StatusUnprocessableEntity, "course catalog is empty")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
)

// FromError coerces any error into an *Error, defaulting unknown causes to
// an internal error so nothing leaks raw driver messages to clients.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone copies a sentinel, optionally overriding its message. The code and
// status stay intact so handler comparisons keep working.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
