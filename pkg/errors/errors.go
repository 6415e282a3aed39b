package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same code, so clones of a sentinel
// still satisfy errors.Is.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	var t *Error
	if !errors.As(target, &t) || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound                = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrPermissionDenied        = New("PERMISSION_DENIED", http.StatusNotFound, "object exists but is not available")
	ErrAmbiguous               = New("AMBIGUOUS", http.StatusBadRequest, "multiple matches found")
	ErrForbidden               = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized            = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrValidation              = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrCast                    = New("CAST_ERROR", http.StatusBadRequest, "value could not be converted")
	ErrInvalidChoice           = New("INVALID_CHOICE", http.StatusBadRequest, "invalid choice")
	ErrRecursionLimit          = New("RECURSION_LIMIT_EXCEEDED", http.StatusBadRequest, "maximum recursion depth exceeded")
	ErrUnsupportedFieldType    = New("UNSUPPORTED_FIELD_TYPE", http.StatusBadRequest, "unsupported field type")
	ErrConflictingRegistration = New("CONFLICTING_REGISTRATION", http.StatusConflict, "conflicting schema registration")
	ErrInternal                = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss               = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
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

// Clone returns a copy of the error allowing for message overrides.
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

// Clonef is Clone with a formatted message.
func Clonef(err *Error, format string, args ...interface{}) *Error {
	return Clone(err, fmt.Sprintf(format, args...))
}

// IsNotFoundClass reports whether err means the target could not be reached,
// either because it is absent or because it is not visible to the actor.
func IsNotFoundClass(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrPermissionDenied)
}

// IsValidationClass reports whether err is a rejected input.
func IsValidationClass(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrCast) || errors.Is(err, ErrInvalidChoice)
}
