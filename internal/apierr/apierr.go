// Package apierr defines structured error types shared by the storage
// layer and the gateway API.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a specific error class.
type Code string

const (
	// CodeValidationFailed is returned when input data fails validation.
	CodeValidationFailed Code = "VALIDATION_FAILED"
	// CodeMissingField is returned when a required field is missing.
	CodeMissingField Code = "MISSING_FIELD"
	// CodeNotFound is returned when a resource is not found.
	CodeNotFound Code = "NOT_FOUND"
	// CodeMalformedDocument is returned when a stored collection document
	// does not have the expected wrapper shape.
	CodeMalformedDocument Code = "MALFORMED_DOCUMENT"
	// CodeStorageError is returned when a blob fetch or upload fails.
	CodeStorageError Code = "STORAGE_ERROR"
	// CodeRegistryConflict is returned when a conditional registry update
	// loses to a concurrent writer.
	CodeRegistryConflict Code = "REGISTRY_CONFLICT"
	// CodeUnauthorized is returned when authentication is missing or invalid.
	CodeUnauthorized Code = "UNAUTHORIZED"
	// CodeRateLimited is returned when a client exceeds its rate limit.
	CodeRateLimited Code = "RATE_LIMITED"
	// CodeInternal is returned on unexpected server errors.
	CodeInternal Code = "INTERNAL_ERROR"
)

// Error carries an error code, an HTTP status, and an optional cause.
type Error struct {
	statusCode int
	code       Code
	message    string
	wrapped    error
}

// New creates an Error with the given status code, code, and message.
func New(statusCode int, code Code, message string) *Error {
	return &Error{statusCode: statusCode, code: code, message: message}
}

// Wrap attaches an underlying cause.
func (e *Error) Wrap(err error) *Error {
	e.wrapped = err
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

// StatusCode returns the HTTP status code.
func (e *Error) StatusCode() int {
	return e.statusCode
}

// Code returns the error code.
func (e *Error) Code() Code {
	return e.code
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.wrapped
}

// NotFound creates a 404 error for the named resource.
func NotFound(resource string) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Sprintf("%s not found", resource))
}

// BadRequest creates a 400 validation error.
func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, CodeValidationFailed, message)
}

// MissingField creates a 400 error for a missing field.
func MissingField(field string) *Error {
	return New(http.StatusBadRequest, CodeMissingField, fmt.Sprintf("missing required field: %s", field))
}

// Unauthorized creates a 401 error.
func Unauthorized() *Error {
	return New(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
}

// Conflict creates a 409 error for a lost conditional registry update.
func Conflict(message string) *Error {
	return New(http.StatusConflict, CodeRegistryConflict, message)
}

// Storage creates a 502 error wrapping a failed storage operation.
func Storage(message string, err error) *Error {
	return New(http.StatusBadGateway, CodeStorageError, message).Wrap(err)
}

// Internal creates a 500 error.
func Internal(message string) *Error {
	return New(http.StatusInternalServerError, CodeInternal, message)
}

// IsNotFound reports whether err carries CodeNotFound.
func IsNotFound(err error) bool {
	return hasCode(err, CodeNotFound)
}

// IsConflict reports whether err carries CodeRegistryConflict.
func IsConflict(err error) bool {
	return hasCode(err, CodeRegistryConflict)
}

func hasCode(err error, code Code) bool {
	var e *Error
	return errors.As(err, &e) && e.code == code
}
