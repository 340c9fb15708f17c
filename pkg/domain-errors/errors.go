// Package dErrors provides coded domain errors shared across services.
//
// Services return these instead of raw errors so transport layers can map
// outcomes to HTTP statuses without string matching, and so tests can assert
// on error class rather than message text.
package dErrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain error.
type Code string

// Supported error codes.
const (
	// CodeValidation marks input that fails domain validation rules.
	CodeValidation Code = "validation"
	// CodeInvalidInput marks malformed primitives (ids, enums) at trust boundaries.
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest marks requests that are syntactically unusable.
	CodeBadRequest Code = "bad_request"
	// CodeNotFound marks lookups whose target does not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict marks operations that collide with existing state.
	CodeConflict Code = "conflict"
	// CodeUnauthorized marks missing or unverifiable credentials.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks authenticated callers without permission.
	CodeForbidden Code = "forbidden"
	// CodeTimeout marks operations that exceeded their deadline.
	CodeTimeout Code = "timeout"
	// CodeExternal marks upstream dependency failures (network, remote 5xx).
	CodeExternal Code = "external"
	// CodePartialFailure marks multi-step operations that completed some steps
	// before failing.
	CodePartialFailure Code = "partial_failure"
	// CodeInvariantViolation marks states that should be impossible; these
	// indicate bugs, not caller mistakes.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInternal marks unexpected internal failures.
	CodeInternal Code = "internal_error"
)

// Error is a domain error with a machine-readable code.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another domain error by code and message, so tests can compare
// against a freshly built error value with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates an existing error with a code and message while keeping the
// cause reachable via errors.Unwrap.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// Is is an alias of HasCode; it reads better in test assertions.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// GetCode returns the code of the first domain error in the chain, or
// CodeInternal when the error is not a domain error.
func GetCode(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the HTTP status used by transport layers.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeInvalidInput, CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeExternal:
		return http.StatusBadGateway
	case CodePartialFailure:
		return http.StatusBadGateway
	case CodeInvariantViolation, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
