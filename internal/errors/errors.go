// Package errors provides standardized domain errors with codes for the
// ingestion pipeline.
//
// Usage:
//
//	// In clients - return typed errors
//	if resp.StatusCode == http.StatusNotFound {
//	    return errors.NotFoundf("record %s does not exist", uri)
//	}
//
//	// In callers - check with errors.Is
//	if errors.Is(err, errors.ErrNotFound) {
//	    // terminal for this subject, skip without retrying
//	}
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

// Error codes used throughout the pipeline. They mirror the failure
// taxonomy: not-found is terminal per subject, rate-limited and transient
// are retryable, decode drops a single frame, validation is fatal at
// startup only.
const (
	CodeNotFound    Code = "NOT_FOUND"
	CodeRateLimited Code = "RATE_LIMITED"
	CodeTransient   Code = "TRANSIENT"
	CodeDecode      Code = "DECODE"
	CodeValidation  Code = "VALIDATION"
	CodeInternal    Code = "INTERNAL"
)

// Retryable reports whether operations failing with this code should be
// re-attempted.
func (c Code) Retryable() bool {
	return c == CodeRateLimited || c == CodeTransient
}

// Error is a domain error with a code, message, and optional cause.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error  // unexported, for wrapping
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether target matches this error.
// Matches if target is an *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Retryable reports whether this error's code is retryable.
func (e *Error) Retryable() bool {
	return e.Code.Retryable()
}

// Sentinel errors for use with errors.Is().
var (
	ErrNotFound    = &Error{Code: CodeNotFound, Message: "not found"}
	ErrRateLimited = &Error{Code: CodeRateLimited, Message: "rate limited"}
	ErrTransient   = &Error{Code: CodeTransient, Message: "transient failure"}
	ErrDecode      = &Error{Code: CodeDecode, Message: "decode failure"}
	ErrValidation  = &Error{Code: CodeValidation, Message: "validation error"}
	ErrInternal    = &Error{Code: CodeInternal, Message: "internal error"}
)

// Constructor functions for creating errors with custom messages.

// NotFound creates a not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// NotFoundf creates a not found error with formatted message.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// RateLimited creates a rate limited error.
func RateLimited(msg string) *Error {
	return &Error{Code: CodeRateLimited, Message: msg}
}

// Transient creates a transient error.
func Transient(msg string) *Error {
	return &Error{Code: CodeTransient, Message: msg}
}

// Transientf creates a transient error with formatted message.
func Transientf(format string, args ...any) *Error {
	return &Error{Code: CodeTransient, Message: fmt.Sprintf(format, args...)}
}

// Decode creates a decode error.
func Decode(msg string) *Error {
	return &Error{Code: CodeDecode, Message: msg}
}

// Decodef creates a decode error with formatted message.
func Decodef(format string, args ...any) *Error {
	return &Error{Code: CodeDecode, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Internalf creates an internal error with formatted message.
func Internalf(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
