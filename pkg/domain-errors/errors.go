// Package dErrors provides coded domain errors shared across modules.
//
// Services wrap infrastructure errors with a code and a safe message; the
// HTTP layer maps codes to status codes and decides which descriptions are
// visible to callers. Use sentinel errors (pkg/platform/sentinel) for raw
// infrastructure facts and translate them here at the service boundary.
package dErrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for transport mapping and retry policy.
type Code string

const (
	CodeBadRequest    Code = "bad_request"
	CodeUnauthorized  Code = "unauthorized"
	CodeForbidden     Code = "forbidden"
	CodeNotFound      Code = "not_found"
	CodeConflict      Code = "conflict"
	CodeUnavailable   Code = "unavailable"
	CodeSigningFailed Code = "signing_failed"
	CodeInternal      Code = "internal_error"
)

// Error is a domain error with a classification code.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a domain error without an underlying cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. If err is already
// a domain error its code is preserved and only context is added, so the
// outermost classification made at the point of knowledge wins.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return &Error{Code: de.Code, Message: message, cause: err}
	}
	return &Error{Code: code, Message: message, cause: err}
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// unclassified errors so nothing leaks as a 200 or a raw 500 message.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the caller-safe message of err, empty for unclassified
// errors.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
