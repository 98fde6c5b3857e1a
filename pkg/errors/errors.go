// Package errors defines the error taxonomy of the creative pipeline.
//
// Every failure the pipeline can report carries a machine-readable Code so
// callers can branch on the category without string matching:
//
//	pl, err := geometry.Plan(src, target, offset, policy, threshold)
//	if errors.Is(err, errors.ErrCodeInvalidDimensions) {
//	    // reject the request before any network call
//	}
//
// Geometry errors are fatal. Unsupported dimensions and remote failures are
// consumed by the outpaint provider, which falls back to a local fill.
// Encoder failures are surfaced by the slideshow renderer and never retried.
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

const (
	// Fatal input errors, rejected before any remote call
	ErrCodeInvalidDimensions Code = "INVALID_DIMENSIONS"
	ErrCodeInvalidOffset     Code = "INVALID_OFFSET"
	ErrCodeInvalidFormat     Code = "INVALID_FORMAT"
	ErrCodeInvalidConfig     Code = "INVALID_CONFIG"

	// Remote provider errors, consumed by the outpaint fallback
	ErrCodeMissingCredentials    Code = "MISSING_CREDENTIALS"
	ErrCodeUnsupportedDimensions Code = "UNSUPPORTED_DIMENSIONS"
	ErrCodeRemoteTransient       Code = "REMOTE_TRANSIENT"
	ErrCodeRemoteFatal           Code = "REMOTE_FATAL"

	// Rendering errors
	ErrCodeEncoderFailure Code = "ENCODER_FAILURE"
	ErrCodeExportBlocked  Code = "EXPORT_BLOCKED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, or "" if there is none.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Transient reports whether err is worth retrying.
func Transient(err error) bool {
	return Is(err, ErrCodeRemoteTransient)
}
