// Package errors provides structured error types for itchpage.
//
// The asset pipelines surface four kinds of failures to their callers:
//   - VALIDATION: no images supplied, nothing valid after filtering, or an
//     output contract (cover aspect ratio) that does not hold
//   - CONVERSION: a decode or encode failure while re-encoding frames
//   - EXTERNAL_TOOL: the codec toolchain failed or timed out
//   - CONFIGURATION: an unreadable or malformed descriptor/preferences file
//
// Numeric parameters that are merely out of range (gutter, byte budget) are
// clamped to defaults by the pipelines and never produce an error.
//
// # Usage
//
//	err := errors.Validation("no images provided")
//	if errors.Is(err, errors.ErrCodeValidation) {
//	    // report to the user
//	}
//
//	// Wrap a library failure
//	err := errors.Conversion(cause, "encode %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for the failure kinds surfaced by the pipelines.
const (
	ErrCodeValidation    Code = "VALIDATION"
	ErrCodeConversion    Code = "CONVERSION"
	ErrCodeExternalTool  Code = "EXTERNAL_TOOL"
	ErrCodeTimeout       Code = "TIMEOUT"
	ErrCodeConfiguration Code = "CONFIGURATION"
	ErrCodeNotFound      Code = "NOT_FOUND"
	ErrCodeInternal      Code = "INTERNAL_ERROR"
)

// Sentinel causes shared by several packages.
var (
	// ErrNoImages is the cause attached when an operation receives no usable images.
	ErrNoImages = errors.New("no images")

	// ErrAspectRatio is the cause attached when a rendered asset violates its aspect contract.
	ErrAspectRatio = errors.New("aspect ratio mismatch")

	// ErrToolUnavailable is returned when the codec toolchain is not installed.
	ErrToolUnavailable = errors.New("codec toolchain unavailable")
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
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

// Validation returns a VALIDATION error.
func Validation(format string, args ...any) *Error {
	return New(ErrCodeValidation, format, args...)
}

// Conversion returns a CONVERSION error carrying the underlying image-library cause.
func Conversion(cause error, format string, args ...any) *Error {
	return Wrap(ErrCodeConversion, cause, format, args...)
}

// ExternalTool returns an EXTERNAL_TOOL error for a failed toolchain invocation.
func ExternalTool(cause error, format string, args ...any) *Error {
	return Wrap(ErrCodeExternalTool, cause, format, args...)
}

// Configuration returns a CONFIGURATION error.
func Configuration(cause error, format string, args ...any) *Error {
	return Wrap(ErrCodeConfiguration, cause, format, args...)
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

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Cause)
		}
		return e.Message
	}
	return err.Error()
}

// IsRecoverable reports whether a caller may fall back to another strategy
// instead of aborting. Toolchain failures and timeouts are recoverable.
func IsRecoverable(err error) bool {
	code := GetCode(err)
	return code == ErrCodeExternalTool || code == ErrCodeTimeout
}
