// Package errors provides structured error types for brewdeps.
//
// Every failure a user can see carries a Code so the CLI can print a
// consistent message and exit with a stable status:
//
//	err := errors.New(errors.ErrCodePackageNotFound, "formula %q is not installed", name)
//	if errors.Is(err, errors.ErrCodePackageNotFound) {
//	    // ...
//	}
//
//	// Wrap an underlying cause
//	err := errors.Wrap(errors.ErrCodeDataUnavailable, execErr, "brew info failed")
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

const (
	// ErrCodeDataUnavailable means the installed-package registry could not
	// be fetched (brew missing, non-zero exit, unparseable output).
	ErrCodeDataUnavailable Code = "DATA_UNAVAILABLE"

	// ErrCodePackageNotFound means the requested name/kind is not installed.
	ErrCodePackageNotFound Code = "PACKAGE_NOT_FOUND"

	// ErrCodeCacheCorrupt means the cache file exists but cannot be used.
	// It is never fatal; callers treat it as a cache miss.
	ErrCodeCacheCorrupt Code = "CACHE_CORRUPT"

	// ErrCodeRenderToolMissing means the graph description was written but
	// could not be rendered to an image.
	ErrCodeRenderToolMissing Code = "RENDER_TOOL_MISSING"

	// ErrCodeInvalidInput covers bad flag or config values.
	ErrCodeInvalidInput Code = "INVALID_INPUT"
)

// Exit statuses returned by ExitCode.
const (
	ExitFailure         = 1
	ExitPackageNotFound = 2
	ExitDataUnavailable = 3
	ExitRenderFailed    = 4
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface. The code is omitted so messages
// read naturally on a terminal; use CodeOf to inspect it.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
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

// CodeOf returns the code of the outermost *Error in err's chain, or ""
// if there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether any *Error in err's chain carries code.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case Is(err, ErrCodePackageNotFound):
		return ExitPackageNotFound
	case Is(err, ErrCodeDataUnavailable):
		return ExitDataUnavailable
	case Is(err, ErrCodeRenderToolMissing):
		return ExitRenderFailed
	default:
		return ExitFailure
	}
}
