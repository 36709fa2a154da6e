// Package errors provides structured error handling for atsync
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrorType represents the category of error. The per-record types mirror
// the reason strings written to run report error entries.
type ErrorType string

const (
	// ErrorTypeOwnerNotFound means the owning record of a reference could not be resolved
	ErrorTypeOwnerNotFound ErrorType = "owner_not_found"
	// ErrorTypeJobNotFound means a referenced job does not exist at the destination
	ErrorTypeJobNotFound ErrorType = "job_not_found"
	// ErrorTypeRateLimit means the destination throttled us past the retry budget
	ErrorTypeRateLimit ErrorType = "rate_limit_exceeded"
	// ErrorTypeTransport means a network or 5xx failure after retries were exhausted
	ErrorTypeTransport ErrorType = "transport_error"
	// ErrorTypeCreateFailed means a POST create was rejected with a non-conflict status
	ErrorTypeCreateFailed ErrorType = "create_failed"
	// ErrorTypeFindFailed means the conflict fallback lookup found no record
	ErrorTypeFindFailed ErrorType = "find_failed"
	// ErrorTypePatchFailed means the PATCH after a conflict was rejected
	ErrorTypePatchFailed ErrorType = "patch_failed"
	// ErrorTypeAmbiguousMatch means an external-id lookup returned multiple records
	ErrorTypeAmbiguousMatch ErrorType = "ambiguous_match"
	// ErrorTypeCFUnmapped means a custom field has no destination field mapping
	ErrorTypeCFUnmapped ErrorType = "cf_unmapped"
	// ErrorTypeAuthentication represents authentication errors (fatal to the run)
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
	// ErrorTypeData represents data processing errors (malformed graph, bad payloads)
	ErrorTypeData ErrorType = "data"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Details map[string]interface{}
	Stack   []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Detail returns a previously attached detail value, or nil.
func (e *Error) Detail(key string) interface{} {
	if e.Details == nil {
		return nil
	}
	return e.Details[key]
}

// New creates a new error with the given type and message
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Stack:   captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	if err == nil {
		return nil
	}

	// If already our error type, preserve the stack
	var existingErr *Error
	if errors.As(err, &existingErr) {
		return &Error{
			Type:    errType,
			Message: message,
			Cause:   err,
			Stack:   existingErr.Stack,
		}
	}

	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
		Stack:   captureStack(2),
	}
}

// IsRetryable returns true if the error is retryable
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}

	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeTimeout, ErrorTypeTransport:
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error must abort the whole run. Only
// authentication failures and unreadable graph input qualify; everything
// else is converted to a run report entry.
func IsFatal(err error) bool {
	return IsType(err, ErrorTypeAuthentication) || IsType(err, ErrorTypeData)
}

// IsType checks if the error is of the given type
func IsType(err error, errType ErrorType) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Type == errType
}

// TypeOf returns the error's type, or empty string for foreign errors.
func TypeOf(err error) ErrorType {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Type
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
