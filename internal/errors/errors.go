package errors

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// Configuration errors - missing or invalid configuration
	ErrorTypeConfig ErrorType = iota
	// Filter validation errors - raised before any network access
	ErrorTypeFilterValidation
	// Permanent API errors - 4xx other than rate limiting, never retried
	ErrorTypePermanentAPI
	// Transient API errors - network failure or 5xx after retries ran out
	ErrorTypeTransientAPI
	// Internal errors - unexpected internal state
	ErrorTypeInternal
)

// Severity represents how critical an error is
type Severity int

const (
	// SeverityLow - can continue with degraded functionality
	SeverityLow Severity = iota
	// SeverityMedium - should be addressed but not fatal
	SeverityMedium
	// SeverityHigh - significant issue, the operation failed
	SeverityHigh
	// SeverityCritical - must be addressed, stops execution
	SeverityCritical
)

// Error represents a structured error with context
type Error struct {
	Type       ErrorType
	Severity   Severity
	Message    string
	StatusCode int // Remote HTTP status, 0 when no response was received
	Attempts   int // Attempts made before giving up (transient errors only)
	Cause      error
	Context    map[string]interface{}
	StackTrace string
}

// Sentinels for use with the standard library errors.Is.
// Matching compares only the ErrorType.
var (
	ErrConfig           = &Error{Type: ErrorTypeConfig}
	ErrFilterValidation = &Error{Type: ErrorTypeFilterValidation}
	ErrPermanentAPI     = &Error{Type: ErrorTypePermanentAPI}
	ErrTransientAPI     = &Error{Type: ErrorTypeTransientAPI}
)

// Error implements the error interface
func (e *Error) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Is checks if this error matches the target error type
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// DetailedString returns a detailed error message with context
func (e *Error) DetailedString() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] [%s] %s\n",
		severityString(e.Severity),
		typeString(e.Type),
		e.Message))

	if e.StatusCode != 0 {
		sb.WriteString(fmt.Sprintf("Status: %d\n", e.StatusCode))
	}
	if e.Attempts > 0 {
		sb.WriteString(fmt.Sprintf("Attempts: %d\n", e.Attempts))
	}
	if e.Cause != nil {
		sb.WriteString(fmt.Sprintf("Caused by: %v\n", e.Cause))
	}

	if len(e.Context) > 0 {
		sb.WriteString("Context:\n")
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, e.Context[k]))
		}
	}

	if e.StackTrace != "" {
		sb.WriteString(fmt.Sprintf("Stack trace:\n%s\n", e.StackTrace))
	}

	return sb.String()
}

func typeString(t ErrorType) string {
	switch t {
	case ErrorTypeConfig:
		return "CONFIG"
	case ErrorTypeFilterValidation:
		return "FILTER_VALIDATION"
	case ErrorTypePermanentAPI:
		return "PERMANENT_API"
	case ErrorTypeTransientAPI:
		return "TRANSIENT_API"
	case ErrorTypeInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

func severityString(s Severity) string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// captureStackTrace captures the current stack trace
func captureStackTrace(skip int) string {
	var sb strings.Builder
	for i := skip; i < skip+10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fn := runtime.FuncForPC(pc)
		if fn == nil {
			break
		}
		sb.WriteString(fmt.Sprintf("  %s:%d %s\n", file, line, fn.Name()))
	}
	return sb.String()
}

// New creates a new error with the given type, severity, and message
func New(errType ErrorType, severity Severity, message string) *Error {
	return &Error{
		Type:       errType,
		Severity:   severity,
		Message:    message,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(2),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, severity Severity, message string) *Error {
	if err == nil {
		return nil
	}

	return &Error{
		Type:       errType,
		Severity:   severity,
		Message:    message,
		Cause:      err,
		Context:    make(map[string]interface{}),
		StackTrace: captureStackTrace(2),
	}
}

// ConfigError creates a configuration error
func ConfigError(message string) *Error {
	return New(ErrorTypeConfig, SeverityCritical, message)
}

// ConfigErrorf creates a configuration error with formatting
func ConfigErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeConfig, SeverityCritical, fmt.Sprintf(format, args...))
}

// FilterValidationError creates a filter validation error
func FilterValidationError(message string) *Error {
	return New(ErrorTypeFilterValidation, SeverityHigh, message)
}

// FilterValidationErrorf creates a filter validation error with formatting
func FilterValidationErrorf(format string, args ...interface{}) *Error {
	return New(ErrorTypeFilterValidation, SeverityHigh, fmt.Sprintf(format, args...))
}

// PermanentAPIError reports a non-retryable 4xx response
func PermanentAPIError(statusCode int, message string) *Error {
	e := New(ErrorTypePermanentAPI, SeverityHigh, message)
	e.StatusCode = statusCode
	return e
}

// TransientAPIError wraps the last failure observed after retries ran out
func TransientAPIError(cause error, statusCode, attempts int) *Error {
	e := Wrap(cause, ErrorTypeTransientAPI, SeverityHigh, "upstream request failed after retries")
	if e == nil {
		e = New(ErrorTypeTransientAPI, SeverityHigh, "upstream request failed after retries")
	}
	e.StatusCode = statusCode
	e.Attempts = attempts
	return e
}

// StatusCode returns the remote status carried by err, or 0
func StatusCode(err error) int {
	if e, ok := asError(err); ok {
		return e.StatusCode
	}
	return 0
}

// UserMessage renders err for the application boundary. It separates
// "the filter was invalid" from "the upstream service failed".
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	e, ok := asError(err)
	if !ok {
		return "unexpected error: " + err.Error()
	}
	switch e.Type {
	case ErrorTypeFilterValidation:
		return "invalid filter: " + e.Message
	case ErrorTypePermanentAPI:
		return fmt.Sprintf("upstream rejected the request (status %d): %s", e.StatusCode, e.Message)
	case ErrorTypeTransientAPI:
		if e.StatusCode == 429 || e.StatusCode == 403 {
			return "upstream service is rate-limited, try again later"
		}
		return "upstream service is unavailable, try again later"
	case ErrorTypeConfig:
		return "configuration error: " + e.Message
	default:
		return "internal error: " + e.Message
	}
}

// Detail renders err for verbose output: the full error chain, then
// the type, context and stack of the first *Error in it.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	e, ok := asError(err)
	if !ok {
		return err.Error() + "\n"
	}
	return err.Error() + "\n" + e.DetailedString()
}

// asError walks the Unwrap chain looking for *Error
func asError(err error) (*Error, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}
