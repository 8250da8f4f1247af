package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors
const (
	ErrConfig       = "CONFIG"
	ErrAuth         = "AUTH"          // 401, or bad login credentials
	ErrAuthDisabled = "AUTH_DISABLED" // account disabled by an administrator
	ErrPermission   = "PERMISSION"    // refused by the server or by the authorization gate
	ErrValidation   = "VALIDATION"    // 4xx with a detail message the user can act on
	ErrNetwork      = "NETWORK"       // transport-level failure
	ErrServer       = "SERVER"        // 5xx
	ErrBusy         = "BUSY"          // a mutation against the same target is still pending
	ErrInput        = "INPUT"         // local input rejected before any request
)

// Error represents a structured error with code, message, suggestion, and optional cause.
// Output follows the layout:
//
//	✗ <What failed>
//
//	  <Why it failed - technical details>
//
//	  <How to fix it - actionable steps>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	// Status is the HTTP status that produced the error, 0 when none.
	Status int
	// Detail is the server-provided detail message, if any.
	Detail string
	Cause  error
}

// New creates a new structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps an existing error with a message, defaulting to ErrNetwork code.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrNetwork,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps an existing error with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

// NewHTTP creates an error for a non-success HTTP response.
// The detail is shown as the message when present.
func NewHTTP(code string, status int, detail, fallback string) *Error {
	msg := detail
	if msg == "" {
		msg = fallback
	}
	return &Error{
		Code:    code,
		Message: msg,
		Status:  status,
		Detail:  detail,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder

	// First line: failure symbol + main message
	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	// Include cause if present (why it failed)
	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	// Include suggestion if present (how to fix)
	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode checks if an error is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var pmErr *Error
	if errors.As(err, &pmErr) {
		return pmErr.Code == code
	}
	return false
}

// IsAuth reports whether err ended (or never started) the session.
func IsAuth(err error) bool {
	return IsCode(err, ErrAuth) || IsCode(err, ErrAuthDisabled)
}

// Code returns the code of a structured error, or "" for anything else.
func Code(err error) string {
	var pmErr *Error
	if errors.As(err, &pmErr) {
		return pmErr.Code
	}
	return ""
}

// Status returns the HTTP status carried by err, or 0.
func Status(err error) int {
	var pmErr *Error
	if errors.As(err, &pmErr) {
		return pmErr.Status
	}
	return 0
}

// Detail returns the server-provided detail carried by err, or "".
func Detail(err error) string {
	var pmErr *Error
	if errors.As(err, &pmErr) {
		return pmErr.Detail
	}
	return ""
}

// Message returns a single-line message suitable for a transient notice.
// Structured errors yield their Message; anything else its Error() text.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var pmErr *Error
	if errors.As(err, &pmErr) {
		return pmErr.Message
	}
	return err.Error()
}

// ExitError carries a process exit code without any message of its own.
type ExitError struct {
	Code int
}

// NewExitError creates an ExitError with the given code.
func NewExitError(code int) *ExitError {
	return &ExitError{Code: code}
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// GetExitCode extracts the exit code from an ExitError.
func GetExitCode(err error) (int, bool) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code, true
	}
	return 0, false
}
