package cli

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"strings"

	"github.com/rileyhilliard/proxmon/internal/api"
	"github.com/rileyhilliard/proxmon/internal/errors"
)

// Machine mode flag - when true, outputs JSON and suppresses human-friendly decorations
var machineMode bool

// MachineMode returns true if machine-readable output is enabled
func MachineMode() bool {
	return machineMode
}

// JSONEnvelope wraps command output in a consistent structure for machine parsing.
// All --json output should use this envelope.
type JSONEnvelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *JSONError  `json:"error,omitempty"`
}

// JSONError provides structured error information for machine parsing.
type JSONError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
	Details    interface{} `json:"details,omitempty"`
}

// Error codes for machine-readable output.
const (
	ErrCodeConfigNotFound   = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "CONFIG_INVALID"
	ErrCodeNotLoggedIn      = "NOT_LOGGED_IN"
	ErrCodeSessionEnded     = "SESSION_ENDED"
	ErrCodeBadCredentials   = "BAD_CREDENTIALS"
	ErrCodeAccountDisabled  = "ACCOUNT_DISABLED"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeRejected         = "REJECTED"
	ErrCodeUnreachable      = "SERVER_UNREACHABLE"
	ErrCodeServerError      = "SERVER_ERROR"
	ErrCodeBusy             = "BUSY"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeUnknown          = "UNKNOWN"
)

// WriteJSONSuccess writes a successful response with data to the writer.
func WriteJSONSuccess(w io.Writer, data interface{}) error {
	env := JSONEnvelope{
		Success: true,
		Data:    data,
	}
	return writeJSONEnvelope(w, env)
}

// WriteJSONError writes an error response to the writer.
func WriteJSONError(w io.Writer, code, message, suggestion string, details interface{}) error {
	env := JSONEnvelope{
		Success: false,
		Error: &JSONError{
			Code:       code,
			Message:    message,
			Suggestion: suggestion,
			Details:    details,
		},
	}
	return writeJSONEnvelope(w, env)
}

// WriteJSONFromError converts a Go error to a JSON error response.
func WriteJSONFromError(w io.Writer, err error) error {
	jsonErr := ErrorToJSON(err)
	env := JSONEnvelope{
		Success: false,
		Error:   jsonErr,
	}
	return writeJSONEnvelope(w, env)
}

// writeJSONEnvelope writes the envelope with consistent formatting.
func writeJSONEnvelope(w io.Writer, env JSONEnvelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// ErrorToJSON converts a Go error to a JSONError with appropriate code mapping.
func ErrorToJSON(err error) *JSONError {
	if err == nil {
		return nil
	}

	var pmErr *errors.Error
	if !stderrors.As(err, &pmErr) {
		return &JSONError{
			Code:    ErrCodeUnknown,
			Message: err.Error(),
		}
	}

	out := &JSONError{
		Code:       mapErrorCode(pmErr),
		Message:    pmErr.Message,
		Suggestion: pmErr.Suggestion,
	}
	if pmErr.Status != 0 || pmErr.Detail != "" {
		details := map[string]interface{}{}
		if pmErr.Status != 0 {
			details["status"] = pmErr.Status
		}
		if pmErr.Detail != "" {
			details["detail"] = pmErr.Detail
		}
		out.Details = details
	}
	return out
}

// mapErrorCode maps internal error codes to machine-readable codes.
func mapErrorCode(e *errors.Error) string {
	switch e.Code {
	case errors.ErrConfig:
		if e.Status == 0 && strings.Contains(strings.ToLower(e.Message), "not found") {
			return ErrCodeConfigNotFound
		}
		return ErrCodeConfigInvalid
	case errors.ErrAuth:
		switch {
		case e.Message == api.MessageExpired:
			return ErrCodeSessionEnded
		case e.Status == 0:
			return ErrCodeNotLoggedIn
		default:
			return ErrCodeBadCredentials
		}
	case errors.ErrAuthDisabled:
		return ErrCodeAccountDisabled
	case errors.ErrPermission:
		return ErrCodePermissionDenied
	case errors.ErrValidation:
		return ErrCodeRejected
	case errors.ErrNetwork:
		return ErrCodeUnreachable
	case errors.ErrServer:
		return ErrCodeServerError
	case errors.ErrBusy:
		return ErrCodeBusy
	case errors.ErrInput:
		return ErrCodeInvalidInput
	}
	return ErrCodeUnknown
}
