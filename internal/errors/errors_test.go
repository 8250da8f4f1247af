package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	codes := []string{
		ErrConfig,
		ErrAuth,
		ErrAuthDisabled,
		ErrPermission,
		ErrValidation,
		ErrNetwork,
		ErrServer,
		ErrBusy,
		ErrInput,
	}

	seen := make(map[string]bool)
	for _, code := range codes {
		assert.NotEmpty(t, code, "error code should not be empty")
		assert.False(t, seen[code], "error code %q should be unique", code)
		seen[code] = true
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		message    string
		suggestion string
	}{
		{
			name:       "config error",
			code:       ErrConfig,
			message:    "No server configured",
			suggestion: "Run 'proxmon config init'",
		},
		{
			name:       "auth error",
			code:       ErrAuth,
			message:    "Your session has expired",
			suggestion: "Run 'proxmon login'",
		},
		{
			name:       "permission error",
			code:       ErrPermission,
			message:    "Only a superadmin can act on other admins",
			suggestion: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.suggestion)

			require.NotNil(t, err)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.suggestion, err.Suggestion)
			assert.Nil(t, err.Cause)
			assert.Zero(t, err.Status)
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name          string
		err           *Error
		expectedParts []string
	}{
		{
			name:          "basic error formatting",
			err:           New(ErrConfig, "Invalid configuration", "Check config.yaml syntax"),
			expectedParts: []string{"Invalid configuration", "Check config.yaml syntax"},
		},
		{
			name:          "error with failure symbol",
			err:           New(ErrNetwork, "Cannot reach server", "Try again later"),
			expectedParts: []string{"✗", "Cannot reach server"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := tt.err.Error()
			for _, part := range tt.expectedParts {
				assert.Contains(t, output, part)
			}
		})
	}
}

func TestErrorMessageStructure(t *testing.T) {
	err := WrapWithCode(
		errors.New("dial tcp 10.0.0.5:8000: connect: connection refused"),
		ErrNetwork,
		"Cannot reach the ProxMon server",
		"Try again later",
	)

	lines := strings.Split(err.Error(), "\n")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[0]), "✗"))
	assert.Contains(t, lines[0], "Cannot reach the ProxMon server")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying network error")
	wrapped := Wrap(cause, "Request failed")

	require.NotNil(t, wrapped)
	assert.Equal(t, ErrNetwork, wrapped.Code, "Wrap should default to ErrNetwork code")
	assert.Equal(t, cause, wrapped.Cause)
	assert.True(t, errors.Is(wrapped, cause))
}

func TestNewHTTP(t *testing.T) {
	t.Run("detail becomes the message", func(t *testing.T) {
		err := NewHTTP(ErrValidation, 400, "User already exists", "Request rejected")
		assert.Equal(t, "User already exists", err.Message)
		assert.Equal(t, "User already exists", err.Detail)
		assert.Equal(t, 400, err.Status)
	})

	t.Run("fallback without detail", func(t *testing.T) {
		err := NewHTTP(ErrServer, 502, "", "Server error (502)")
		assert.Equal(t, "Server error (502)", err.Message)
		assert.Empty(t, err.Detail)
	})
}

func TestIsCode(t *testing.T) {
	err := New(ErrConfig, "Config error", "")

	assert.True(t, IsCode(err, ErrConfig))
	assert.False(t, IsCode(err, ErrNetwork))
	assert.False(t, IsCode(errors.New("standard error"), ErrConfig))
	assert.False(t, IsCode(nil, ErrConfig))

	wrapped := fmt.Errorf("context: %w", New(ErrBusy, "pending", ""))
	assert.True(t, IsCode(wrapped, ErrBusy))
}

func TestIsAuth(t *testing.T) {
	assert.True(t, IsAuth(New(ErrAuth, "expired", "")))
	assert.True(t, IsAuth(New(ErrAuthDisabled, "disabled", "")))
	assert.False(t, IsAuth(New(ErrPermission, "nope", "")))
	assert.False(t, IsAuth(nil))
}

func TestAccessors(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewHTTP(ErrPermission, 403, "forbidden", ""))

	assert.Equal(t, ErrPermission, Code(err))
	assert.Equal(t, 403, Status(err))
	assert.Equal(t, "forbidden", Message(err))
	assert.Equal(t, "forbidden", Detail(err))
	assert.Equal(t, "", Detail(New(ErrInput, "local", "")))

	plain := errors.New("plain")
	assert.Equal(t, "", Code(plain))
	assert.Equal(t, 0, Status(plain))
	assert.Equal(t, "", Detail(plain))
	assert.Equal(t, "plain", Message(plain))
	assert.Equal(t, "", Message(nil))
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOk   bool
	}{
		{name: "ExitError returns code", err: NewExitError(2), wantCode: 2, wantOk: true},
		{name: "wrapped ExitError", err: fmt.Errorf("x: %w", NewExitError(3)), wantCode: 3, wantOk: true},
		{name: "standard error returns false", err: errors.New("standard error")},
		{name: "nil error returns false", err: nil},
		{name: "structured Error returns false", err: New(ErrAuth, "test", "")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := GetExitCode(tt.err)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestExitError_Message(t *testing.T) {
	assert.Equal(t, "exit code 2", NewExitError(2).Error())
}
