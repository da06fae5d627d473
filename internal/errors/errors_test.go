package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeToolFailed, "test error message")

	if err.Code != ErrCodeToolFailed {
		t.Errorf("expected code %s, got %s", ErrCodeToolFailed, err.Code)
	}

	if err.Message != "test error message" {
		t.Errorf("expected message 'test error message', got '%s'", err.Message)
	}

	if err.Cause != nil {
		t.Errorf("expected nil cause, got %v", err.Cause)
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := Wrap(ErrCodeFileReadFailed, "failed to read file", cause)

	if err.Code != ErrCodeFileReadFailed {
		t.Errorf("expected code %s, got %s", ErrCodeFileReadFailed, err.Code)
	}

	if !errors.Is(err, cause) {
		t.Errorf("Wrap should support errors.Is")
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *TaskflowError
		wantCode string
		wantMsg  string
	}{
		{
			name:     "simple error",
			err:      New(ErrCodeApplyInvalid, "invalid change set"),
			wantCode: "APPLY-002",
			wantMsg:  "invalid change set",
		},
		{
			name:     "error with cause",
			err:      Wrap(ErrCodeFileReadFailed, "read failed", fmt.Errorf("permission denied")),
			wantCode: "IO-002",
			wantMsg:  "permission denied",
		},
		{
			name:     "error with suggestions",
			err:      NewToolNotFoundError("grep"),
			wantCode: "TOOL-001",
			wantMsg:  "Suggestions:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()

			if !strings.Contains(errStr, tt.wantCode) {
				t.Errorf("error string should contain code %s, got: %s", tt.wantCode, errStr)
			}

			if !strings.Contains(errStr, tt.wantMsg) {
				t.Errorf("error string should contain '%s', got: %s", tt.wantMsg, errStr)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NewCheckpointNotFoundError("cp-1"))

	if got := CodeOf(wrapped); got != ErrCodeCheckpointNotFound {
		t.Errorf("CodeOf() = %q, want %q", got, ErrCodeCheckpointNotFound)
	}
	if got := CodeOf(fmt.Errorf("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"plain", fmt.Errorf("boom"), "boom"},
		{"coded", NewToolNotFoundError("grep"), "Tool not found: grep"},
		{"coded with cause", NewApplyFailedError("a.txt", fmt.Errorf("denied")), "failed to apply change to a.txt: denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summary(tt.err); got != tt.want {
				t.Errorf("Summary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApprovalDeclinedMessage(t *testing.T) {
	err := NewApprovalDeclinedError()
	if err.Message != "User declined approval" {
		t.Errorf("unexpected message %q", err.Message)
	}
	if len(err.Suggestions) == 0 {
		t.Error("expected at least one suggestion")
	}
}
