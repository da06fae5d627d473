package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Pipeline errors (PIPELINE-001 to PIPELINE-099)
	ErrCodePipelineAgentFailed    ErrorCode = "PIPELINE-001"
	ErrCodePipelineApprovalDenied ErrorCode = "PIPELINE-002"
	ErrCodePipelineUnknownAgent   ErrorCode = "PIPELINE-003"
	ErrCodePipelineCancelled      ErrorCode = "PIPELINE-004"

	// Tool errors (TOOL-001 to TOOL-099)
	ErrCodeToolNotFound    ErrorCode = "TOOL-001"
	ErrCodeToolFailed      ErrorCode = "TOOL-002"
	ErrCodeToolInvalidArgs ErrorCode = "TOOL-003"
	ErrCodeToolDuplicate   ErrorCode = "TOOL-004"
	ErrCodeToolOutsideRoot ErrorCode = "TOOL-005"

	// Checkpoint errors (CHECKPOINT-001 to CHECKPOINT-099)
	ErrCodeCheckpointNotFound ErrorCode = "CHECKPOINT-001"
	ErrCodeCheckpointCorrupt  ErrorCode = "CHECKPOINT-002"
	ErrCodeCheckpointWrite    ErrorCode = "CHECKPOINT-003"

	// Apply errors (APPLY-001 to APPLY-099)
	ErrCodeApplyFailed     ErrorCode = "APPLY-001"
	ErrCodeApplyInvalid    ErrorCode = "APPLY-002"
	ErrCodeApplyRolledBack ErrorCode = "APPLY-003"

	// Provider errors (PROVIDER-001 to PROVIDER-099)
	ErrCodeProviderUnavailable ErrorCode = "PROVIDER-001"
	ErrCodeProviderFailed      ErrorCode = "PROVIDER-002"
	ErrCodeProviderTimeout     ErrorCode = "PROVIDER-003"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"
	ErrCodeConfigLoad    ErrorCode = "CONFIG-002"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeFileUnmarshal   ErrorCode = "IO-005"
)

// TaskflowError represents an error with a code, remediation suggestions and an optional cause
type TaskflowError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *TaskflowError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *TaskflowError) Unwrap() error {
	return e.Cause
}

// New creates a new TaskflowError
func New(code ErrorCode, message string) *TaskflowError {
	return &TaskflowError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new TaskflowError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *TaskflowError {
	return &TaskflowError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *TaskflowError) WithSuggestion(suggestion string) *TaskflowError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *TaskflowError) WithSuggestions(suggestions ...string) *TaskflowError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// CodeOf returns the code of the first TaskflowError in err's chain, or "" if there is none.
func CodeOf(err error) ErrorCode {
	var tfErr *TaskflowError
	if errors.As(err, &tfErr) {
		return tfErr.Code
	}
	return ""
}

// Summary returns the message without the suggestion block, suitable for result fields.
func Summary(err error) string {
	if err == nil {
		return ""
	}
	var tfErr *TaskflowError
	if errors.As(err, &tfErr) {
		if tfErr.Cause != nil {
			return fmt.Sprintf("%s: %v", tfErr.Message, tfErr.Cause)
		}
		return tfErr.Message
	}
	return err.Error()
}

// NewToolNotFoundError creates an error for an unregistered tool name
func NewToolNotFoundError(name string) *TaskflowError {
	return New(ErrCodeToolNotFound, fmt.Sprintf("Tool not found: %s", name)).
		WithSuggestion("Run 'taskflow tools' to list registered tools").
		WithSuggestion("Check the tool name in the generated plan")
}

// NewApprovalDeclinedError creates the error recorded when a plan is not approved
func NewApprovalDeclinedError() *TaskflowError {
	return New(ErrCodePipelineApprovalDenied, "User declined approval").
		WithSuggestion("Re-run with --approval auto to skip the approval gate for trusted tasks")
}

// NewUnknownAgentError creates an error for an unknown phase agent
func NewUnknownAgentError(name string) *TaskflowError {
	return New(ErrCodePipelineUnknownAgent, fmt.Sprintf("Unknown agent: %s", name)).
		WithSuggestion("Use one of: plan, execute, review, debug, refactor, learn, context")
}

// NewProviderUnavailableError creates an error for a missing completion provider
func NewProviderUnavailableError() *TaskflowError {
	return New(ErrCodeProviderUnavailable, "No completion provider available").
		WithSuggestion("Configure provider.command in .taskflow/config.yaml").
		WithSuggestion("Set TASKFLOW_PROVIDER_COMMAND to an executable that speaks the chat JSON protocol")
}

// NewCheckpointNotFoundError creates an error for a missing checkpoint
func NewCheckpointNotFoundError(id string) *TaskflowError {
	return New(ErrCodeCheckpointNotFound, fmt.Sprintf("checkpoint not found: %s", id)).
		WithSuggestion("Run 'taskflow checkpoint list' to see available checkpoints")
}

// NewApplyFailedError creates an error for a failed write during an atomic apply
func NewApplyFailedError(path string, cause error) *TaskflowError {
	return Wrap(ErrCodeApplyFailed, fmt.Sprintf("failed to apply change to %s", path), cause).
		WithSuggestion("Check file permissions in the working directory")
}

// NewConfigInvalidError creates a configuration validation error
func NewConfigInvalidError(details string) *TaskflowError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Run 'taskflow config show' to inspect the effective configuration")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *TaskflowError {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}
