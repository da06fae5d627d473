// Package exitcode maps command errors to process exit codes.
package exitcode

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/felixgeelhaar/taskflow/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// Declined indicates the approval gate declined the plan
	Declined = 3

	// TaskFailed indicates a pipeline or agent finished without success
	TaskFailed = 4

	// ApplyFailed indicates a change set was invalid or could not be applied
	ApplyFailed = 5

	// ConfigError indicates the configuration could not be loaded
	ConfigError = 6

	// Interrupted indicates the run was cancelled by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode maps coded errors by category and falls back to
// inspecting the message for cobra usage errors.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	if stderrors.Is(err, context.Canceled) {
		return Interrupted
	}

	code := string(errors.CodeOf(err))
	switch {
	case code == string(errors.ErrCodePipelineApprovalDenied):
		return Declined
	case code == string(errors.ErrCodePipelineCancelled):
		return Interrupted
	case strings.HasPrefix(code, "PIPELINE-"), strings.HasPrefix(code, "TOOL-"), strings.HasPrefix(code, "PROVIDER-"):
		return TaskFailed
	case strings.HasPrefix(code, "APPLY-"), strings.HasPrefix(code, "CHECKPOINT-"):
		return ApplyFailed
	case strings.HasPrefix(code, "CONFIG-"):
		return ConfigError
	}

	errMsg := strings.ToLower(err.Error())
	for _, usage := range []string{"unknown command", "unknown flag", "invalid argument", "required flag", "accepts ", "requires at least"} {
		if strings.Contains(errMsg, usage) {
			return UsageError
		}
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case Declined:
		return "Approval declined"
	case TaskFailed:
		return "Task failed"
	case ApplyFailed:
		return "Change set not applied"
	case ConfigError:
		return "Configuration error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
