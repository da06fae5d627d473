package approval

import (
	"context"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/felixgeelhaar/taskflow/internal/errors"
	"github.com/felixgeelhaar/taskflow/internal/plan"
)

var ciEnvVars = []string{
	"CI",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"JENKINS_URL",
	"BUILDKITE",
}

// Interactive reports whether stdin is a terminal and no CI marker is set.
func Interactive() bool {
	for _, v := range ciEnvVars {
		if os.Getenv(v) != "" {
			return false
		}
	}
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Unattended declines every request with an explanatory error. It is used
// when prompting is impossible.
type Unattended struct{}

// Request implements Gate.
func (Unattended) Request(context.Context, string, []string, plan.RiskLevel) (bool, error) {
	return false, errors.New(errors.ErrCodePipelineApprovalDenied, "approval required but no interactive terminal is available").
		WithSuggestion("Re-run with --approval auto, or from an interactive terminal")
}

// ForEnvironment picks the Terminal gate when interactive and Unattended otherwise.
func ForEnvironment() Gate {
	if Interactive() {
		return NewTerminal()
	}
	return Unattended{}
}
