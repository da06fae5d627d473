package agent

import (
	"context"
	"strings"
	"time"

	"github.com/felixgeelhaar/taskflow/internal/execution"
)

// FallbackExplanation is used whenever the provider cannot explain the run.
const FallbackExplanation = "Execution completed. Review the results above."

const reviewerInstructions = `You are the review phase of a coding assistant.
Explain to the user, in a few sentences, what was done and whether it achieved the task.`

// Reviewer verifies the latest tool result and asks the provider for an explanation.
type Reviewer struct {
	deps Deps
}

// NewReviewer creates a Reviewer.
func NewReviewer(deps Deps) *Reviewer {
	return &Reviewer{deps: deps}
}

// Name implements Agent.
func (r *Reviewer) Name() Phase { return PhaseReview }

// Run implements Agent. Success reflects verification only; the explanation
// is best-effort.
func (r *Reviewer) Run(ctx context.Context, task Task, ec *execution.Context, steps *[]Step) (Outcome, error) {
	start := time.Now()
	verified, reason := verify(ec)
	verdict := "passed"
	if !verified {
		verdict = "failed: " + reason
	}
	record(steps, PhaseVerify, "verify latest result", verdict, start)

	start = time.Now()
	explanation := r.explain(ctx, task, ec)
	record(steps, PhaseExplain, "explain", clip(explanation, 200), start)

	out := Outcome{Success: verified, Output: explanation}
	if !verified {
		out.Error = "Verification failed: " + reason
	}
	return out, nil
}

func verify(ec *execution.Context) (bool, string) {
	last, ok := ec.LastResult()
	switch {
	case !ok:
		return false, "no tool results to verify"
	case !last.Success:
		return false, last.Tool + " reported failure: " + last.Error
	case strings.TrimSpace(last.Output) == "":
		return false, last.Tool + " produced no output"
	}
	return true, ""
}

func (r *Reviewer) explain(ctx context.Context, task Task, ec *execution.Context) string {
	prompt := describeTask(task) + "\nTool results:\n" + recentResults(ec, 5)
	content, ok, err := ask(ctx, r.deps.provider(), reviewerInstructions, prompt)
	if err != nil {
		r.deps.logger(PhaseReview).WithError(err).Debug("explanation unavailable")
	}
	if !ok || strings.TrimSpace(content) == "" {
		return FallbackExplanation
	}
	return strings.TrimSpace(content)
}
