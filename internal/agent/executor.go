package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/taskflow/internal/execution"
	"github.com/felixgeelhaar/taskflow/internal/plan"
)

// Executor runs the plan's tool calls, or a single derived call when there is no plan.
type Executor struct {
	deps Deps
}

// NewExecutor creates an Executor.
func NewExecutor(deps Deps) *Executor {
	return &Executor{deps: deps}
}

// Name implements Agent.
func (e *Executor) Name() Phase { return PhaseExecute }

// Run implements Agent.
func (e *Executor) Run(ctx context.Context, task Task, ec *execution.Context, steps *[]Step) (Outcome, error) {
	logger := e.deps.logger(PhaseExecute)

	if task.CheckpointEnabled() {
		start := time.Now()
		id, err := ec.CreateCheckpoint(ctx, "before: "+clip(task.Goal, 80))
		switch {
		case err != nil:
			logger.WithError(err).Warn("checkpoint creation failed, continuing")
			record(steps, PhaseExecute, "checkpoint", "checkpoint failed: "+err.Error(), start)
		case id != "":
			record(steps, PhaseExecute, "checkpoint", "created "+id, start)
		}
	}

	calls := e.resolve(task, ec)

	var outputs []string
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return Outcome{Success: false, Output: strings.Join(outputs, "\n"), Error: err.Error()}, nil
		}

		start := time.Now()
		res := ec.ExecuteTool(ctx, call.Tool, call.Args)

		summary := "ok"
		if !res.Success {
			summary = "failed: " + res.Error
		}
		action := call.Tool
		if call.Description != "" {
			action = fmt.Sprintf("%s (%s)", call.Tool, call.Description)
		}
		record(steps, PhaseExecute, action, summary, start)

		if res.Output != "" {
			outputs = append(outputs, res.Output)
		}
		if !res.Success {
			return Outcome{Success: false, Output: strings.Join(outputs, "\n"), Error: res.Error}, nil
		}
	}

	return Outcome{Success: true, Output: strings.Join(outputs, "\n")}, nil
}

// resolve returns the steps to run: the context's plan, a plan artifact
// passed in task.Context["plan"], or one keyword-derived call.
func (e *Executor) resolve(task Task, ec *execution.Context) []plan.Step {
	if p := ec.Plan(); p != nil && len(p.Steps) > 0 {
		return p.Steps
	}
	if artifact, ok := task.Context["plan"]; ok {
		if p, ok := plan.FromArtifact(artifact); ok && len(p.Steps) > 0 {
			ec.SetPlan(p)
			return p.Steps
		}
	}
	tool, args := DeriveToolCall(task.Goal)
	return []plan.Step{{Tool: tool, Args: args, Description: "derived from task text"}}
}
