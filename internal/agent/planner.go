package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/taskflow/internal/errors"
	"github.com/felixgeelhaar/taskflow/internal/execution"
	"github.com/felixgeelhaar/taskflow/internal/jsonutil"
	"github.com/felixgeelhaar/taskflow/internal/plan"
)

const plannerInstructions = `You are the planning phase of a coding assistant.
Break the task into tool invocations using only the tools listed.
Respond with a single JSON object:
{"steps":[{"description":"...","tool":"<tool name>","args":{...},"reason":"..."}],"risk":"low|medium|high|critical"}
Use "low" risk only for read-only plans.`

// Planner turns a task into an ExecutionPlan.
type Planner struct {
	deps Deps
}

// NewPlanner creates a Planner.
func NewPlanner(deps Deps) *Planner {
	return &Planner{deps: deps}
}

// Name implements Agent.
func (p *Planner) Name() Phase { return PhasePlan }

// Run implements Agent. The plan is stored on ec and emitted as an artifact.
func (p *Planner) Run(ctx context.Context, task Task, ec *execution.Context, steps *[]Step) (Outcome, error) {
	start := time.Now()
	logger := p.deps.logger(PhasePlan)

	if artifact, ok := task.Context["plan"]; ok {
		if ep, ok := plan.FromArtifact(artifact); ok {
			logger.Info("using supplied plan", "steps", len(ep.Steps))
			return p.accept(task, ec, steps, ep, "use supplied plan", start)
		}
		logger.Warn("supplied plan is invalid, asking the provider")
	}

	prompt := describeTask(task) + "\nAvailable tools:\n" + toolCatalog(ec.Registry())
	content, ok, err := ask(ctx, p.deps.provider(), plannerInstructions, prompt)
	if err != nil || !ok {
		if err != nil {
			logger.WithError(err).Warn("completion provider failed")
		}
		msg := errors.NewProviderUnavailableError().Message
		record(steps, PhasePlan, "generate plan", msg, start)
		return Outcome{Success: false, Error: msg}, nil
	}

	action := "generate plan"
	ep, parsed := plan.Parse(content)
	if !parsed {
		logger.Warn("plan could not be parsed, using fallback plan")
		ep = plan.Fallback(task.Goal)
		action = "generate fallback plan"
	}

	return p.accept(task, ec, steps, ep, action, start)
}

// accept truncates ep to the task's step budget, stores it on ec and emits it.
func (p *Planner) accept(task Task, ec *execution.Context, steps *[]Step, ep *plan.ExecutionPlan, action string, start time.Time) (Outcome, error) {
	if task.MaxSteps > 0 && len(ep.Steps) > task.MaxSteps {
		p.deps.logger(PhasePlan).Warn("plan truncated", "steps", len(ep.Steps), "max_steps", task.MaxSteps)
		ep = ep.Truncate(task.MaxSteps)
	}
	ec.SetPlan(ep)

	artifact, err := jsonutil.MarshalArtifact(ep)
	if err != nil {
		return Outcome{}, fmt.Errorf("encode plan: %w", err)
	}

	record(steps, PhasePlan, action, fmt.Sprintf("%d steps, risk %s", len(ep.Steps), ep.Risk), start)
	return Outcome{
		Success:   true,
		Output:    ep.Summary(),
		Artifacts: []string{artifact},
	}, nil
}
