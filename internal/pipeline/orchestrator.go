// Package pipeline sequences the phase agents for a task and owns the
// approval gate between planning and execution.
package pipeline

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/taskflow/internal/agent"
	"github.com/felixgeelhaar/taskflow/internal/approval"
	"github.com/felixgeelhaar/taskflow/internal/checkpoint"
	"github.com/felixgeelhaar/taskflow/internal/errors"
	"github.com/felixgeelhaar/taskflow/internal/execution"
	"github.com/felixgeelhaar/taskflow/internal/hooks"
	"github.com/felixgeelhaar/taskflow/internal/log"
	"github.com/felixgeelhaar/taskflow/internal/metrics"
	"github.com/felixgeelhaar/taskflow/internal/provider"
	"github.com/felixgeelhaar/taskflow/internal/ring"
	"github.com/felixgeelhaar/taskflow/internal/tools"
)

// DefaultHistorySize is the number of pipeline summaries kept by default.
const DefaultHistorySize = 50

// Config holds orchestrator settings.
type Config struct {
	Workdir     string
	HistorySize int
}

// Options tune a single pipeline run.
type Options struct {
	// SkipReview stops after the execute phase.
	SkipReview bool
}

// Summary is the history record of one pipeline run.
type Summary struct {
	TaskID    string        `json:"taskId"`
	Goal      string        `json:"goal"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Steps     int           `json:"steps"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}

// Orchestrator runs task pipelines. It is safe for concurrent use; every run
// gets its own execution context.
type Orchestrator struct {
	config   Config
	provider provider.Provider
	registry tools.Registry
	store    checkpoint.Store
	gate     approval.Gate
	logger   *log.Logger
	metrics  *metrics.Metrics
	hooks    *hooks.Registry

	mu      sync.RWMutex
	agents  map[agent.Phase]agent.Agent
	history *ring.Buffer[Summary]
}

// NewOrchestrator creates an orchestrator with the standard agents.
func NewOrchestrator(p provider.Provider, registry tools.Registry, cfg Config) *Orchestrator {
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	o := &Orchestrator{
		config:   cfg,
		provider: p,
		registry: registry,
		logger:   log.Nop(),
		history:  ring.New[Summary](cfg.HistorySize),
	}
	o.installAgents()
	return o
}

// SetLogger sets the logger used by the orchestrator and its agents.
func (o *Orchestrator) SetLogger(logger *log.Logger) {
	o.logger = logger.WithComponent("pipeline")
	o.mu.Lock()
	defer o.mu.Unlock()
	o.installAgentsLocked(logger)
}

// SetCheckpointStore sets the store used before execution.
func (o *Orchestrator) SetCheckpointStore(store checkpoint.Store) {
	o.store = store
}

// SetApprovalGate sets the gate consulted for risky plans.
// Without a gate such plans are declined.
func (o *Orchestrator) SetApprovalGate(gate approval.Gate) {
	o.gate = gate
}

// SetMetrics enables Prometheus metrics.
func (o *Orchestrator) SetMetrics(m *metrics.Metrics) {
	o.metrics = m
}

// SetHookRegistry sets the hook registry for lifecycle notifications.
func (o *Orchestrator) SetHookRegistry(registry *hooks.Registry) {
	o.hooks = registry
}

// RegisterAgent adds or replaces the agent for a phase.
func (o *Orchestrator) RegisterAgent(a agent.Agent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.agents[a.Name()] = a
}

func (o *Orchestrator) installAgents() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.installAgentsLocked(nil)
}

func (o *Orchestrator) installAgentsLocked(logger *log.Logger) {
	deps := agent.Deps{Provider: o.provider, Logger: logger}
	o.agents = map[agent.Phase]agent.Agent{}
	for _, a := range []agent.Agent{
		agent.NewPlanner(deps),
		agent.NewExecutor(deps),
		agent.NewReviewer(deps),
		agent.NewDebugger(deps),
		agent.NewRefactorer(deps),
		agent.NewLearner(deps),
		agent.NewContextGatherer(deps),
	} {
		o.agents[a.Name()] = a
	}
}

// Agents lists the registered phase names.
func (o *Orchestrator) Agents() []agent.Phase {
	o.mu.RLock()
	defer o.mu.RUnlock()

	names := make([]agent.Phase, 0, len(o.agents))
	for name := range o.agents {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// History returns the most recent pipeline summaries, newest first.
func (o *Orchestrator) History() []Summary {
	return o.history.Newest()
}

func (o *Orchestrator) agent(phase agent.Phase) (agent.Agent, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	a, ok := o.agents[phase]
	return a, ok
}

func (o *Orchestrator) newContext(taskID string) *execution.Context {
	return execution.New(taskID, o.registry, o.store, execution.Options{
		Workdir: o.config.Workdir,
		Logger:  o.logger,
	})
}

// ExecuteAgent runs a single named agent against a fresh execution context.
func (o *Orchestrator) ExecuteAgent(ctx context.Context, phase agent.Phase, task agent.Task) agent.Outcome {
	a, ok := o.agent(phase)
	if !ok {
		return agent.Outcome{
			Success: false,
			Error:   errors.NewUnknownAgentError(string(phase)).Message,
			Steps:   []agent.Step{},
		}
	}

	ec := o.newContext(uuid.NewString())
	return o.runPhase(ctx, a, task, ec)
}

func (o *Orchestrator) runPhase(ctx context.Context, a agent.Agent, task agent.Task, ec *execution.Context) agent.Outcome {
	logger := o.logger.With("task_id", ec.TaskID(), "phase", string(a.Name()))
	logger.Debug("phase started")

	start := time.Now()
	out := agent.Run(ctx, a, task, ec)
	elapsed := time.Since(start)

	o.metrics.RecordPhase(string(a.Name()), out.Success, elapsed)
	if out.Success {
		logger.Info("phase finished", "duration_ms", elapsed.Milliseconds())
	} else {
		logger.Warn("phase failed", "duration_ms", elapsed.Milliseconds(), "error", out.Error)
	}
	return out
}

// ExecutePipeline runs plan, approval, execute and review for task. It never
// panics; every failure is reported on the returned Outcome.
func (o *Orchestrator) ExecutePipeline(ctx context.Context, task agent.Task, opts Options) agent.Outcome {
	r := &run{
		o:     o,
		task:  task,
		ec:    o.newContext(uuid.NewString()),
		start: time.Now(),
	}
	r.logger = o.logger.With("task_id", r.ec.TaskID())
	r.logger.Info("pipeline started", "goal", task.Goal, "approval_mode", string(task.Mode()))
	o.hooks.Trigger(ctx, hooks.NewEvent(hooks.EventPipelineStart, r.ec.TaskID(), map[string]string{"goal": task.Goal}))

	return r.finish(ctx, r.execute(ctx, opts))
}

// run carries the state of one ExecutePipeline call.
type run struct {
	o      *Orchestrator
	task   agent.Task
	ec     *execution.Context
	start  time.Time
	logger *log.Logger
	total  agent.Outcome
}

func (r *run) phase(ctx context.Context, phase agent.Phase) (agent.Outcome, bool) {
	a, ok := r.o.agent(phase)
	if !ok {
		return agent.Outcome{Error: errors.NewUnknownAgentError(string(phase)).Message}, false
	}
	out := r.o.runPhase(ctx, a, r.task, r.ec)
	r.total.Steps = append(r.total.Steps, out.Steps...)
	r.total.Artifacts = append(r.total.Artifacts, out.Artifacts...)
	return out, true
}

func (r *run) fail(msg string) agent.Outcome {
	r.total.Success = false
	r.total.Error = msg
	return r.total
}

func (r *run) execute(ctx context.Context, opts Options) agent.Outcome {
	r.total.Steps = []agent.Step{}

	planOut, ok := r.phase(ctx, agent.PhasePlan)
	if !ok || !planOut.Success {
		return r.fail(planOut.Error)
	}

	p := r.ec.Plan()
	if p != nil {
		r.o.hooks.Trigger(ctx, hooks.NewEvent(hooks.EventPlanCreated, r.ec.TaskID(), map[string]string{
			"risk":  p.Risk.String(),
			"steps": strconv.Itoa(len(p.Steps)),
		}))
	}

	if err := ctx.Err(); err != nil {
		return r.fail(err.Error())
	}

	if p != nil && p.RequiresApproval() && r.task.Mode() == agent.ApprovalPrompt {
		if !r.approve(ctx) {
			return r.fail(errors.NewApprovalDeclinedError().Message)
		}
	}

	if err := ctx.Err(); err != nil {
		return r.fail(err.Error())
	}

	execOut, ok := r.phase(ctx, agent.PhaseExecute)
	if !ok {
		return r.fail(execOut.Error)
	}
	if opts.SkipReview {
		r.total.Success = execOut.Success
		r.total.Output = execOut.Output
		r.total.Error = execOut.Error
		return r.total
	}

	if err := ctx.Err(); err != nil {
		r.total.Output = execOut.Output
		return r.fail(err.Error())
	}

	reviewOut, ok := r.phase(ctx, agent.PhaseReview)
	if !ok {
		return r.fail(reviewOut.Error)
	}

	r.total.Success = execOut.Success && reviewOut.Success
	r.total.Output = joinNonEmpty(execOut.Output, reviewOut.Output)
	switch {
	case execOut.Error != "":
		r.total.Error = execOut.Error
	case reviewOut.Error != "":
		r.total.Error = reviewOut.Error
	}
	return r.total
}

// approve consults the gate exactly once and records the decision as a step.
func (r *run) approve(ctx context.Context) bool {
	p := r.ec.Plan()
	start := time.Now()

	approved := false
	result := "declined"
	if r.o.gate == nil {
		result = "declined: no approval gate configured"
	} else {
		ok, err := r.o.gate.Request(ctx, p.Summary(), p.Operations(), p.Risk)
		switch {
		case err != nil:
			r.logger.WithError(err).Warn("approval gate failed")
			result = "declined: " + errors.Summary(err)
		case ok:
			approved = true
			result = "approved"
		}
	}

	step := agent.NewStep(agent.PhaseApprove, "request approval", result)
	step.Timestamp = start
	step.Duration = time.Since(start)
	step.Approved = &approved
	r.total.Steps = append(r.total.Steps, step)

	r.o.metrics.RecordApproval(approved, step.Duration)
	event := hooks.EventPlanRejected
	if approved {
		event = hooks.EventPlanApproved
	}
	r.o.hooks.Trigger(ctx, hooks.NewEvent(event, r.ec.TaskID(), map[string]string{"risk": p.Risk.String()}))

	r.logger.Info("approval decided", "approved", approved, "risk", p.Risk.String())
	return approved
}

func (r *run) finish(ctx context.Context, out agent.Outcome) agent.Outcome {
	elapsed := time.Since(r.start)

	outcome := "success"
	if !out.Success {
		outcome = "failure"
		if out.Error == errors.NewApprovalDeclinedError().Message {
			outcome = "declined"
		}
	}
	r.o.metrics.RecordPipeline(outcome, elapsed)
	for _, res := range r.ec.Results() {
		r.o.metrics.RecordToolCall(res.Tool, res.Success)
	}

	r.o.history.Push(Summary{
		TaskID:    r.ec.TaskID(),
		Goal:      r.task.Goal,
		Success:   out.Success,
		Error:     out.Error,
		Steps:     len(out.Steps),
		StartedAt: r.start,
		Duration:  elapsed,
	})

	event := hooks.EventPipelineComplete
	if !out.Success {
		event = hooks.EventPipelineFailed
	}
	// Hooks still run when the pipeline itself was cancelled.
	r.o.hooks.Trigger(context.WithoutCancel(ctx), hooks.NewEvent(event, r.ec.TaskID(), map[string]string{
		"outcome": outcome,
		"error":   out.Error,
	}))

	r.logger.Info("pipeline finished",
		"success", out.Success,
		"outcome", outcome,
		"steps", len(out.Steps),
		"duration_ms", elapsed.Milliseconds(),
	)
	return out
}

func joinNonEmpty(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
