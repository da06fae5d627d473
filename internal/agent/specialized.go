package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/taskflow/internal/errors"
	"github.com/felixgeelhaar/taskflow/internal/execution"
	"github.com/felixgeelhaar/taskflow/internal/jsonutil"
	"github.com/felixgeelhaar/taskflow/internal/plan"
)

// consult asks the provider and overlays whatever JSON it returns onto def.
// It never fails on malformed text; note explains when def was kept as is.
func consult[T any, R any](ctx context.Context, deps Deps, phase Phase, instructions, prompt string, def T, overlay func(*T, R)) (report T, note string) {
	content, ok, err := ask(ctx, deps.provider(), instructions, prompt)
	if err != nil {
		deps.logger(phase).WithError(err).Warn("completion provider failed")
	}
	if !ok {
		return def, errors.NewProviderUnavailableError().Message + "; returning default report"
	}

	raw, found := jsonutil.Decode[R](content)
	if !found {
		return def, "response contained no JSON object; returning default report"
	}
	overlay(&def, raw)
	return def, ""
}

// finish records the step and builds the Outcome shared by the specialized agents.
func finish(steps *[]Step, phase Phase, action string, start time.Time, report any, summary, note string) (Outcome, error) {
	artifact, err := jsonutil.MarshalArtifact(report)
	if err != nil {
		return Outcome{}, fmt.Errorf("encode %s report: %w", phase, err)
	}
	result := summary
	if note != "" {
		result = note
		summary = summary + "\n(" + note + ")"
	}
	record(steps, phase, action, clip(result, 200), start)
	return Outcome{Success: true, Output: summary, Artifacts: []string{artifact}}, nil
}

const debuggerInstructions = `You are a debugging assistant. Find the most likely root cause of the failure.
Respond with JSON: {"rootCause":"...","fixes":["..."],"confidence":0.0-1.0}`

// Debugger diagnoses a failure described by the task and recent tool results.
type Debugger struct{ deps Deps }

// NewDebugger creates a Debugger.
func NewDebugger(deps Deps) *Debugger { return &Debugger{deps: deps} }

// Name implements Agent.
func (d *Debugger) Name() Phase { return PhaseDebug }

// Run implements Agent.
func (d *Debugger) Run(ctx context.Context, task Task, ec *execution.Context, steps *[]Step) (Outcome, error) {
	start := time.Now()
	def := DebugReport{RootCause: "Unable to determine root cause", Fixes: []string{}}
	if last, ok := ec.LastResult(); ok && !last.Success {
		def.RootCause = fmt.Sprintf("%s failed: %s", last.Tool, last.Error)
	}

	prompt := describeTask(task) + "\nRecent tool results:\n" + recentResults(ec, 5)
	report, note := consult(ctx, d.deps, PhaseDebug, debuggerInstructions, prompt, def, (*DebugReport).overlay)

	summary := "Root cause: " + report.RootCause
	if len(report.Fixes) > 0 {
		summary += "\nSuggested fixes:\n- " + strings.Join(report.Fixes, "\n- ")
	}
	return finish(steps, PhaseDebug, "diagnose", start, report, summary, note)
}

const refactorerInstructions = `You are a refactoring assistant. Propose file-level changes for the task.
Respond with JSON: {"summary":"...","changes":[{"file":"...","description":"..."}],"risk":"low|medium|high|critical"}`

// Refactorer proposes a refactoring without applying it.
type Refactorer struct{ deps Deps }

// NewRefactorer creates a Refactorer.
func NewRefactorer(deps Deps) *Refactorer { return &Refactorer{deps: deps} }

// Name implements Agent.
func (r *Refactorer) Name() Phase { return PhaseRefactor }

// Run implements Agent.
func (r *Refactorer) Run(ctx context.Context, task Task, ec *execution.Context, steps *[]Step) (Outcome, error) {
	start := time.Now()
	def := RefactorProposal{Summary: "No refactoring proposed", Changes: []RefactorChange{}, Risk: plan.RiskMedium}

	report, note := consult(ctx, r.deps, PhaseRefactor, refactorerInstructions, describeTask(task), def, (*RefactorProposal).overlay)

	var b strings.Builder
	fmt.Fprintf(&b, "%s (risk: %s)", report.Summary, report.Risk)
	for _, c := range report.Changes {
		fmt.Fprintf(&b, "\n- %s: %s", c.File, c.Description)
	}
	return finish(steps, PhaseRefactor, "propose refactoring", start, report, b.String(), note)
}

const learnerInstructions = `You are a teaching assistant. Explain the concepts behind the task.
Respond with JSON: {"concepts":["..."],"explanation":"...","nextSteps":["..."]}`

// Learner explains the concepts involved in a task.
type Learner struct{ deps Deps }

// NewLearner creates a Learner.
func NewLearner(deps Deps) *Learner { return &Learner{deps: deps} }

// Name implements Agent.
func (l *Learner) Name() Phase { return PhaseLearn }

// Run implements Agent.
func (l *Learner) Run(ctx context.Context, task Task, ec *execution.Context, steps *[]Step) (Outcome, error) {
	start := time.Now()
	def := LearningSummary{
		Concepts:    []string{},
		Explanation: "No explanation available for: " + clip(task.Goal, 100),
		NextSteps:   []string{},
	}

	report, note := consult(ctx, l.deps, PhaseLearn, learnerInstructions, describeTask(task), def, (*LearningSummary).overlay)

	summary := report.Explanation
	if len(report.Concepts) > 0 {
		summary += "\nConcepts: " + strings.Join(report.Concepts, ", ")
	}
	return finish(steps, PhaseLearn, "explain concepts", start, report, summary, note)
}

const contextInstructions = `You are a code navigation assistant. Identify the files and facts relevant to the task.
Respond with JSON: {"relevantFiles":["..."],"summary":"...","openQuestions":["..."]}`

// ContextGatherer collects the files and open questions relevant to a task.
type ContextGatherer struct{ deps Deps }

// NewContextGatherer creates a ContextGatherer.
func NewContextGatherer(deps Deps) *ContextGatherer { return &ContextGatherer{deps: deps} }

// Name implements Agent.
func (g *ContextGatherer) Name() Phase { return PhaseContext }

// Run implements Agent. A "files" entry in the task context (comma
// separated) seeds the default report.
func (g *ContextGatherer) Run(ctx context.Context, task Task, ec *execution.Context, steps *[]Step) (Outcome, error) {
	start := time.Now()
	def := ContextReport{RelevantFiles: []string{}, Summary: "No context gathered", OpenQuestions: []string{}}
	for _, f := range strings.Split(task.Context["files"], ",") {
		if f = strings.TrimSpace(f); f != "" {
			def.RelevantFiles = append(def.RelevantFiles, f)
		}
	}

	prompt := describeTask(task) + "\nAvailable tools:\n" + toolCatalog(ec.Registry())
	report, note := consult(ctx, g.deps, PhaseContext, contextInstructions, prompt, def, (*ContextReport).overlay)

	summary := report.Summary
	if len(report.RelevantFiles) > 0 {
		summary += "\nRelevant files: " + strings.Join(report.RelevantFiles, ", ")
	}
	return finish(steps, PhaseContext, "gather context", start, report, summary, note)
}
