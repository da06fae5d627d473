// Package agent implements the phase agents that make up a task pipeline.
package agent

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/taskflow/internal/execution"
	"github.com/felixgeelhaar/taskflow/internal/log"
	"github.com/felixgeelhaar/taskflow/internal/provider"
)

// ApprovalMode controls when the approval gate is consulted.
type ApprovalMode string

const (
	ApprovalAuto   ApprovalMode = "auto"
	ApprovalPrompt ApprovalMode = "prompt"
	ApprovalNever  ApprovalMode = "never"
)

// ParseApprovalMode maps a string to a mode; anything unrecognised is prompt.
func ParseApprovalMode(s string) ApprovalMode {
	switch ApprovalMode(s) {
	case ApprovalAuto, ApprovalNever:
		return ApprovalMode(s)
	default:
		return ApprovalPrompt
	}
}

// Valid reports whether m is one of the known modes.
func (m ApprovalMode) Valid() bool {
	return m == ApprovalAuto || m == ApprovalPrompt || m == ApprovalNever
}

// Phase names a pipeline stage.
type Phase string

const (
	PhasePlan     Phase = "plan"
	PhaseApprove  Phase = "approve"
	PhaseExecute  Phase = "execute"
	PhaseReview   Phase = "review"
	PhaseVerify   Phase = "verify"
	PhaseExplain  Phase = "explain"
	PhaseDebug    Phase = "debug"
	PhaseRefactor Phase = "refactor"
	PhaseLearn    Phase = "learn"
	PhaseContext  Phase = "context"
)

// Task is the unit of work. It is not modified while a pipeline runs.
type Task struct {
	Goal         string            `json:"goal"`
	Context      map[string]string `json:"context,omitempty"`
	ApprovalMode ApprovalMode      `json:"approvalMode,omitempty"`
	MaxSteps     int               `json:"maxSteps,omitempty"`
	// Checkpoint disables the pre-execution checkpoint only when explicitly false.
	Checkpoint *bool `json:"checkpoint,omitempty"`
}

// Mode returns the effective approval mode.
func (t Task) Mode() ApprovalMode {
	if t.ApprovalMode == "" {
		return ApprovalPrompt
	}
	return t.ApprovalMode
}

// CheckpointEnabled reports whether a checkpoint should precede tool execution.
func (t Task) CheckpointEnabled() bool {
	return t.Checkpoint == nil || *t.Checkpoint
}

// Step is one recorded action inside a phase.
type Step struct {
	ID        string        `json:"id"`
	Phase     Phase         `json:"phase"`
	Action    string        `json:"action"`
	Result    string        `json:"result"`
	Approved  *bool         `json:"approved,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// NewStep creates a step stamped with a fresh id and the current time.
func NewStep(phase Phase, action, result string) Step {
	return Step{
		ID:        uuid.NewString(),
		Phase:     phase,
		Action:    action,
		Result:    result,
		Timestamp: time.Now(),
	}
}

// Outcome is the result of one agent run or of a whole pipeline.
type Outcome struct {
	Success   bool     `json:"success"`
	Output    string   `json:"output"`
	Error     string   `json:"error,omitempty"`
	Steps     []Step   `json:"steps"`
	Artifacts []string `json:"artifacts,omitempty"`
}

// Agent is one pipeline phase. Implementations append the steps they take to
// steps; Run wraps them with timing and failure normalization.
type Agent interface {
	Name() Phase
	Run(ctx context.Context, task Task, ec *execution.Context, steps *[]Step) (Outcome, error)
}

// Deps are the collaborators shared by all agents.
type Deps struct {
	Provider provider.Provider
	Logger   *log.Logger
}

func (d Deps) provider() provider.Provider {
	if d.Provider == nil {
		return provider.None{}
	}
	return d.Provider
}

func (d Deps) logger(phase Phase) *log.Logger {
	l := d.Logger
	if l == nil {
		l = log.Nop()
	}
	return l.WithComponent("agent." + string(phase))
}
