// Package approval provides the human-in-the-loop gate consulted before a
// risky plan is executed.
package approval

import (
	"context"
	"sync"

	"github.com/felixgeelhaar/taskflow/internal/plan"
)

// Gate asks for a yes/no decision on a plan. A returned error counts as a
// decline for the caller.
type Gate interface {
	Request(ctx context.Context, description string, operations []string, risk plan.RiskLevel) (bool, error)
}

// Func adapts a function to the Gate interface.
type Func func(ctx context.Context, description string, operations []string, risk plan.RiskLevel) (bool, error)

// Request calls f.
func (f Func) Request(ctx context.Context, description string, operations []string, risk plan.RiskLevel) (bool, error) {
	return f(ctx, description, operations, risk)
}

// Static always answers with the same decision.
type Static bool

// Request implements Gate.
func (s Static) Request(context.Context, string, []string, plan.RiskLevel) (bool, error) {
	return bool(s), nil
}

const (
	AutoApprove = Static(true)
	Deny        = Static(false)
)

// Request is one recorded approval call.
type Request struct {
	Description string
	Operations  []string
	Risk        plan.RiskLevel
}

// Recorder wraps a Gate and remembers every request it saw.
type Recorder struct {
	Gate Gate

	mu       sync.Mutex
	requests []Request
}

// NewRecorder wraps gate.
func NewRecorder(gate Gate) *Recorder {
	return &Recorder{Gate: gate}
}

// Request implements Gate.
func (r *Recorder) Request(ctx context.Context, description string, operations []string, risk plan.RiskLevel) (bool, error) {
	r.mu.Lock()
	r.requests = append(r.requests, Request{
		Description: description,
		Operations:  append([]string(nil), operations...),
		Risk:        risk,
	})
	r.mu.Unlock()
	return r.Gate.Request(ctx, description, operations, risk)
}

// Requests returns a copy of the recorded calls.
func (r *Recorder) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Request(nil), r.requests...)
}
