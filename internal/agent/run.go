package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/taskflow/internal/errors"
	"github.com/felixgeelhaar/taskflow/internal/execution"
)

// Run executes a with uniform timing and failure handling. Errors and panics
// become a failed Outcome; no panic escapes. When the agent recorded no step
// of its own a summary step is added.
func Run(ctx context.Context, a Agent, task Task, ec *execution.Context) (out Outcome) {
	start := time.Now()
	var steps []Step

	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Success: false, Error: fmt.Sprintf("agent %s panicked: %v", a.Name(), r)}
		}
		if len(steps) == 0 {
			result := out.Output
			if !out.Success {
				result = out.Error
			}
			s := NewStep(a.Name(), "run", result)
			s.Timestamp = start
			s.Duration = time.Since(start)
			steps = append(steps, s)
		}
		out.Steps = steps
	}()

	res, err := a.Run(ctx, task, ec, &steps)
	if err != nil {
		return Outcome{Success: false, Output: res.Output, Error: errors.Summary(err), Artifacts: res.Artifacts}
	}
	if !res.Success && res.Error == "" {
		res.Error = fmt.Sprintf("%s failed", a.Name())
	}
	return res
}

// record appends a step timed from start.
func record(steps *[]Step, phase Phase, action, result string, start time.Time) *Step {
	s := NewStep(phase, action, result)
	s.Timestamp = start
	s.Duration = time.Since(start)
	*steps = append(*steps, s)
	return &(*steps)[len(*steps)-1]
}
