package plan

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RiskLevel is an ordinal classification of how dangerous a plan is.
// low < medium < high < critical.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

var riskNames = [...]string{"low", "medium", "high", "critical"}

// String returns the lowercase name of the level.
func (r RiskLevel) String() string {
	if r < RiskLow || r > RiskCritical {
		return "medium"
	}
	return riskNames[r]
}

// ParseRisk converts a name to a RiskLevel. Unknown names are treated as medium
// so that unrecognised provider output never lowers the approval bar.
func ParseRisk(s string) RiskLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow
	case "high":
		return RiskHigh
	case "critical":
		return RiskCritical
	default:
		return RiskMedium
	}
}

// MarshalJSON encodes the level as its name.
func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a level name.
func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("risk level must be a string: %w", err)
	}
	*r = ParseRisk(s)
	return nil
}

// Step is one tool invocation proposed by the planner.
type Step struct {
	Description string         `json:"description"`
	Tool        string         `json:"tool"`
	Args        map[string]any `json:"args,omitempty"`
	Reason      string         `json:"reason,omitempty"`
}

// ExecutionPlan is produced once per planner run and not modified afterwards.
type ExecutionPlan struct {
	Steps []Step    `json:"steps"`
	Tools []string  `json:"tools"`
	Risk  RiskLevel `json:"risk"`
}

// RequiresApproval reports whether the plan is risky enough to need a human decision.
func (p *ExecutionPlan) RequiresApproval() bool {
	return p != nil && p.Risk > RiskLow
}

// Operations returns one line per step, "tool: description".
func (p *ExecutionPlan) Operations() []string {
	ops := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		desc := s.Description
		if desc == "" {
			desc = s.Reason
		}
		ops = append(ops, fmt.Sprintf("%s: %s", s.Tool, desc))
	}
	return ops
}

// Summary renders the numbered plan steps and risk for an approval prompt.
func (p *ExecutionPlan) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Execution plan (%d steps, risk: %s)\n", len(p.Steps), p.Risk)
	for i, op := range p.Operations() {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, op)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Truncate returns a copy limited to max steps. A max below 1 means unlimited.
func (p *ExecutionPlan) Truncate(max int) *ExecutionPlan {
	if max < 1 || len(p.Steps) <= max {
		return p
	}
	out := &ExecutionPlan{Steps: append([]Step(nil), p.Steps[:max]...), Risk: p.Risk}
	out.Tools = toolSet(out.Steps)
	return out
}

func toolSet(steps []Step) []string {
	seen := make(map[string]bool, len(steps))
	var tools []string
	for _, s := range steps {
		if s.Tool != "" && !seen[s.Tool] {
			seen[s.Tool] = true
			tools = append(tools, s.Tool)
		}
	}
	return tools
}
