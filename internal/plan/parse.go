package plan

import (
	"github.com/felixgeelhaar/taskflow/internal/jsonutil"
)

// fallbackGoalLimit bounds how much of the goal is echoed by the fallback plan.
const fallbackGoalLimit = 100

// rawPlan mirrors the loosely-shaped JSON providers return. Every field is
// optional and copied onto a complete plan explicitly.
type rawPlan struct {
	Steps     []rawStep `json:"steps"`
	Tools     []string  `json:"tools"`
	Risk      *string   `json:"risk"`
	RiskLevel *string   `json:"riskLevel"`
}

type rawStep struct {
	Description string         `json:"description"`
	Tool        string         `json:"tool"`
	Args        map[string]any `json:"args"`
	Reason      string         `json:"reason"`
}

// Parse extracts a plan from free completion text. ok is false when no usable
// plan was found; callers should then use Fallback.
func Parse(text string) (*ExecutionPlan, bool) {
	raw, ok := jsonutil.Decode[rawPlan](text)
	if !ok {
		return nil, false
	}

	p := &ExecutionPlan{Risk: RiskMedium}
	for _, s := range raw.Steps {
		if s.Tool == "" {
			continue
		}
		args := s.Args
		if args == nil {
			args = map[string]any{}
		}
		p.Steps = append(p.Steps, Step{
			Description: s.Description,
			Tool:        s.Tool,
			Args:        args,
			Reason:      s.Reason,
		})
	}

	switch {
	case raw.Risk != nil:
		p.Risk = ParseRisk(*raw.Risk)
	case raw.RiskLevel != nil:
		p.Risk = ParseRisk(*raw.RiskLevel)
	}

	p.Tools = toolSet(p.Steps)
	for _, t := range raw.Tools {
		if t != "" && !contains(p.Tools, t) {
			p.Tools = append(p.Tools, t)
		}
	}

	if err := p.Validate(); err != nil {
		return nil, false
	}
	return p, true
}

// Fallback is the deterministic single-step plan used when provider output
// cannot be parsed: echo the (truncated) goal through shell_exec at medium risk.
func Fallback(goal string) *ExecutionPlan {
	text := goal
	if r := []rune(text); len(r) > fallbackGoalLimit {
		text = string(r[:fallbackGoalLimit])
	}
	return &ExecutionPlan{
		Steps: []Step{{
			Description: "Execute task",
			Tool:        "shell_exec",
			Args:        map[string]any{"command": "echo " + shellQuote(text)},
			Reason:      "Fallback plan: completion output could not be parsed",
		}},
		Tools: []string{"shell_exec"},
		Risk:  RiskMedium,
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// shellQuote wraps s in single quotes for POSIX shells.
func shellQuote(s string) string {
	out := []byte{'\''}
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, []byte(`'\''`)...)
			continue
		}
		out = append(out, s[i])
	}
	return string(append(out, '\''))
}
