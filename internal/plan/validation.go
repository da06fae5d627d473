package plan

import (
	"fmt"
	"strings"
)

// Validate checks if the Step is usable
func (s *Step) Validate() error {
	if strings.TrimSpace(s.Tool) == "" {
		return fmt.Errorf("tool cannot be empty")
	}
	return nil
}

// Validate checks if the ExecutionPlan is valid
func (p *ExecutionPlan) Validate() error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan must have at least one step")
	}

	for i := range p.Steps {
		if err := p.Steps[i].Validate(); err != nil {
			return fmt.Errorf("step at index %d is invalid: %w", i, err)
		}
	}

	if p.Risk < RiskLow || p.Risk > RiskCritical {
		return fmt.Errorf("risk level %d out of range", int(p.Risk))
	}

	return nil
}
