package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/taskflow/internal/errors"
)

// LoadPlan reads a plan file written by SavePlan or by hand. The plan must
// validate; it is not repaired the way provider replies are.
func LoadPlan(path string) (*ExecutionPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, fmt.Sprintf("plan file not found: %s", path), err)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read plan file: %s", path), err)
	}

	var p ExecutionPlan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.NewFileUnmarshalError(path, "plan", err)
	}
	if err := p.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileUnmarshal, fmt.Sprintf("invalid plan in %s", path), err).
			WithSuggestion("A plan needs at least one step, each with a tool name")
	}
	return &p, nil
}

// SavePlan writes p as indented JSON, creating parent directories.
func SavePlan(p *ExecutionPlan, path string) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("failed to create directory for %s", path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("failed to write plan file: %s", path), err)
	}
	return nil
}

// FromArtifact decodes a plan previously serialised into a result artifact.
// Artifacts that are not plans yield ok=false.
func FromArtifact(artifact string) (*ExecutionPlan, bool) {
	var p ExecutionPlan
	if err := json.Unmarshal([]byte(artifact), &p); err != nil {
		return nil, false
	}
	if p.Validate() != nil {
		return nil, false
	}
	return &p, true
}
