// Package tools defines the tool registry boundary and a small set of builtin tools.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/felixgeelhaar/taskflow/internal/errors"
)

// Result is the outcome of one tool invocation.
type Result struct {
	Tool         string        `json:"tool"`
	Success      bool          `json:"success"`
	Output       string        `json:"output"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
	FilesChanged []string      `json:"filesChanged,omitempty"`
}

// ToolContext carries per-task data into a handler.
type ToolContext struct {
	TaskID  string
	Workdir string
}

// Handler executes a tool. A returned error is converted into a failed Result
// by the caller; handlers may also report failure through Result directly.
type Handler func(ctx context.Context, args map[string]any, tc ToolContext) (Result, error)

// Definition describes a callable tool.
type Definition struct {
	Name        string
	Description string
	Handler     Handler
}

// Registry lists and resolves tools.
type Registry interface {
	List() []Definition
	Get(name string) (Definition, bool)
}

// MemoryRegistry is a goroutine-safe in-memory Registry.
type MemoryRegistry struct {
	mu    sync.RWMutex
	tools map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *MemoryRegistry {
	return &MemoryRegistry{tools: make(map[string]Definition)}
}

// Register adds a tool. Names must be unique.
func (r *MemoryRegistry) Register(def Definition) error {
	if def.Name == "" || def.Handler == nil {
		return errors.New(errors.ErrCodeToolInvalidArgs, "tool definition requires a name and a handler")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[def.Name]; exists {
		return errors.New(errors.ErrCodeToolDuplicate, fmt.Sprintf("tool %s already registered", def.Name))
	}
	r.tools[def.Name] = def
	return nil
}

// MustRegister is Register that panics on error; for static wiring only.
func (r *MemoryRegistry) MustRegister(defs ...Definition) *MemoryRegistry {
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			panic(err)
		}
	}
	return r
}

// Get resolves a tool by name.
func (r *MemoryRegistry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

// List returns all tools sorted by name.
func (r *MemoryRegistry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for _, def := range r.tools {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
