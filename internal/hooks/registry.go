package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/taskflow/internal/log"
)

const maxConcurrency = 4

// Registry manages hooks and dispatches events to them.
type Registry struct {
	mu      sync.RWMutex
	hooks   map[EventType][]Hook
	timeout time.Duration
	logger  *log.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Nop()
	}
	return &Registry{
		hooks:   make(map[EventType][]Hook),
		timeout: DefaultTimeout,
		logger:  logger.WithComponent("hooks"),
	}
}

// Register adds a hook for each event type it handles.
func (r *Registry) Register(hook Hook) error {
	if hook == nil {
		return fmt.Errorf("hook cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, eventType := range hook.EventTypes() {
		r.hooks[eventType] = append(r.hooks[eventType], hook)
	}
	return nil
}

// RegisterConfigs builds and registers script hooks from configuration.
func (r *Registry) RegisterConfigs(configs []Config) error {
	for _, c := range configs {
		if err := c.Validate(); err != nil {
			return err
		}
		if err := r.Register(NewScriptHook(c)); err != nil {
			return err
		}
	}
	return nil
}

// Trigger runs all hooks registered for the event. Hook failures are logged
// and reported in the results; they never fail the caller. A nil registry is a no-op.
func (r *Registry) Trigger(ctx context.Context, event *Event) []ExecutionResult {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	hooks := append([]Hook(nil), r.hooks[event.Type]...)
	r.mu.RUnlock()

	if len(hooks) == 0 {
		return nil
	}

	results := make([]ExecutionResult, len(hooks))
	var g errgroup.Group
	g.SetLimit(maxConcurrency)

	for i, h := range hooks {
		g.Go(func() error {
			results[i] = r.execute(ctx, h, event)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		if !res.Success {
			r.logger.Warn("hook failed", "hook", res.HookName, "event", string(res.EventType), "error", res.Error)
		}
	}
	return results
}

func (r *Registry) execute(ctx context.Context, hook Hook, event *Event) ExecutionResult {
	hookCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := hook.Execute(hookCtx, event)

	res := ExecutionResult{
		HookName:  hook.Name(),
		EventType: event.Type,
		Success:   err == nil,
		Duration:  time.Since(start),
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// Count returns the number of distinct registered hooks.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	for _, hooks := range r.hooks {
		for _, h := range hooks {
			seen[h.Name()] = true
		}
	}
	return len(seen)
}
