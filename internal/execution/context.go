// Package execution holds the per-task boundary through which agents invoke
// tools and checkpoints.
package execution

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/felixgeelhaar/taskflow/internal/checkpoint"
	"github.com/felixgeelhaar/taskflow/internal/errors"
	"github.com/felixgeelhaar/taskflow/internal/log"
	"github.com/felixgeelhaar/taskflow/internal/plan"
	"github.com/felixgeelhaar/taskflow/internal/tools"
)

// Options configures a Context.
type Options struct {
	Workdir string
	Logger  *log.Logger
}

// Context serves exactly one task. It is never shared between tasks.
type Context struct {
	taskID   string
	registry tools.Registry
	store    checkpoint.Store
	workdir  string
	logger   *log.Logger

	mu      sync.Mutex
	results []tools.Result
	plan    *plan.ExecutionPlan
}

// New creates a Context. registry and store may be nil.
func New(taskID string, registry tools.Registry, store checkpoint.Store, opts Options) *Context {
	logger := opts.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &Context{
		taskID:   taskID,
		registry: registry,
		store:    store,
		workdir:  opts.Workdir,
		logger:   logger.With("task_id", taskID),
	}
}

// TaskID returns the id of the task this context serves.
func (c *Context) TaskID() string { return c.taskID }

// Workdir returns the working directory tools operate in.
func (c *Context) Workdir() string { return c.workdir }

// Registry returns the tool registry, possibly nil.
func (c *Context) Registry() tools.Registry { return c.registry }

// Logger returns the task-scoped logger.
func (c *Context) Logger() *log.Logger { return c.logger }

// ExecuteTool invokes a registered tool. It never returns an error: unknown
// tools, handler errors and panics all become failed results, and every
// outcome is appended to the results log.
func (c *Context) ExecuteTool(ctx context.Context, name string, args map[string]any) tools.Result {
	start := time.Now()

	var res tools.Result
	def, ok := c.lookup(name)
	if !ok {
		res = tools.Result{Error: errors.NewToolNotFoundError(name).Message}
	} else {
		res = c.invoke(ctx, def, args)
	}

	res.Tool = name
	if res.Duration == 0 {
		res.Duration = time.Since(start)
	}

	c.logger.Debug("tool executed",
		"tool", name,
		"success", res.Success,
		"duration_ms", res.Duration.Milliseconds(),
	)

	c.mu.Lock()
	c.results = append(c.results, res)
	c.mu.Unlock()
	return res
}

func (c *Context) lookup(name string) (tools.Definition, bool) {
	if c.registry == nil {
		return tools.Definition{}, false
	}
	return c.registry.Get(name)
}

func (c *Context) invoke(ctx context.Context, def tools.Definition, args map[string]any) (res tools.Result) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("tool panicked", "tool", def.Name, "panic", r, "stack", string(debug.Stack()))
			res = tools.Result{Error: fmt.Sprintf("tool %s panicked: %v", def.Name, r)}
		}
	}()

	if args == nil {
		args = map[string]any{}
	}
	out, err := def.Handler(ctx, args, tools.ToolContext{TaskID: c.taskID, Workdir: c.workdir})
	if err != nil {
		out.Success = false
		out.Error = errors.Summary(err)
	}
	if !out.Success && out.Error == "" {
		out.Error = fmt.Sprintf("tool %s failed", def.Name)
	}
	return out
}

// Results returns a copy of the ordered results log.
func (c *Context) Results() []tools.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]tools.Result(nil), c.results...)
}

// LastResult returns the most recent tool result.
func (c *Context) LastResult() (tools.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.results) == 0 {
		return tools.Result{}, false
	}
	return c.results[len(c.results)-1], true
}

// SetPlan records the plan produced for this task.
func (c *Context) SetPlan(p *plan.ExecutionPlan) {
	c.mu.Lock()
	c.plan = p
	c.mu.Unlock()
}

// Plan returns the current plan, or nil.
func (c *Context) Plan() *plan.ExecutionPlan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plan
}

// CreateCheckpoint snapshots the workspace. Without a store it returns an
// empty id and no error.
func (c *Context) CreateCheckpoint(ctx context.Context, description string) (string, error) {
	if c.store == nil {
		return "", nil
	}
	id := fmt.Sprintf("%s-%d", c.taskID, time.Now().UnixNano())
	cp, err := c.store.CreateCheckpoint(ctx, id, description)
	if err != nil {
		return "", err
	}
	c.logger.Info("checkpoint created", "checkpoint_id", cp.ID)
	return cp.ID, nil
}

// RestoreCheckpoint restores a checkpoint by id. Without a store it reports false.
func (c *Context) RestoreCheckpoint(ctx context.Context, id string) (bool, error) {
	if c.store == nil || id == "" {
		return false, nil
	}
	return c.store.Restore(ctx, id)
}
