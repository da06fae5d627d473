// Package apply commits validated change sets to the working directory as a
// single transaction backed by a checkpoint.
package apply

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/taskflow/internal/checkpoint"
	"github.com/felixgeelhaar/taskflow/internal/depgraph"
	"github.com/felixgeelhaar/taskflow/internal/errors"
	"github.com/felixgeelhaar/taskflow/internal/hooks"
	"github.com/felixgeelhaar/taskflow/internal/log"
	"github.com/felixgeelhaar/taskflow/internal/metrics"
	"github.com/felixgeelhaar/taskflow/internal/patch"
	"github.com/felixgeelhaar/taskflow/internal/validate"
)

// Options controls one Apply call.
type Options struct {
	DryRun      bool
	Checkpoint  bool
	Description string
}

// Result reports an apply. Counts describe the change set whether or not it
// was committed.
type Result struct {
	Success      bool          `json:"success"`
	Created      int           `json:"created"`
	Changed      int           `json:"changed"`
	Deleted      int           `json:"deleted"`
	CheckpointID string        `json:"checkpointId,omitempty"`
	JournalID    string        `json:"journalId,omitempty"`
	Order        []string      `json:"order"`
	Duration     time.Duration `json:"duration"`
	Errors       []string      `json:"errors,omitempty"`
	Warnings     []string      `json:"warnings,omitempty"`
}

// Engine applies change sets under a working directory.
type Engine struct {
	workdir string
	store   checkpoint.Store
	builder *depgraph.Builder
	journal *patch.Journal
	hooks   *hooks.Registry
	metrics *metrics.Metrics
	logger  *log.Logger

	write  func(path string, data []byte) error
	remove func(path string) error
}

// NewEngine creates an engine. store may be nil, in which case checkpoints
// are skipped and failures cannot be rolled back.
func NewEngine(workdir string, store checkpoint.Store, builder *depgraph.Builder) *Engine {
	if builder == nil {
		builder = depgraph.NewBuilder(0)
	}
	return &Engine{
		workdir: workdir,
		store:   store,
		builder: builder,
		logger:  log.Nop(),
		write:   writeFile,
		remove:  removeFile,
	}
}

// SetLogger sets the logger.
func (e *Engine) SetLogger(l *log.Logger) {
	if l != nil {
		e.logger = l.WithComponent("apply")
	}
}

// SetJournal records successful applies in j.
func (e *Engine) SetJournal(j *patch.Journal) { e.journal = j }

// SetHookRegistry enables apply lifecycle hooks.
func (e *Engine) SetHookRegistry(r *hooks.Registry) { e.hooks = r }

// SetMetrics enables apply metrics.
func (e *Engine) SetMetrics(m *metrics.Metrics) { e.metrics = m }

// Builder returns the graph builder used for ordering.
func (e *Engine) Builder() *depgraph.Builder { return e.builder }

// Apply writes changes in dependency order. The first failing write stops
// the transaction and restores the checkpoint taken beforehand.
func (e *Engine) Apply(ctx context.Context, changes []patch.FileChange, opts Options) Result {
	start := time.Now()
	res := Result{}

	normalized, err := e.normalize(changes)
	if err != nil {
		res.Errors = append(res.Errors, errors.Summary(err))
		e.metrics.RecordApply("invalid", 0, 0, 0)
		e.metrics.RecordError(string(errors.CodeOf(err)), "apply")
		return finish(res, start)
	}

	ordered := Order(normalized, e.builder.Build(validate.Files(normalized)))
	var pending []patch.FileChange
	for _, c := range ordered {
		switch c.Kind() {
		case patch.KindCreate:
			res.Created++
		case patch.KindModify:
			res.Changed++
		case patch.KindDelete:
			res.Deleted++
		default:
			continue
		}
		pending = append(pending, c)
		res.Order = append(res.Order, c.Path)
	}

	logger := e.logger.With("files", len(pending), "dry_run", opts.DryRun)

	if opts.DryRun {
		res.Success = true
		e.metrics.RecordApply("dry_run", res.Created, res.Changed, res.Deleted)
		logger.Debug("dry run", "created", res.Created, "changed", res.Changed, "deleted", res.Deleted)
		return finish(res, start)
	}

	if err := ctx.Err(); err != nil {
		res.Errors = append(res.Errors, err.Error())
		return finish(res, start)
	}

	if opts.Checkpoint && e.store != nil && len(pending) > 0 {
		id := "apply-" + uuid.NewString()
		paths := make([]string, len(pending))
		for i, c := range pending {
			paths[i] = c.Path
		}
		if _, err := e.store.CreateCheckpoint(ctx, id, opts.Description, paths...); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("checkpoint failed: %s", errors.Summary(err)))
			e.metrics.RecordApply("failed", res.Created, res.Changed, res.Deleted)
			logger.WithError(err).Warn("checkpoint failed, nothing written")
			return finish(res, start)
		}
		res.CheckpointID = id
	}

	for i, c := range pending {
		err := ctx.Err()
		if err == nil {
			err = e.applyOne(c)
		}
		if err != nil {
			applyErr := errors.NewApplyFailedError(c.Path, err)
			res.Errors = append(res.Errors, errors.Summary(applyErr))
			e.metrics.RecordError(string(applyErr.Code), "apply")
			e.rollback(ctx, &res, i)
			logger.WithError(applyErr).Error("apply failed", "written", i)
			return finish(res, start)
		}
	}

	res.Success = true
	e.metrics.RecordApply("applied", res.Created, res.Changed, res.Deleted)

	if e.journal != nil {
		entry := patch.NewJournalEntry(uuid.NewString(), opts.Description, res.CheckpointID, pending)
		if _, err := e.journal.Write(entry); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("Journal write failed: %v", err))
		} else {
			res.JournalID = entry.ID
		}
	}

	e.hooks.Trigger(context.WithoutCancel(ctx), hooks.NewEvent(hooks.EventApplyComplete, res.CheckpointID, map[string]string{
		"created": strconv.Itoa(res.Created),
		"changed": strconv.Itoa(res.Changed),
		"deleted": strconv.Itoa(res.Deleted),
	}))
	logger.Info("change set applied", "checkpoint", res.CheckpointID)
	return finish(res, start)
}

func finish(res Result, start time.Time) Result {
	res.Duration = time.Since(start)
	return res
}

// rollback restores the checkpoint after written successful writes.
func (e *Engine) rollback(ctx context.Context, res *Result, written int) {
	e.metrics.RecordApply("rolled_back", res.Created, res.Changed, res.Deleted)

	if res.CheckpointID == "" {
		if written > 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("No checkpoint available; %d earlier writes were not rolled back", written))
		}
		return
	}

	ok, err := e.store.Restore(context.WithoutCancel(ctx), res.CheckpointID)
	switch {
	case err != nil:
		res.Warnings = append(res.Warnings, fmt.Sprintf("Rollback failed: %s", errors.Summary(err)))
	case !ok:
		res.Warnings = append(res.Warnings, fmt.Sprintf("Rollback failed: checkpoint %s not found", res.CheckpointID))
	default:
		res.Warnings = append(res.Warnings, fmt.Sprintf("Rolled back to checkpoint %s", res.CheckpointID))
	}
	e.metrics.RecordRollback(err == nil && ok)

	e.hooks.Trigger(context.WithoutCancel(ctx), hooks.NewEvent(hooks.EventApplyRolledBack, res.CheckpointID, map[string]string{
		"written":    strconv.Itoa(written),
		"checkpoint": res.CheckpointID,
	}))
}

// normalize cleans paths and rejects change sets that cannot be applied.
func (e *Engine) normalize(changes []patch.FileChange) ([]patch.FileChange, error) {
	seen := make(map[string]bool, len(changes))
	out := make([]patch.FileChange, 0, len(changes))
	for _, c := range changes {
		if strings.TrimSpace(c.Path) == "" {
			return nil, errors.New(errors.ErrCodeApplyInvalid, "change without path")
		}
		p := filepath.ToSlash(filepath.Clean(c.Path))
		if filepath.IsAbs(c.Path) || p == ".." || strings.HasPrefix(p, "../") {
			return nil, errors.New(errors.ErrCodeApplyInvalid, fmt.Sprintf("path %s is outside the working directory", c.Path))
		}
		if seen[p] {
			return nil, errors.New(errors.ErrCodeApplyInvalid, fmt.Sprintf("duplicate change for %s", p))
		}
		seen[p] = true
		c.Path = p
		out = append(out, c)
	}
	return out, nil
}

func (e *Engine) applyOne(c patch.FileChange) error {
	full := filepath.Join(e.workdir, filepath.FromSlash(c.Path))
	if c.Kind() == patch.KindDelete {
		return e.remove(full)
	}
	return e.write(full, []byte(c.NewContent))
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	return os.WriteFile(path, data, mode)
}

func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
