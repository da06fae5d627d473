package apply

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/taskflow/internal/patch"
	"github.com/felixgeelhaar/taskflow/internal/validate"
)

// EditRequest describes a multi-file edit.
type EditRequest struct {
	Instruction string
	Files       []string
	DryRun      bool
	Checkpoint  bool
	// Force applies the change set even when validation reports errors.
	Force bool
}

// EditResult carries every stage of an edit. Apply is nil when the edit was
// not applied because validation failed.
type EditResult struct {
	Changes    []patch.FileChange `json:"changes"`
	Validation validate.Result    `json:"validation"`
	Apply      *Result            `json:"apply,omitempty"`
}

// Editor coordinates generate, validate and apply for multi-file edits.
type Editor struct {
	workdir   string
	generator Generator
	validator *validate.Validator
	engine    *Engine
}

// NewEditor wires the edit stages together.
func NewEditor(workdir string, generator Generator, validator *validate.Validator, engine *Engine) *Editor {
	return &Editor{workdir: workdir, generator: generator, validator: validator, engine: engine}
}

// Edit generates changes for req, validates them and applies them.
func (ed *Editor) Edit(ctx context.Context, req EditRequest) (*EditResult, error) {
	sources := make([]SourceFile, 0, len(req.Files))
	for _, p := range req.Files {
		content, err := ed.read(p)
		if err != nil {
			return nil, err
		}
		sources = append(sources, SourceFile{Path: p, Content: content})
	}

	changes, err := ed.generator.Generate(ctx, req.Instruction, sources)
	if err != nil {
		return nil, fmt.Errorf("generate changes: %w", err)
	}

	known := make(map[string]bool, len(sources))
	for _, s := range sources {
		known[filepath.ToSlash(filepath.Clean(s.Path))] = true
	}
	for i, c := range changes {
		if !known[c.Path] && c.OriginalContent == "" {
			if content, err := ed.read(c.Path); err == nil {
				c.OriginalContent = content
			}
		}
		changes[i] = c.WithChanges()
	}

	res := &EditResult{Changes: changes}
	res.Validation = ed.validator.Validate(ctx, changes)
	if !res.Validation.Valid && !req.Force {
		return res, nil
	}

	applied := ed.engine.Apply(ctx, changes, Options{
		DryRun:      req.DryRun,
		Checkpoint:  req.Checkpoint,
		Description: req.Instruction,
	})
	res.Apply = &applied
	return res, nil
}

func (ed *Editor) read(p string) (string, error) {
	data, err := os.ReadFile(filepath.Join(ed.workdir, filepath.FromSlash(p)))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", p, err)
	}
	return string(data), nil
}
