// Package validate checks a change set for structural problems before it is
// applied: unbalanced brackets, relative references that resolve nowhere and
// circular dependencies between the changed files.
package validate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/taskflow/internal/depgraph"
	"github.com/felixgeelhaar/taskflow/internal/patch"
)

// Severity of an Issue. Only errors make a Result invalid.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one finding.
type Issue struct {
	Severity   Severity `json:"severity"`
	File       string   `json:"file"`
	Line       int      `json:"line,omitempty"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Result is the outcome of validating a change set.
type Result struct {
	Valid  bool            `json:"valid"`
	Issues []Issue         `json:"issues"`
	Graph  *depgraph.Graph `json:"graph,omitempty"`
}

// Errors returns the error-severity issues.
func (r Result) Errors() []Issue { return r.filter(SeverityError) }

// Warnings returns the warning-severity issues.
func (r Result) Warnings() []Issue { return r.filter(SeverityWarning) }

func (r Result) filter(s Severity) []Issue {
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == s {
			out = append(out, i)
		}
	}
	return out
}

// Validator checks change sets against a working directory.
type Validator struct {
	workdir string
	builder *depgraph.Builder
}

// New returns a Validator. References that are not part of the change set
// are looked up on disk under workdir.
func New(workdir string, builder *depgraph.Builder) *Validator {
	if builder == nil {
		builder = depgraph.NewBuilder(0)
	}
	return &Validator{workdir: workdir, builder: builder}
}

// Validate checks changes. It never fails; problems are reported as issues.
func (v *Validator) Validate(ctx context.Context, changes []patch.FileChange) Result {
	files := Files(changes)
	graph := v.builder.Build(files)

	present := make(map[string]bool, len(changes))
	deleted := make(map[string]bool)
	for _, c := range changes {
		p := filepath.ToSlash(filepath.Clean(c.Path))
		if c.Kind() == patch.KindDelete {
			deleted[p] = true
			continue
		}
		present[p] = true
	}
	exists := func(p string) bool {
		if present[p] {
			return true
		}
		if deleted[p] {
			return false
		}
		return v.onDisk(p)
	}

	var issues []Issue
	for _, c := range changes {
		if ctx.Err() != nil {
			break
		}
		kind := c.Kind()
		if kind == patch.KindUnchanged || kind == patch.KindDelete {
			continue
		}
		path := filepath.ToSlash(filepath.Clean(c.Path))
		issues = append(issues, checkBrackets(path, c.NewContent)...)
		issues = append(issues, checkReferences(path, c.NewContent, exists)...)
	}

	for _, comp := range graph.Cycles() {
		issues = append(issues, Issue{
			Severity:   SeverityWarning,
			File:       comp[0],
			Message:    fmt.Sprintf("circular dependency between %s", strings.Join(comp, ", ")),
			Suggestion: "break the cycle or apply these files together",
		})
	}

	res := Result{Valid: true, Issues: issues, Graph: graph}
	if len(res.Errors()) > 0 {
		res.Valid = false
	}
	return res
}

func (v *Validator) onDisk(p string) bool {
	if v.workdir == "" {
		return false
	}
	full := filepath.Join(v.workdir, filepath.FromSlash(p))
	rel, err := filepath.Rel(v.workdir, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

// Files converts changes to graph nodes using their new content.
func Files(changes []patch.FileChange) []depgraph.File {
	files := make([]depgraph.File, 0, len(changes))
	for _, c := range changes {
		files = append(files, depgraph.File{Path: filepath.ToSlash(filepath.Clean(c.Path)), Content: c.NewContent})
	}
	return files
}

var bracketPairs = [][2]rune{{'(', ')'}, {'[', ']'}, {'{', '}'}}

func checkBrackets(path, content string) []Issue {
	counts := map[rune]int{}
	for _, r := range content {
		counts[r]++
	}
	var issues []Issue
	for _, p := range bracketPairs {
		if counts[p[0]] != counts[p[1]] {
			issues = append(issues, Issue{
				Severity:   SeverityError,
				File:       path,
				Message:    fmt.Sprintf("unbalanced brackets: %d '%c' vs %d '%c'", counts[p[0]], p[0], counts[p[1]], p[1]),
				Suggestion: "check for a missing or extra bracket",
			})
		}
	}
	return issues
}

func checkReferences(path, content string, exists func(string) bool) []Issue {
	var issues []Issue
	for _, ref := range depgraph.Extract(path, content) {
		if !ref.Relative {
			continue
		}
		if _, ok := depgraph.ResolvePath(path, ref.Spec, exists); ok {
			continue
		}
		target := filepath.ToSlash(filepath.Join(filepath.Dir(path), ref.Spec))
		issues = append(issues, Issue{
			Severity:   SeverityError,
			File:       path,
			Line:       ref.Line,
			Message:    fmt.Sprintf("unresolved reference %q", ref.Spec),
			Suggestion: fmt.Sprintf("create %s in the same change set or fix the import path", target),
		})
	}
	return issues
}
