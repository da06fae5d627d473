// Package patch models file changes, computes line diffs between their
// before and after content and journals applied change sets.
package patch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ChangeType classifies a run of lines in a ContentChange.
type ChangeType string

const (
	ChangeAdded     ChangeType = "added"
	ChangeRemoved   ChangeType = "removed"
	ChangeUnchanged ChangeType = "unchanged"
)

// ContentChange is a run of lines with the same ChangeType. Line numbers are
// 1-based and inclusive; removed runs refer to the original content, the
// others to the new content.
type ContentChange struct {
	Type      ChangeType `json:"type"`
	Text      string     `json:"text"`
	StartLine int        `json:"startLine"`
	EndLine   int        `json:"endLine"`
}

// Kind is the file-level effect of a FileChange.
type Kind string

const (
	KindCreate    Kind = "create"
	KindModify    Kind = "modify"
	KindDelete    Kind = "delete"
	KindUnchanged Kind = "unchanged"
)

// FileChange is the before and after content of one file.
type FileChange struct {
	Path            string          `json:"path"`
	OriginalContent string          `json:"originalContent"`
	NewContent      string          `json:"newContent"`
	Changes         []ContentChange `json:"changes,omitempty"`
}

// Kind derives the effect: empty original creates, empty new deletes.
func (c FileChange) Kind() Kind {
	switch {
	case c.OriginalContent == c.NewContent:
		return KindUnchanged
	case c.OriginalContent == "":
		return KindCreate
	case c.NewContent == "":
		return KindDelete
	default:
		return KindModify
	}
}

// Stats returns the number of inserted and deleted lines.
func (c FileChange) Stats() (insertions, deletions int) {
	changes := c.Changes
	if changes == nil {
		changes = ComputeContentChanges(c.OriginalContent, c.NewContent)
	}
	for _, ch := range changes {
		n := ch.EndLine - ch.StartLine + 1
		switch ch.Type {
		case ChangeAdded:
			insertions += n
		case ChangeRemoved:
			deletions += n
		}
	}
	return insertions, deletions
}

// WithChanges returns a copy with Changes computed from the contents.
func (c FileChange) WithChanges() FileChange {
	c.Changes = ComputeContentChanges(c.OriginalContent, c.NewContent)
	return c
}

// LoadChanges reads a JSON array of FileChange from path. A change whose
// originalContent is omitted is completed from disk relative to workdir.
func LoadChanges(path, workdir string) ([]FileChange, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read change set: %w", err)
	}

	var raw []struct {
		Path            string  `json:"path"`
		OriginalContent *string `json:"originalContent"`
		NewContent      string  `json:"newContent"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse change set: %w", err)
	}

	changes := make([]FileChange, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r.Path) == "" {
			return nil, fmt.Errorf("change set entry without path")
		}
		c := FileChange{Path: filepath.ToSlash(filepath.Clean(r.Path)), NewContent: r.NewContent}
		if r.OriginalContent != nil {
			c.OriginalContent = *r.OriginalContent
		} else if existing, err := os.ReadFile(filepath.Join(workdir, c.Path)); err == nil {
			c.OriginalContent = string(existing)
		}
		changes = append(changes, c.WithChanges())
	}
	return changes, nil
}
