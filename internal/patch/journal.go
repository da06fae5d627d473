package patch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// JournalEntry records one successfully applied change set.
type JournalEntry struct {
	ID           string      `json:"id"`
	Timestamp    time.Time   `json:"timestamp"`
	Description  string      `json:"description"`
	CheckpointID string      `json:"checkpointId,omitempty"`
	Files        []FileEntry `json:"files"`

	FilesChanged int `json:"filesChanged"`
	Insertions   int `json:"insertions"`
	Deletions    int `json:"deletions"`
}

// FileEntry summarises one file in a JournalEntry.
type FileEntry struct {
	Path       string `json:"path"`
	Kind       Kind   `json:"kind"`
	Diff       string `json:"diff"`
	Insertions int    `json:"insertions"`
	Deletions  int    `json:"deletions"`
}

// NewJournalEntry builds an entry from the applied changes.
func NewJournalEntry(id, description, checkpointID string, changes []FileChange) *JournalEntry {
	e := &JournalEntry{
		ID:           id,
		Timestamp:    time.Now(),
		Description:  description,
		CheckpointID: checkpointID,
		Files:        make([]FileEntry, 0, len(changes)),
	}
	for _, c := range changes {
		ins, del := c.Stats()
		e.Files = append(e.Files, FileEntry{
			Path:       c.Path,
			Kind:       c.Kind(),
			Diff:       UnifiedDiff(c.Path, c),
			Insertions: ins,
			Deletions:  del,
		})
		e.Insertions += ins
		e.Deletions += del
	}
	e.FilesChanged = len(e.Files)
	return e
}

// Journal persists entries as JSON files in a directory.
type Journal struct {
	dir string
}

// NewJournal creates a journal rooted at dir.
func NewJournal(dir string) *Journal {
	return &Journal{dir: dir}
}

// Write stores an entry and returns its path.
func (j *Journal) Write(e *JournalEntry) (string, error) {
	if err := os.MkdirAll(j.dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create journal directory: %w", err)
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize journal entry: %w", err)
	}

	path := filepath.Join(j.dir, e.ID+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write journal entry: %w", err)
	}
	return path, nil
}

// Read loads an entry by id.
func (j *Journal) Read(id string) (*JournalEntry, error) {
	data, err := os.ReadFile(filepath.Join(j.dir, id+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read journal entry: %w", err)
	}
	var e JournalEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to parse journal entry: %w", err)
	}
	return &e, nil
}

// List returns all entries, newest first. Unreadable files are skipped.
func (j *Journal) List() ([]*JournalEntry, error) {
	files, err := os.ReadDir(j.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*JournalEntry{}, nil
		}
		return nil, fmt.Errorf("failed to read journal directory: %w", err)
	}

	entries := []*JournalEntry{}
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		e, err := j.Read(strings.TrimSuffix(f.Name(), ".json"))
		if err != nil {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Timestamp.After(entries[b].Timestamp) })
	return entries, nil
}
