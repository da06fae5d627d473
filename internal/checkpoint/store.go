package checkpoint

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/taskflow/internal/errors"
	"github.com/felixgeelhaar/taskflow/internal/tools"
)

const (
	manifestDir = "manifests"
	objectDir   = "objects"
)

// FileStore keeps manifests as JSON files and file contents as
// content-addressed blobs under dir.
type FileStore struct {
	workdir string
	dir     string
}

// NewFileStore creates a store snapshotting files below workdir into dir.
func NewFileStore(workdir, dir string) *FileStore {
	return &FileStore{workdir: workdir, dir: dir}
}

// Dir returns the storage directory.
func (s *FileStore) Dir() string { return s.dir }

// CreateCheckpoint records the current content of paths. With no paths the
// whole workspace is captured, honoring .gitignore, and a later Restore also
// deletes non-ignored files that appeared after the snapshot.
func (s *FileStore) CreateCheckpoint(ctx context.Context, id, description string, paths ...string) (*Checkpoint, error) {
	if id == "" {
		return nil, errors.New(errors.ErrCodeCheckpointWrite, "checkpoint id is required")
	}

	workspace := len(paths) == 0
	if workspace {
		var err error
		if paths, err = s.workspaceFiles(ctx); err != nil {
			return nil, errors.Wrap(errors.ErrCodeCheckpointWrite, "failed to enumerate workspace", err)
		}
	}

	cp := &Checkpoint{
		ID:          id,
		Description: description,
		CreatedAt:   time.Now(),
		Files:       make(map[string]string, len(paths)),
		Workspace:   workspace,
	}

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel, err := s.relative(p)
		if err != nil {
			return nil, err
		}

		data, err := os.ReadFile(filepath.Join(s.workdir, rel))
		if err != nil {
			if os.IsNotExist(err) {
				cp.Files[rel] = ""
				continue
			}
			return nil, errors.Wrap(errors.ErrCodeCheckpointWrite, fmt.Sprintf("failed to read %s", rel), err)
		}

		hash, err := s.putObject(data)
		if err != nil {
			return nil, err
		}
		cp.Files[rel] = hash
	}

	if err := s.save(cp); err != nil {
		return nil, err
	}
	return cp, nil
}

// Restore writes every captured file back and removes files that did not
// exist at snapshot time. For workspace checkpoints that includes any file
// not in the manifest. It reports false when the checkpoint is unknown.
func (s *FileStore) Restore(ctx context.Context, id string) (bool, error) {
	cp, err := s.Load(id)
	if err != nil {
		if errors.CodeOf(err) == errors.ErrCodeCheckpointNotFound {
			return false, nil
		}
		return false, err
	}

	for _, rel := range sortedPaths(cp.Files) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		full := filepath.Join(s.workdir, rel)
		hash := cp.Files[rel]

		if hash == "" {
			if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
				return false, fmt.Errorf("failed to remove %s: %w", rel, err)
			}
			continue
		}

		data, err := s.getObject(hash)
		if err != nil {
			return false, err
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return false, fmt.Errorf("failed to create directory for %s: %w", rel, err)
		}
		if err := os.WriteFile(full, data, 0o644); err != nil {
			return false, fmt.Errorf("failed to restore %s: %w", rel, err)
		}
	}

	if cp.Workspace {
		if err := s.removeUntracked(ctx, cp); err != nil {
			return false, err
		}
	}
	return true, nil
}

// removeUntracked deletes workspace files that cp does not know about.
func (s *FileStore) removeUntracked(ctx context.Context, cp *Checkpoint) error {
	current, err := s.workspaceFiles(ctx)
	if err != nil {
		return fmt.Errorf("failed to enumerate workspace: %w", err)
	}
	for _, rel := range current {
		if _, ok := cp.Files[rel]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(s.workdir, rel)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", rel, err)
		}
	}
	return nil
}

// Load reads a checkpoint manifest.
func (s *FileStore) Load(id string) (*Checkpoint, error) {
	data, err := os.ReadFile(s.manifestPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewCheckpointNotFoundError(id)
		}
		return nil, fmt.Errorf("failed to read checkpoint manifest: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCheckpointCorrupt, fmt.Sprintf("checkpoint %s is corrupt", id), err)
	}
	return &cp, nil
}

// Exists checks whether a manifest exists for id.
func (s *FileStore) Exists(id string) bool {
	_, err := os.Stat(s.manifestPath(id))
	return err == nil
}

// Delete removes a manifest. Blobs are left for Prune.
func (s *FileStore) Delete(id string) error {
	if err := os.Remove(s.manifestPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// List returns all checkpoints, newest first.
func (s *FileStore) List() ([]*Checkpoint, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, manifestDir))
	if err != nil {
		if os.IsNotExist(err) {
			return []*Checkpoint{}, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint directory: %w", err)
	}

	var out []*Checkpoint
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		cp, err := s.Load(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Prune deletes blobs not referenced by any manifest and returns how many were removed.
func (s *FileStore) Prune() (int, error) {
	cps, err := s.List()
	if err != nil {
		return 0, err
	}
	live := make(map[string]bool)
	for _, cp := range cps {
		for _, h := range cp.Files {
			if h != "" {
				live[h] = true
			}
		}
	}

	entries, err := os.ReadDir(filepath.Join(s.dir, objectDir))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if live[entry.Name()] {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, objectDir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

func (s *FileStore) save(cp *Checkpoint) error {
	if err := os.MkdirAll(filepath.Join(s.dir, manifestDir), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeCheckpointWrite, "failed to create checkpoint directory", err)
	}
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := os.WriteFile(s.manifestPath(cp.ID), data, 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeCheckpointWrite, "failed to write checkpoint manifest", err)
	}
	return nil
}

func (s *FileStore) putObject(data []byte) (string, error) {
	sum := blake3.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	path := filepath.Join(s.dir, objectDir, hash)
	if _, err := os.Stat(path); err == nil {
		return hash, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", errors.Wrap(errors.ErrCodeCheckpointWrite, "failed to create object directory", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(errors.ErrCodeCheckpointWrite, "failed to write object", err)
	}
	return hash, nil
}

func (s *FileStore) getObject(hash string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, objectDir, hash))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCheckpointCorrupt, fmt.Sprintf("missing object %s", hash), err)
	}
	return data, nil
}

func (s *FileStore) manifestPath(id string) string {
	return filepath.Join(s.dir, manifestDir, id+".json")
}

// relative normalizes p to a slash-separated path inside the workdir.
func (s *FileStore) relative(p string) (string, error) {
	if filepath.IsAbs(p) {
		root, err := filepath.Abs(s.workdir)
		if err != nil {
			return "", err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", errors.New(errors.ErrCodeToolOutsideRoot, fmt.Sprintf("path %s is outside the working directory", p))
		}
		p = rel
	}
	p = filepath.ToSlash(filepath.Clean(p))
	if p == ".." || strings.HasPrefix(p, "../") {
		return "", errors.New(errors.ErrCodeToolOutsideRoot, fmt.Sprintf("path %s is outside the working directory", p))
	}
	return p, nil
}

func (s *FileStore) workspaceFiles(ctx context.Context) ([]string, error) {
	matcher := tools.LoadIgnore(s.workdir)
	stateDir, _ := filepath.Abs(s.dir)

	var files []string
	err := filepath.WalkDir(s.workdir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if abs, _ := filepath.Abs(path); abs == stateDir {
			return filepath.SkipDir
		}
		rel, relErr := filepath.Rel(s.workdir, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if tools.Ignored(matcher, rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, rel)
		}
		return nil
	})
	return files, err
}

func sortedPaths(files map[string]string) []string {
	out := make([]string, 0, len(files))
	for p := range files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
