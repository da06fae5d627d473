package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/taskflow/internal/errors"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	workdir := t.TempDir()
	return NewFileStore(workdir, filepath.Join(workdir, ".taskflow", "checkpoints")), workdir
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func readFile(t *testing.T, dir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, rel))
	require.NoError(t, err)
	return string(data)
}

func TestCreateAndRestorePaths(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()
	writeFile(t, dir, "a.txt", "original a")

	cp, err := store.CreateCheckpoint(ctx, "cp-1", "before edit", "a.txt", "new.txt")
	require.NoError(t, err)
	assert.True(t, cp.Missing("new.txt"))
	assert.False(t, cp.Missing("a.txt"))

	writeFile(t, dir, "a.txt", "changed")
	writeFile(t, dir, "new.txt", "created later")

	ok, err := store.Restore(ctx, "cp-1")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, "original a", readFile(t, dir, "a.txt"))
	_, err = os.Stat(filepath.Join(dir, "new.txt"))
	assert.True(t, os.IsNotExist(err), "file absent at snapshot time should be removed")
}

func TestWorkspaceSnapshotHonorsGitignore(t *testing.T) {
	store, dir := newTestStore(t)
	writeFile(t, dir, ".gitignore", "dist/\n")
	writeFile(t, dir, "src/main.go", "package main")
	writeFile(t, dir, "dist/bundle.js", "built")

	cp, err := store.CreateCheckpoint(context.Background(), "ws", "workspace")
	require.NoError(t, err)

	assert.Contains(t, cp.Files, "src/main.go")
	assert.Contains(t, cp.Files, ".gitignore")
	assert.NotContains(t, cp.Files, "dist/bundle.js")
	for path := range cp.Files {
		assert.NotContains(t, path, ".taskflow")
	}
}

func TestWorkspaceRestoreRemovesLaterFiles(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()
	writeFile(t, dir, ".gitignore", "dist/\n")
	writeFile(t, dir, "src/main.go", "package main")

	cp, err := store.CreateCheckpoint(ctx, "ws", "before execute")
	require.NoError(t, err)
	assert.True(t, cp.Workspace)

	writeFile(t, dir, "src/main.go", "package broken")
	writeFile(t, dir, "src/generated.go", "package main // new")
	writeFile(t, dir, "dist/bundle.js", "built")

	ok, err := store.Restore(ctx, "ws")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "package main", readFile(t, dir, "src/main.go"))
	assert.NoFileExists(t, filepath.Join(dir, "src/generated.go"))
	assert.FileExists(t, filepath.Join(dir, "dist/bundle.js"), "ignored files are left alone")
	assert.True(t, store.Exists("ws"))
}

func TestPathCheckpointKeepsUnrelatedFiles(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()
	writeFile(t, dir, "a.txt", "a")

	cp, err := store.CreateCheckpoint(ctx, "paths", "apply", "a.txt")
	require.NoError(t, err)
	assert.False(t, cp.Workspace)

	writeFile(t, dir, "other.txt", "unrelated")
	ok, err := store.Restore(ctx, "paths")
	require.NoError(t, err)
	require.True(t, ok)
	assert.FileExists(t, filepath.Join(dir, "other.txt"))
}

func TestRestoreUnknownCheckpoint(t *testing.T) {
	store, _ := newTestStore(t)

	ok, err := store.Restore(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Load("nope")
	assert.Equal(t, errors.ErrCodeCheckpointNotFound, errors.CodeOf(err))
}

func TestIdenticalContentSharesObject(t *testing.T) {
	store, dir := newTestStore(t)
	writeFile(t, dir, "one.txt", "same")
	writeFile(t, dir, "two.txt", "same")

	cp, err := store.CreateCheckpoint(context.Background(), "dup", "", "one.txt", "two.txt")
	require.NoError(t, err)
	assert.Equal(t, cp.Files["one.txt"], cp.Files["two.txt"])

	objects, err := os.ReadDir(filepath.Join(store.Dir(), objectDir))
	require.NoError(t, err)
	assert.Len(t, objects, 1)
}

func TestListDeleteAndPrune(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()
	writeFile(t, dir, "a.txt", "a")

	_, err := store.CreateCheckpoint(ctx, "first", "", "a.txt")
	require.NoError(t, err)
	writeFile(t, dir, "a.txt", "b")
	_, err = store.CreateCheckpoint(ctx, "second", "", "a.txt")
	require.NoError(t, err)

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, store.Exists("first"))

	require.NoError(t, store.Delete("first"))
	assert.False(t, store.Exists("first"))
	require.NoError(t, store.Delete("first"), "deleting twice is not an error")

	removed, err := store.Prune()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}

func TestPathOutsideWorkdirRejected(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.CreateCheckpoint(context.Background(), "x", "", "../outside.txt")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeToolOutsideRoot, errors.CodeOf(err))
}

func TestListEmptyStore(t *testing.T) {
	store, _ := newTestStore(t)
	list, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}
