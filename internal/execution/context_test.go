package execution

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/taskflow/internal/checkpoint"
	"github.com/felixgeelhaar/taskflow/internal/plan"
	"github.com/felixgeelhaar/taskflow/internal/tools"
)

func testRegistry() *tools.MemoryRegistry {
	return tools.NewRegistry().MustRegister(
		tools.Definition{
			Name: "echo",
			Handler: func(_ context.Context, args map[string]any, _ tools.ToolContext) (tools.Result, error) {
				msg, _ := tools.StringArg(args, "msg")
				return tools.Result{Success: true, Output: msg}, nil
			},
		},
		tools.Definition{
			Name: "fail",
			Handler: func(context.Context, map[string]any, tools.ToolContext) (tools.Result, error) {
				return tools.Result{}, fmt.Errorf("boom")
			},
		},
		tools.Definition{
			Name: "panic",
			Handler: func(context.Context, map[string]any, tools.ToolContext) (tools.Result, error) {
				panic("kaboom")
			},
		},
	)
}

func TestExecuteToolOutcomes(t *testing.T) {
	ec := New("task-1", testRegistry(), nil, Options{})
	ctx := context.Background()

	res := ec.ExecuteTool(ctx, "echo", map[string]any{"msg": "hi"})
	assert.True(t, res.Success)
	assert.Equal(t, "hi", res.Output)

	res = ec.ExecuteTool(ctx, "missing", nil)
	assert.False(t, res.Success)
	assert.Equal(t, "Tool not found: missing", res.Error)

	res = ec.ExecuteTool(ctx, "fail", nil)
	assert.False(t, res.Success)
	assert.Equal(t, "boom", res.Error)

	res = ec.ExecuteTool(ctx, "panic", nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "kaboom")

	results := ec.Results()
	require.Len(t, results, 4)
	assert.Equal(t, []string{"echo", "missing", "fail", "panic"},
		[]string{results[0].Tool, results[1].Tool, results[2].Tool, results[3].Tool})

	last, ok := ec.LastResult()
	require.True(t, ok)
	assert.Equal(t, "panic", last.Tool)
}

func TestNilRegistry(t *testing.T) {
	ec := New("t", nil, nil, Options{})
	res := ec.ExecuteTool(context.Background(), "echo", nil)
	assert.False(t, res.Success)

	_, ok := New("t2", nil, nil, Options{}).LastResult()
	assert.False(t, ok)
}

func TestCheckpointWithoutStore(t *testing.T) {
	ec := New("t", nil, nil, Options{})

	id, err := ec.CreateCheckpoint(context.Background(), "before")
	require.NoError(t, err)
	assert.Empty(t, id)

	ok, err := ec.RestoreCheckpoint(context.Background(), "anything")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckpointRoundTrip(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("v1"), 0o644))
	store := checkpoint.NewFileStore(dir, filepath.Join(dir, ".taskflow", "checkpoints"))
	ec := New("t", tools.NewBuiltinRegistry(tools.BuiltinOptions{}), store, Options{Workdir: dir})

	id, err := ec.CreateCheckpoint(context.Background(), "before")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	res := ec.ExecuteTool(context.Background(), tools.FileWrite, map[string]any{"path": "a.txt", "content": "v2"})
	require.True(t, res.Success, res.Error)

	ok, err := ec.RestoreCheckpoint(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
}

func TestPlanAccessors(t *testing.T) {
	ec := New("t", nil, nil, Options{Workdir: "/w"})
	assert.Nil(t, ec.Plan())
	assert.Equal(t, "/w", ec.Workdir())
	assert.Equal(t, "t", ec.TaskID())

	p := plan.Fallback("x")
	ec.SetPlan(p)
	assert.Same(t, p, ec.Plan())
}
