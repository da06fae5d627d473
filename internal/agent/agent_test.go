package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/taskflow/internal/checkpoint"
	"github.com/felixgeelhaar/taskflow/internal/execution"
	"github.com/felixgeelhaar/taskflow/internal/plan"
	"github.com/felixgeelhaar/taskflow/internal/provider"
	"github.com/felixgeelhaar/taskflow/internal/tools"
)

// recordingRegistry registers fake builtin-named tools that remember their calls.
type recordingRegistry struct {
	*tools.MemoryRegistry
	calls []string
	args  []map[string]any
}

func newRecordingRegistry(failing ...string) *recordingRegistry {
	r := &recordingRegistry{MemoryRegistry: tools.NewRegistry()}
	fail := map[string]bool{}
	for _, f := range failing {
		fail[f] = true
	}
	for _, name := range []string{tools.FileRead, tools.FileWrite, tools.FileSearch, tools.ShellExec} {
		name := name
		r.MustRegister(tools.Definition{
			Name:        name,
			Description: "fake " + name,
			Handler: func(_ context.Context, args map[string]any, _ tools.ToolContext) (tools.Result, error) {
				r.calls = append(r.calls, name)
				r.args = append(r.args, args)
				if fail[name] {
					return tools.Result{}, fmt.Errorf("%s exploded", name)
				}
				return tools.Result{Success: true, Output: name + " output"}, nil
			},
		})
	}
	return r
}

func noCheckpoint() *bool {
	f := false
	return &f
}

func TestDeriveToolCall(t *testing.T) {
	tests := []struct {
		text     string
		wantTool string
		wantArgs map[string]any
	}{
		{"read config.json", tools.FileRead, map[string]any{"path": "config.json"}},
		{"cat ./src/main.go please", tools.FileRead, map[string]any{"path": "./src/main.go"}},
		{"Create notes", tools.FileWrite, map[string]any{"path": "notes", "content": ""}},
		{"write docs/README.md", tools.FileWrite, map[string]any{"path": "docs/README.md", "content": ""}},
		{"run go test ./...", tools.ShellExec, map[string]any{"command": "go test ./..."}},
		{"find main.go", tools.FileSearch, map[string]any{"pattern": "main.go"}},
		{"search for TODO", tools.FileSearch, map[string]any{"pattern": "TODO"}},
		{"ls -la", tools.ShellExec, map[string]any{"command": "ls -la"}},
		{"read the file and run it", tools.FileRead, map[string]any{"path": "it"}},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			tool, args := DeriveToolCall(tt.text)
			assert.Equal(t, tt.wantTool, tool)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestExecutorDerivesFileReadWithoutPlan(t *testing.T) {
	reg := newRecordingRegistry()
	ec := execution.New("t", reg, nil, execution.Options{})

	out := Run(context.Background(), NewExecutor(Deps{}), Task{Goal: "read config.json", Checkpoint: noCheckpoint()}, ec)

	require.True(t, out.Success, out.Error)
	require.Equal(t, []string{tools.FileRead}, reg.calls)
	assert.Equal(t, "config.json", reg.args[0]["path"])
	assert.Len(t, out.Steps, 1)
	assert.Equal(t, PhaseExecute, out.Steps[0].Phase)
}

func TestExecutorRunsPlanStopsAtFirstFailure(t *testing.T) {
	reg := newRecordingRegistry(tools.FileWrite)
	ec := execution.New("t", reg, nil, execution.Options{})
	ec.SetPlan(&plan.ExecutionPlan{
		Steps: []plan.Step{
			{Tool: tools.FileRead, Args: map[string]any{"path": "a"}},
			{Tool: tools.FileWrite, Args: map[string]any{"path": "b"}},
			{Tool: tools.ShellExec, Args: map[string]any{"command": "ls"}},
		},
		Risk: plan.RiskMedium,
	})

	out := Run(context.Background(), NewExecutor(Deps{}), Task{Goal: "x", Checkpoint: noCheckpoint()}, ec)

	assert.False(t, out.Success)
	assert.Equal(t, "file_write exploded", out.Error)
	assert.Equal(t, []string{tools.FileRead, tools.FileWrite}, reg.calls)
	assert.Len(t, out.Steps, 2)
}

func TestExecutorUsesPlanArtifactFromTaskContext(t *testing.T) {
	reg := newRecordingRegistry()
	ec := execution.New("t", reg, nil, execution.Options{})
	artifact := `{"steps":[{"tool":"file_search","args":{"pattern":"*.go"}}],"risk":"low"}`

	out := Run(context.Background(), NewExecutor(Deps{}),
		Task{Goal: "read nothing.txt", Context: map[string]string{"plan": artifact}, Checkpoint: noCheckpoint()}, ec)

	require.True(t, out.Success)
	assert.Equal(t, []string{tools.FileSearch}, reg.calls)
}

type failingStore struct{}

func (failingStore) CreateCheckpoint(context.Context, string, string, ...string) (*checkpoint.Checkpoint, error) {
	return nil, fmt.Errorf("disk full")
}

func (failingStore) Restore(context.Context, string) (bool, error) { return false, nil }

func TestExecutorCheckpointFailureIsNotFatal(t *testing.T) {
	reg := newRecordingRegistry()
	ec := execution.New("t", reg, failingStore{}, execution.Options{})

	out := Run(context.Background(), NewExecutor(Deps{}), Task{Goal: "read a.txt"}, ec)

	require.True(t, out.Success)
	require.Len(t, out.Steps, 2)
	assert.Equal(t, "checkpoint", out.Steps[0].Action)
	assert.Contains(t, out.Steps[0].Result, "disk full")
	assert.Equal(t, []string{tools.FileRead}, reg.calls)
}

func TestPlannerParsesProviderPlan(t *testing.T) {
	reply := "Here you go:\n```json\n" +
		`{"steps":[{"description":"look","tool":"file_read","args":{"path":"a.go"}}],"risk":"low"}` +
		"\n```"
	p := provider.NewStatic("fake", reply)
	ec := execution.New("t", newRecordingRegistry(), nil, execution.Options{})

	out := Run(context.Background(), NewPlanner(Deps{Provider: p}), Task{Goal: "inspect a.go"}, ec)

	require.True(t, out.Success)
	require.Len(t, out.Artifacts, 1)
	got, ok := plan.FromArtifact(out.Artifacts[0])
	require.True(t, ok)
	assert.Equal(t, plan.RiskLow, got.Risk)
	assert.Equal(t, "file_read", got.Steps[0].Tool)
	assert.Equal(t, "a.go", ec.Plan().Steps[0].Args["path"])

	reqs := p.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0][1].Content, "file_read: fake file_read")
}

func TestPlannerFallbackOnMalformedReply(t *testing.T) {
	p := provider.NewStatic("fake", "I cannot produce JSON today")
	ec := execution.New("t", nil, nil, execution.Options{})

	out := Run(context.Background(), NewPlanner(Deps{Provider: p}), Task{Goal: "do the thing"}, ec)

	require.True(t, out.Success)
	got := ec.Plan()
	require.NotNil(t, got)
	assert.Equal(t, plan.RiskMedium, got.Risk)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, tools.ShellExec, got.Steps[0].Tool)
	assert.Equal(t, "echo 'do the thing'", got.Steps[0].Args["command"])
}

func TestPlannerFailsWithoutProvider(t *testing.T) {
	ec := execution.New("t", nil, nil, execution.Options{})

	for name, p := range map[string]provider.Provider{
		"none":  provider.None{},
		"error": provider.NewStatic("x").WithError(fmt.Errorf("offline")),
		"nil":   nil,
	} {
		t.Run(name, func(t *testing.T) {
			out := Run(context.Background(), NewPlanner(Deps{Provider: p}), Task{Goal: "g"}, ec)
			assert.False(t, out.Success)
			assert.Equal(t, "No completion provider available", out.Error)
			assert.Len(t, out.Steps, 1)
		})
	}
}

func TestPlannerHonorsMaxSteps(t *testing.T) {
	reply := `{"steps":[{"tool":"file_read"},{"tool":"file_write"},{"tool":"shell_exec"}],"risk":"high"}`
	ec := execution.New("t", nil, nil, execution.Options{})

	out := Run(context.Background(), NewPlanner(Deps{Provider: provider.NewStatic("fake", reply)}), Task{Goal: "g", MaxSteps: 2}, ec)

	require.True(t, out.Success)
	assert.Len(t, ec.Plan().Steps, 2)
}

func TestReviewer(t *testing.T) {
	t.Run("verified with provider explanation", func(t *testing.T) {
		ec := execution.New("t", newRecordingRegistry(), nil, execution.Options{})
		ec.ExecuteTool(context.Background(), tools.FileRead, nil)

		out := Run(context.Background(), NewReviewer(Deps{Provider: provider.NewStatic("fake", "All good.")}), Task{Goal: "g"}, ec)

		assert.True(t, out.Success)
		assert.Equal(t, "All good.", out.Output)
		require.Len(t, out.Steps, 2)
		assert.Equal(t, PhaseVerify, out.Steps[0].Phase)
		assert.Equal(t, PhaseExplain, out.Steps[1].Phase)
	})

	t.Run("fallback explanation", func(t *testing.T) {
		ec := execution.New("t", newRecordingRegistry(), nil, execution.Options{})
		ec.ExecuteTool(context.Background(), tools.FileRead, nil)

		out := Run(context.Background(), NewReviewer(Deps{Provider: provider.NewStatic("x").WithError(fmt.Errorf("down"))}), Task{}, ec)

		assert.True(t, out.Success)
		assert.Equal(t, FallbackExplanation, out.Output)
	})

	t.Run("nothing to verify", func(t *testing.T) {
		ec := execution.New("t", nil, nil, execution.Options{})
		out := Run(context.Background(), NewReviewer(Deps{}), Task{}, ec)
		assert.False(t, out.Success)
		assert.Contains(t, out.Error, "Verification failed")
	})

	t.Run("failed last result", func(t *testing.T) {
		ec := execution.New("t", newRecordingRegistry(tools.ShellExec), nil, execution.Options{})
		ec.ExecuteTool(context.Background(), tools.ShellExec, nil)
		out := Run(context.Background(), NewReviewer(Deps{}), Task{}, ec)
		assert.False(t, out.Success)
	})
}

type panicAgent struct{}

func (panicAgent) Name() Phase { return "panicky" }
func (panicAgent) Run(context.Context, Task, *execution.Context, *[]Step) (Outcome, error) {
	panic("boom")
}

type errAgent struct{}

func (errAgent) Name() Phase { return "erroring" }
func (errAgent) Run(context.Context, Task, *execution.Context, *[]Step) (Outcome, error) {
	return Outcome{}, fmt.Errorf("broken")
}

func TestRunNormalizesFailures(t *testing.T) {
	ec := execution.New("t", nil, nil, execution.Options{})

	out := Run(context.Background(), panicAgent{}, Task{}, ec)
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "boom")
	require.Len(t, out.Steps, 1)
	assert.Equal(t, Phase("panicky"), out.Steps[0].Phase)

	out = Run(context.Background(), errAgent{}, Task{}, ec)
	assert.False(t, out.Success)
	assert.Equal(t, "broken", out.Error)
	require.Len(t, out.Steps, 1)
	assert.NotEmpty(t, out.Steps[0].ID)
}

func TestSpecializedAgentsOverlay(t *testing.T) {
	ec := execution.New("t", nil, nil, execution.Options{})
	reply := `Analysis: {"rootCause":"nil map write","fixes":["initialise the map"],"confidence":0.8,"extra":"ignored"}`

	out := Run(context.Background(), NewDebugger(Deps{Provider: provider.NewStatic("fake", reply)}), Task{Goal: "panic in handler"}, ec)
	require.True(t, out.Success)
	require.Len(t, out.Artifacts, 1)

	var report DebugReport
	require.NoError(t, json.Unmarshal([]byte(out.Artifacts[0]), &report))
	assert.Equal(t, "nil map write", report.RootCause)
	assert.Equal(t, []string{"initialise the map"}, report.Fixes)
	assert.InDelta(t, 0.8, report.Confidence, 1e-9)
}

func TestSpecializedAgentsPartialOverlayKeepsDefaults(t *testing.T) {
	ec := execution.New("t", nil, nil, execution.Options{})
	reply := `{"summary":"extract helper"}`

	out := Run(context.Background(), NewRefactorer(Deps{Provider: provider.NewStatic("fake", reply)}), Task{Goal: "tidy"}, ec)
	require.True(t, out.Success)

	var p RefactorProposal
	require.NoError(t, json.Unmarshal([]byte(out.Artifacts[0]), &p))
	assert.Equal(t, "extract helper", p.Summary)
	assert.Equal(t, plan.RiskMedium, p.Risk)
	assert.NotNil(t, p.Changes)
}

func TestSpecializedAgentsNeverFail(t *testing.T) {
	ec := execution.New("t", nil, nil, execution.Options{})
	agents := []Agent{
		NewDebugger(Deps{Provider: provider.None{}}),
		NewRefactorer(Deps{Provider: provider.NewStatic("fake", "{not json")}),
		NewLearner(Deps{Provider: provider.NewStatic("x").WithError(fmt.Errorf("down"))}),
		NewContextGatherer(Deps{}),
	}

	for _, a := range agents {
		t.Run(string(a.Name()), func(t *testing.T) {
			out := Run(context.Background(), a, Task{Goal: "g", Context: map[string]string{"files": "a.go, b.go"}}, ec)
			assert.True(t, out.Success)
			require.Len(t, out.Artifacts, 1)
			assert.True(t, json.Valid([]byte(out.Artifacts[0])))
			assert.Contains(t, out.Output, "default report")
		})
	}
}

func TestContextGathererSeedsFiles(t *testing.T) {
	ec := execution.New("t", nil, nil, execution.Options{})
	out := Run(context.Background(), NewContextGatherer(Deps{}), Task{Goal: "g", Context: map[string]string{"files": "a.go, b.go"}}, ec)

	var r ContextReport
	require.NoError(t, json.Unmarshal([]byte(out.Artifacts[0]), &r))
	assert.Equal(t, []string{"a.go", "b.go"}, r.RelevantFiles)
}

func TestTaskDefaults(t *testing.T) {
	assert.Equal(t, ApprovalPrompt, Task{}.Mode())
	assert.True(t, Task{}.CheckpointEnabled())
	assert.False(t, Task{Checkpoint: noCheckpoint()}.CheckpointEnabled())
	assert.Equal(t, ApprovalPrompt, ParseApprovalMode("bogus"))
	assert.Equal(t, ApprovalNever, ParseApprovalMode("never"))
}

func TestPlannerUsesSuppliedPlan(t *testing.T) {
	ec := execution.New("t", newRecordingRegistry(), nil, execution.Options{})
	supplied := `{"steps":[{"tool":"file_read","args":{"path":"a.txt"}},{"tool":"shell_exec","args":{"command":"make"}}],"risk":"high"}`

	out := Run(context.Background(), NewPlanner(Deps{Provider: provider.None{}}),
		Task{Goal: "build", Context: map[string]string{"plan": supplied}, MaxSteps: 1}, ec)

	require.True(t, out.Success)
	require.NotNil(t, ec.Plan())
	assert.Len(t, ec.Plan().Steps, 1)
	assert.Equal(t, plan.RiskHigh, ec.Plan().Risk)
	require.Len(t, out.Steps, 1)
	assert.Equal(t, "use supplied plan", out.Steps[0].Action)
	require.Len(t, out.Artifacts, 1)
}

func TestPlannerIgnoresInvalidSuppliedPlan(t *testing.T) {
	ec := execution.New("t", newRecordingRegistry(), nil, execution.Options{})

	out := Run(context.Background(), NewPlanner(Deps{Provider: provider.None{}}),
		Task{Goal: "build", Context: map[string]string{"plan": `{"steps":[]}`}}, ec)

	assert.False(t, out.Success)
	assert.Equal(t, "No completion provider available", out.Error)
}
