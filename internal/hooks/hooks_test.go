package hooks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingHook struct {
	name   string
	events []EventType
	calls  atomic.Int32
	err    error
}

func (h *countingHook) Name() string            { return h.name }
func (h *countingHook) EventTypes() []EventType { return h.events }
func (h *countingHook) Execute(context.Context, *Event) error {
	h.calls.Add(1)
	return h.err
}

func TestTriggerDispatchesByEventType(t *testing.T) {
	r := NewRegistry(nil)
	start := &countingHook{name: "start", events: []EventType{EventPipelineStart}}
	both := &countingHook{name: "both", events: []EventType{EventPipelineStart, EventPipelineFailed}, err: fmt.Errorf("nope")}
	require.NoError(t, r.Register(start))
	require.NoError(t, r.Register(both))

	results := r.Trigger(context.Background(), NewEvent(EventPipelineStart, "task-1", nil))
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
	assert.Equal(t, "nope", results[1].Error)

	assert.Nil(t, r.Trigger(context.Background(), NewEvent(EventPlanApproved, "task-1", nil)))
	assert.Equal(t, int32(1), start.calls.Load())
	assert.Equal(t, 2, r.Count())
}

func TestNilRegistryTrigger(t *testing.T) {
	var r *Registry
	assert.Nil(t, r.Trigger(context.Background(), NewEvent(EventPipelineStart, "", nil)))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid", Config{Name: "n", Command: "true", Events: []string{"on_pipeline_start"}}, false},
		{"missing name", Config{Command: "true", Events: []string{"on_pipeline_start"}}, true},
		{"missing command", Config{Name: "n", Events: []string{"on_pipeline_start"}}, true},
		{"no events", Config{Name: "n", Command: "true"}, true},
		{"unknown event", Config{Name: "n", Command: "true", Events: []string{"on_lunch"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestScriptHookReceivesEvent(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	out := filepath.Join(t.TempDir(), "event.txt")
	r := NewRegistry(nil)
	require.NoError(t, r.RegisterConfigs([]Config{{
		Name:    "record",
		Events:  []string{string(EventPlanRejected)},
		Command: `echo "$TASKFLOW_EVENT $TASKFLOW_TASK_ID $TASKFLOW_RISK" > ` + out,
	}}))

	results := r.Trigger(context.Background(), NewEvent(EventPlanRejected, "t-9", map[string]string{"risk": "high"}))
	require.Len(t, results, 1)
	require.True(t, results[0].Success, results[0].Error)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "on_plan_rejected t-9 high\n", string(data))
}
