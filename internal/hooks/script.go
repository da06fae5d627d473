package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ScriptHook runs a shell command. The event is passed as JSON on stdin and
// summarised in TASKFLOW_EVENT / TASKFLOW_TASK_ID / TASKFLOW_<KEY> variables.
type ScriptHook struct {
	config Config
}

// NewScriptHook creates a hook from configuration.
func NewScriptHook(c Config) *ScriptHook {
	return &ScriptHook{config: c}
}

func (h *ScriptHook) Name() string { return h.config.Name }

func (h *ScriptHook) EventTypes() []EventType {
	out := make([]EventType, 0, len(h.config.Events))
	for _, e := range h.config.Events {
		out = append(out, EventType(e))
	}
	return out
}

func (h *ScriptHook) Execute(ctx context.Context, event *Event) error {
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", h.config.Command)
	cmd.Env = append(os.Environ(),
		"TASKFLOW_EVENT="+string(event.Type),
		"TASKFLOW_TASK_ID="+event.TaskID,
	)
	for k, v := range event.Data {
		cmd.Env = append(cmd.Env, fmt.Sprintf("TASKFLOW_%s=%s", strings.ToUpper(k), v))
	}
	cmd.Stdin = bytes.NewReader(payload)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("script failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
