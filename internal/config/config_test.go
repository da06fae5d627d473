package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/taskflow/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
workdir: /srv/project
log:
  level: debug
  format: json
pipeline:
  approval_mode: auto
  max_steps: 5
provider:
  command: llm-bridge
  args: ["--model", "small"]
  timeout: 45s
apply:
  checkpoint: false
hooks:
  - name: notify
    events: [on_pipeline_complete]
    command: echo done
    timeout: 5s
`)

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "/srv/project", cfg.Workdir)
	assert.Equal(t, ".taskflow", cfg.StateDir)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "auto", cfg.Pipeline.ApprovalMode)
	assert.Equal(t, 5, cfg.Pipeline.MaxSteps)
	assert.Equal(t, 50, cfg.Pipeline.HistorySize)
	assert.Equal(t, "llm-bridge", cfg.Provider.Command)
	assert.Equal(t, []string{"--model", "small"}, cfg.Provider.Args)
	assert.Equal(t, 45*time.Second, cfg.Provider.Timeout)
	assert.False(t, cfg.Apply.Checkpoint)
	require.Len(t, cfg.Hooks, 1)
	assert.Equal(t, "notify", cfg.Hooks[0].Name)
	assert.Equal(t, 5*time.Second, cfg.Hooks[0].Timeout)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "pipeline:\n  approval_mode: auto\n")
	t.Setenv("TASKFLOW_PIPELINE_APPROVAL_MODE", "never")
	t.Setenv("TASKFLOW_STATE_DIR", "/var/lib/taskflow")
	t.Setenv("TASKFLOW_GRAPH_CACHE_SIZE", "16")
	t.Setenv("TASKFLOW_APPLY_DRY_RUN", "true")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "never", cfg.Pipeline.ApprovalMode)
	assert.Equal(t, "/var/lib/taskflow", cfg.StateDir)
	assert.Equal(t, 16, cfg.Graph.CacheSize)
	assert.True(t, cfg.Apply.DryRun)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigLoad, errors.CodeOf(err))
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "log: [unterminated\n"))

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeFileUnmarshal, errors.CodeOf(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"approval mode", func(c *Config) { c.Pipeline.ApprovalMode = "sometimes" }, "pipeline.approval_mode"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"history", func(c *Config) { c.Pipeline.HistorySize = 0 }, "history_size"},
		{"max steps", func(c *Config) { c.Pipeline.MaxSteps = -1 }, "max_steps"},
		{"cache", func(c *Config) { c.Graph.CacheSize = 0 }, "cache_size"},
		{"state dir", func(c *Config) { c.StateDir = "" }, "state_dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeConfigInvalid, errors.CodeOf(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestYAMLRoundTrip(t *testing.T) {
	out, err := Default().YAML()
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "approval_mode: prompt"))
	assert.True(t, strings.Contains(out, "timeout: 2m0s"))

	cfg, err := Load(writeConfig(t, out))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestStatePath(t *testing.T) {
	cfg := Default()
	cfg.Workdir = "/work"
	assert.Equal(t, "/work/.taskflow/checkpoints", cfg.StatePath("checkpoints"))

	cfg.StateDir = "/state"
	assert.Equal(t, "/state/journal", cfg.StatePath("journal"))
}
