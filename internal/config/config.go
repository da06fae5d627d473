// Package config loads taskflow configuration from defaults, an optional
// YAML file and TASKFLOW_* environment variables.
package config

import (
	"fmt"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/taskflow/internal/errors"
	"github.com/felixgeelhaar/taskflow/internal/hooks"
)

// Config is the effective configuration.
type Config struct {
	Workdir  string         `koanf:"workdir" yaml:"workdir"`
	StateDir string         `koanf:"state_dir" yaml:"state_dir"`
	Log      LogConfig      `koanf:"log" yaml:"log"`
	Pipeline PipelineConfig `koanf:"pipeline" yaml:"pipeline"`
	Provider ProviderConfig `koanf:"provider" yaml:"provider"`
	Apply    ApplyConfig    `koanf:"apply" yaml:"apply"`
	Graph    GraphConfig    `koanf:"graph" yaml:"graph"`
	Tools    ToolsConfig    `koanf:"tools" yaml:"tools"`
	Hooks    []hooks.Config `koanf:"hooks" yaml:"hooks,omitempty"`
	Metrics  MetricsConfig  `koanf:"metrics" yaml:"metrics"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
	// File enables a rotating log file in addition to stderr.
	File string `koanf:"file" yaml:"file,omitempty"`
}

// PipelineConfig configures the orchestrator.
type PipelineConfig struct {
	ApprovalMode string `koanf:"approval_mode" yaml:"approval_mode"`
	HistorySize  int    `koanf:"history_size" yaml:"history_size"`
	MaxSteps     int    `koanf:"max_steps" yaml:"max_steps"`
	SkipReview   bool   `koanf:"skip_review" yaml:"skip_review"`
}

// ProviderConfig configures the executable completion provider. An empty
// command means no provider is available.
type ProviderConfig struct {
	Command string        `koanf:"command" yaml:"command,omitempty"`
	Args    []string      `koanf:"args" yaml:"args,omitempty"`
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`
}

// ApplyConfig configures the apply engine.
type ApplyConfig struct {
	Checkpoint bool `koanf:"checkpoint" yaml:"checkpoint"`
	DryRun     bool `koanf:"dry_run" yaml:"dry_run"`
}

// GraphConfig configures the dependency graph cache.
type GraphConfig struct {
	CacheSize int `koanf:"cache_size" yaml:"cache_size"`
}

// ToolsConfig configures the builtin tools.
type ToolsConfig struct {
	ShellTimeout time.Duration `koanf:"shell_timeout" yaml:"shell_timeout"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	File string `koanf:"file" yaml:"file,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Workdir:  ".",
		StateDir: ".taskflow",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Pipeline: PipelineConfig{
			ApprovalMode: "prompt",
			HistorySize:  50,
		},
		Provider: ProviderConfig{
			Timeout: 2 * time.Minute,
		},
		Apply: ApplyConfig{
			Checkpoint: true,
		},
		Graph: GraphConfig{
			CacheSize: 128,
		},
		Tools: ToolsConfig{
			ShellTimeout: 30 * time.Second,
		},
	}
}

var (
	validLevels        = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats       = map[string]bool{"text": true, "json": true}
	validApprovalModes = map[string]bool{"auto": true, "prompt": true, "never": true}
)

// Validate checks enums and bounds.
func (c *Config) Validate() error {
	if c.Workdir == "" {
		return errors.NewConfigInvalidError("workdir is required")
	}
	if c.StateDir == "" {
		return errors.NewConfigInvalidError("state_dir is required")
	}
	if !validLevels[c.Log.Level] {
		return errors.NewConfigInvalidError(fmt.Sprintf("log.level %q must be one of debug, info, warn, error", c.Log.Level))
	}
	if !validFormats[c.Log.Format] {
		return errors.NewConfigInvalidError(fmt.Sprintf("log.format %q must be text or json", c.Log.Format))
	}
	if !validApprovalModes[c.Pipeline.ApprovalMode] {
		return errors.NewConfigInvalidError(fmt.Sprintf("pipeline.approval_mode %q must be one of auto, prompt, never", c.Pipeline.ApprovalMode))
	}
	if c.Pipeline.HistorySize <= 0 {
		return errors.NewConfigInvalidError("pipeline.history_size must be positive")
	}
	if c.Pipeline.MaxSteps < 0 {
		return errors.NewConfigInvalidError("pipeline.max_steps must not be negative")
	}
	if c.Provider.Timeout <= 0 {
		return errors.NewConfigInvalidError("provider.timeout must be positive")
	}
	if c.Graph.CacheSize <= 0 {
		return errors.NewConfigInvalidError("graph.cache_size must be positive")
	}
	if c.Tools.ShellTimeout <= 0 {
		return errors.NewConfigInvalidError("tools.shell_timeout must be positive")
	}
	for _, h := range c.Hooks {
		if err := h.Validate(); err != nil {
			return errors.NewConfigInvalidError(err.Error())
		}
	}
	return nil
}

// StatePath returns a path inside the state directory, resolved against the
// working directory when the state directory is relative.
func (c *Config) StatePath(elem ...string) string {
	base := c.StateDir
	if !filepath.IsAbs(base) {
		base = filepath.Join(c.Workdir, base)
	}
	return filepath.Join(append([]string{base}, elem...)...)
}

// YAML renders the configuration.
func (c *Config) YAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	return string(data), nil
}
