package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/felixgeelhaar/taskflow/internal/errors"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "TASKFLOW_"

	// DefaultFile is the config file looked up in the working directory.
	DefaultFile = ".taskflow/config.yaml"

	maxConfigFileSize = 1024 * 1024
)

// topLevel lists keys whose name contains an underscore but no section.
var topLevel = map[string]bool{"workdir": true, "state_dir": true}

// Load builds the configuration with precedence (highest first):
//  1. TASKFLOW_* environment variables (TASKFLOW_PIPELINE_APPROVAL_MODE -> pipeline.approval_mode)
//  2. the YAML file at path, when it exists
//  3. Default()
//
// An empty path means DefaultFile; a missing default file is not an error,
// a missing explicit file is.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults, err := Default().YAML()
	if err != nil {
		return nil, err
	}
	if err := k.Load(rawbytes.Provider([]byte(defaults)), yaml.Parser()); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigLoad, "failed to load defaults", err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	content, err := readConfigFile(path)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, errors.NewFileUnmarshalError(path, "YAML", err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, errors.Wrap(errors.ErrCodeConfigLoad, fmt.Sprintf("failed to read config file %s", path), err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigLoad, "failed to load environment variables", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigLoad, "failed to unmarshal config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps TASKFLOW_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if topLevel[lower] {
		return lower
	}
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return io.ReadAll(f)
}
