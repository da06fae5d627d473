package tools

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/taskflow/internal/errors"
)

// StringArg returns args[key] as a string, accepting the given aliases.
func StringArg(args map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := args[k]; ok {
			switch s := v.(type) {
			case string:
				return s, true
			case fmt.Stringer:
				return s.String(), true
			}
		}
	}
	return "", false
}

// resolvePath joins rel onto workdir and refuses paths that escape it.
func resolvePath(workdir, rel string) (string, error) {
	if rel == "" {
		return "", errors.New(errors.ErrCodeToolInvalidArgs, "path argument is required")
	}
	if workdir == "" {
		workdir = "."
	}
	root, err := filepath.Abs(workdir)
	if err != nil {
		return "", err
	}

	full := rel
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, rel)
	}
	full = filepath.Clean(full)

	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", errors.New(errors.ErrCodeToolOutsideRoot, fmt.Sprintf("path %s is outside the working directory", rel))
	}
	return full, nil
}
