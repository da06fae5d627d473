package tools

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/felixgeelhaar/taskflow/internal/errors"
)

// Builtin tool names.
const (
	FileRead   = "file_read"
	FileWrite  = "file_write"
	FileSearch = "file_search"
	ShellExec  = "shell_exec"
)

const (
	defaultShellTimeout = 2 * time.Minute
	maxSearchResults    = 200
	maxOutputBytes      = 64 * 1024
)

// BuiltinOptions tunes the builtin tool set.
type BuiltinOptions struct {
	ShellTimeout time.Duration
	// Shell is the interpreter used by shell_exec. Defaults to "sh".
	Shell string
}

// NewBuiltinRegistry returns a registry holding file_read, file_write,
// file_search and shell_exec.
func NewBuiltinRegistry(opts BuiltinOptions) *MemoryRegistry {
	if opts.ShellTimeout <= 0 {
		opts.ShellTimeout = defaultShellTimeout
	}
	if opts.Shell == "" {
		opts.Shell = "sh"
	}

	return NewRegistry().MustRegister(
		Definition{
			Name:        FileRead,
			Description: "Read a file from the working directory. Args: path",
			Handler:     handleFileRead,
		},
		Definition{
			Name:        FileWrite,
			Description: "Create or overwrite a file in the working directory. Args: path, content",
			Handler:     handleFileWrite,
		},
		Definition{
			Name:        FileSearch,
			Description: "Find files whose path matches a glob or substring, skipping ignored paths. Args: pattern",
			Handler:     handleFileSearch,
		},
		Definition{
			Name:        ShellExec,
			Description: "Run a shell command in the working directory. Args: command",
			Handler:     shellHandler(opts),
		},
	)
}

func handleFileRead(_ context.Context, args map[string]any, tc ToolContext) (Result, error) {
	rel, _ := StringArg(args, "path", "file", "file_path")
	full, err := resolvePath(tc.Workdir, rel)
	if err != nil {
		return Result{}, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, errors.New(errors.ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", rel))
		}
		return Result{}, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read %s", rel), err)
	}

	return Result{Success: true, Output: truncate(string(data))}, nil
}

func handleFileWrite(_ context.Context, args map[string]any, tc ToolContext) (Result, error) {
	rel, _ := StringArg(args, "path", "file", "file_path")
	content, _ := StringArg(args, "content")

	full, err := resolvePath(tc.Workdir, rel)
	if err != nil {
		return Result{}, err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to create parent directory", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return Result{}, errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("failed to write %s", rel), err)
	}

	return Result{
		Success:      true,
		Output:       fmt.Sprintf("wrote %d bytes to %s", len(content), rel),
		FilesChanged: []string{rel},
	}, nil
}

func handleFileSearch(ctx context.Context, args map[string]any, tc ToolContext) (Result, error) {
	pattern, _ := StringArg(args, "pattern", "query", "path")
	if strings.TrimSpace(pattern) == "" {
		return Result{}, errors.New(errors.ErrCodeToolInvalidArgs, "pattern argument is required")
	}

	root := tc.Workdir
	if root == "" {
		root = "."
	}
	matcher := LoadIgnore(root)

	var matches []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if Ignored(matcher, rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if matchPattern(pattern, rel) {
			matches = append(matches, rel)
			if len(matches) >= maxSearchResults {
				return fs.SkipAll
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	if len(matches) == 0 {
		return Result{Success: true, Output: fmt.Sprintf("no files match %q", pattern)}, nil
	}
	return Result{Success: true, Output: strings.Join(matches, "\n")}, nil
}

func matchPattern(pattern, rel string) bool {
	if ok, _ := filepath.Match(pattern, filepath.Base(rel)); ok {
		return true
	}
	if ok, _ := filepath.Match(pattern, rel); ok {
		return true
	}
	return strings.Contains(rel, pattern)
}

func shellHandler(opts BuiltinOptions) Handler {
	return func(ctx context.Context, args map[string]any, tc ToolContext) (Result, error) {
		command, _ := StringArg(args, "command", "cmd")
		if strings.TrimSpace(command) == "" {
			return Result{}, errors.New(errors.ErrCodeToolInvalidArgs, "command argument is required")
		}

		ctx, cancel := context.WithTimeout(ctx, opts.ShellTimeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, opts.Shell, "-c", command)
		if tc.Workdir != "" {
			cmd.Dir = tc.Workdir
		}
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out

		err := cmd.Run()
		output := truncate(out.String())
		if ctx.Err() == context.DeadlineExceeded {
			return Result{Output: output, Error: fmt.Sprintf("command timed out after %s", opts.ShellTimeout)}, nil
		}
		if err != nil {
			return Result{Output: output, Error: fmt.Sprintf("command failed: %v", err)}, nil
		}
		return Result{Success: true, Output: output}, nil
	}
}

func truncate(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return s[:maxOutputBytes] + "\n... (output truncated)"
}

// LoadIgnore compiles .gitignore at root together with the always-skipped
// directories. It never fails; an unreadable file yields only the defaults.
func LoadIgnore(root string) *ignore.GitIgnore {
	lines := []string{".git/", ".taskflow/", "node_modules/"}
	if data, err := os.ReadFile(filepath.Join(root, ".gitignore")); err == nil {
		lines = append(lines, strings.Split(string(data), "\n")...)
	}
	return ignore.CompileIgnoreLines(lines...)
}

// Ignored reports whether the slash-separated relative path is excluded.
func Ignored(m *ignore.GitIgnore, rel string, isDir bool) bool {
	if m == nil {
		return false
	}
	if isDir && m.MatchesPath(rel+"/") {
		return true
	}
	return m.MatchesPath(rel)
}
