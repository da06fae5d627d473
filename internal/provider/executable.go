package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/felixgeelhaar/taskflow/internal/errors"
)

// ExecutableProvider wraps any executable that reads a chat request as JSON on
// stdin and writes the reply to stdout. The reply may be a JSON Response or
// plain text, which is used verbatim as the content.
type ExecutableProvider struct {
	path    string
	args    []string
	name    string
	timeout time.Duration
}

// chatRequest is the payload written to the executable's stdin.
type chatRequest struct {
	Messages []Message `json:"messages"`
}

// NewExecutableProvider resolves path on $PATH and returns a provider for it.
func NewExecutableProvider(path string, args []string, timeout time.Duration) (*ExecutableProvider, error) {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeProviderUnavailable, fmt.Sprintf("executable not found: %s", path), err).
			WithSuggestion("Check provider.command in the configuration")
	}

	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &ExecutableProvider{
		path:    resolved,
		args:    args,
		name:    "exec:" + path,
		timeout: timeout,
	}, nil
}

// Chat sends messages to the executable and parses its reply.
func (e *ExecutableProvider) Chat(ctx context.Context, messages []Message) (*Response, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	payload, err := json.Marshal(chatRequest{Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.path, e.args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, errors.Wrap(errors.ErrCodeProviderTimeout, "provider timed out", ctx.Err())
		}
		return nil, errors.Wrap(errors.ErrCodeProviderFailed,
			fmt.Sprintf("provider failed: %s", strings.TrimSpace(stderr.String())), err)
	}

	resp := parseReply(output)
	resp.Latency = time.Since(start)
	if resp.Provider == "" {
		resp.Provider = e.name
	}
	return resp, nil
}

func parseReply(output []byte) *Response {
	trimmed := bytes.TrimSpace(output)
	var resp Response
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &resp); err == nil && (resp.Content != "" || resp.Provider != "") {
			return &resp
		}
	}
	return &Response{Content: string(trimmed)}
}
