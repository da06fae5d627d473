package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/taskflow/internal/execution"
	"github.com/felixgeelhaar/taskflow/internal/provider"
	"github.com/felixgeelhaar/taskflow/internal/tools"
)

// describeTask renders the goal and its context for a prompt.
func describeTask(task Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n", task.Goal)
	if len(task.Context) > 0 {
		keys := make([]string, 0, len(task.Context))
		for k := range task.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("Context:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, task.Context[k])
		}
	}
	return b.String()
}

// toolCatalog renders "name: description" lines for the registry.
func toolCatalog(reg tools.Registry) string {
	if reg == nil {
		return "(no tools available)"
	}
	defs := reg.List()
	if len(defs) == 0 {
		return "(no tools available)"
	}
	lines := make([]string, 0, len(defs))
	for _, d := range defs {
		lines = append(lines, fmt.Sprintf("%s: %s", d.Name, d.Description))
	}
	return strings.Join(lines, "\n")
}

// recentResults renders the tail of the context's results log.
func recentResults(ec *execution.Context, n int) string {
	results := ec.Results()
	if len(results) == 0 {
		return "(no tool results)"
	}
	if len(results) > n {
		results = results[len(results)-n:]
	}
	var b strings.Builder
	for _, r := range results {
		status := "ok"
		if !r.Success {
			status = "failed: " + r.Error
		}
		fmt.Fprintf(&b, "- %s (%s)\n%s\n", r.Tool, status, clip(r.Output, 2000))
	}
	return b.String()
}

// ask sends a system+user exchange. ok is false when the provider errored or
// reported itself unavailable.
func ask(ctx context.Context, p provider.Provider, system, user string) (string, bool, error) {
	resp, err := p.Chat(ctx, []provider.Message{provider.System(system), provider.User(user)})
	if err != nil {
		return "", false, err
	}
	if resp.Unavailable() {
		return "", false, nil
	}
	return resp.Content, true, nil
}

func clip(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
