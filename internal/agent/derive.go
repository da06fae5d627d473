package agent

import (
	"strings"

	"github.com/felixgeelhaar/taskflow/internal/tools"
)

// keywordRules are checked in order; the first rule with a matching word wins.
var keywordRules = []struct {
	tool     string
	keywords []string
}{
	{tools.FileRead, []string{"read", "cat"}},
	{tools.FileWrite, []string{"write", "create", "add"}},
	{tools.ShellExec, []string{"run", "execute", "command"}},
	{tools.FileSearch, []string{"search", "find"}},
}

// DeriveToolCall maps free task text to a tool invocation when no plan exists.
func DeriveToolCall(text string) (string, map[string]any) {
	words := strings.Fields(text)

	for _, rule := range keywordRules {
		idx := keywordIndex(words, rule.keywords)
		if idx < 0 {
			continue
		}
		rest := words[idx+1:]

		switch rule.tool {
		case tools.FileRead:
			return tools.FileRead, map[string]any{"path": extractPath(rest, words)}
		case tools.FileWrite:
			return tools.FileWrite, map[string]any{"path": extractPath(rest, words), "content": ""}
		case tools.ShellExec:
			command := strings.Join(rest, " ")
			if command == "" {
				command = text
			}
			return tools.ShellExec, map[string]any{"command": command}
		case tools.FileSearch:
			return tools.FileSearch, map[string]any{"pattern": extractPath(rest, words)}
		}
	}
	return tools.ShellExec, map[string]any{"command": text}
}

func keywordIndex(words []string, keywords []string) int {
	for i, w := range words {
		w = strings.ToLower(trimToken(w))
		for _, k := range keywords {
			if w == k {
				return i
			}
		}
	}
	return -1
}

// extractPath picks the first file-looking token after the keyword, falling
// back to the last word of the text.
func extractPath(after, all []string) string {
	for _, w := range after {
		t := trimToken(w)
		if strings.ContainsAny(t, "./") && t != "." {
			return t
		}
	}
	if len(all) == 0 {
		return ""
	}
	return trimToken(all[len(all)-1])
}

func trimToken(w string) string {
	w = strings.Trim(w, "\"'`,;:()[]{}")
	return strings.TrimRight(w, ".!?")
}
