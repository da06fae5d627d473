package apply

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/taskflow/internal/jsonutil"
	"github.com/felixgeelhaar/taskflow/internal/log"
	"github.com/felixgeelhaar/taskflow/internal/patch"
	"github.com/felixgeelhaar/taskflow/internal/provider"
)

// SourceFile is the current content of a file offered to a Generator.
// Content is empty for files that do not exist yet.
type SourceFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Generator produces the new content for a multi-file edit.
type Generator interface {
	Generate(ctx context.Context, instruction string, files []SourceFile) ([]patch.FileChange, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, instruction string, files []SourceFile) ([]patch.FileChange, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, instruction string, files []SourceFile) ([]patch.FileChange, error) {
	return f(ctx, instruction, files)
}

const generatorSystemPrompt = `You edit source files. Reply with a single JSON object:
{"files":[{"path":"relative/path","content":"complete new file content"}]}
Include every file you change with its full content. Use an empty content to delete a file.
Omit files you leave unchanged.`

// ProviderGenerator asks the completion provider for new file contents.
// Files the reply does not mention keep their content; an unavailable
// provider or an unparseable reply leaves every file unchanged.
type ProviderGenerator struct {
	provider provider.Provider
	logger   *log.Logger
	maxBytes int
}

// NewProviderGenerator creates a generator backed by p.
func NewProviderGenerator(p provider.Provider, logger *log.Logger) *ProviderGenerator {
	if p == nil {
		p = provider.None{}
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &ProviderGenerator{provider: p, logger: logger.WithComponent("generator"), maxBytes: 64 * 1024}
}

type generatedFiles struct {
	Files []struct {
		Path    string  `json:"path"`
		Content *string `json:"content"`
	} `json:"files"`
}

// Generate implements Generator.
func (g *ProviderGenerator) Generate(ctx context.Context, instruction string, files []SourceFile) ([]patch.FileChange, error) {
	changes := make([]patch.FileChange, 0, len(files))
	index := make(map[string]int, len(files))
	for _, f := range files {
		p := filepath.ToSlash(filepath.Clean(f.Path))
		index[p] = len(changes)
		changes = append(changes, patch.FileChange{Path: p, OriginalContent: f.Content, NewContent: f.Content})
	}

	resp, err := g.provider.Chat(ctx, []provider.Message{
		provider.System(generatorSystemPrompt),
		provider.User(g.prompt(instruction, files)),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.logger.WithError(err).Warn("generation failed, keeping original content")
		return changes, nil
	}
	if resp.Unavailable() {
		g.logger.Warn("no completion provider, keeping original content")
		return changes, nil
	}

	reply, ok := jsonutil.Decode[generatedFiles](resp.Content)
	if !ok {
		g.logger.Warn("reply contained no file set, keeping original content")
		return changes, nil
	}

	for _, f := range reply.Files {
		if strings.TrimSpace(f.Path) == "" || f.Content == nil {
			continue
		}
		p := filepath.ToSlash(filepath.Clean(f.Path))
		if i, ok := index[p]; ok {
			changes[i].NewContent = *f.Content
			continue
		}
		index[p] = len(changes)
		changes = append(changes, patch.FileChange{Path: p, NewContent: *f.Content})
	}
	return changes, nil
}

func (g *ProviderGenerator) prompt(instruction string, files []SourceFile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Instruction: %s\n", instruction)
	budget := g.maxBytes
	for _, f := range files {
		content := f.Content
		if len(content) > budget {
			content = content[:max(budget, 0)] + "\n[truncated]"
		}
		budget -= len(f.Content)
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", f.Path, content)
	}
	return b.String()
}
