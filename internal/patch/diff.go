package patch

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ComputeContentChanges diffs two texts line by line.
func ComputeContentChanges(original, updated string) []ContentChange {
	if original == "" && updated == "" {
		return []ContentChange{}
	}

	var enc lineEncoder
	a, b := enc.encode(original), enc.encode(updated)
	diffs := diffmatchpatch.New().DiffMainRunes(a, b, false)

	changes := make([]ContentChange, 0, len(diffs))
	oldLine, newLine := 1, 1
	for _, d := range diffs {
		d.Text = enc.decode(d.Text)
		n := countLines(d.Text)
		if n == 0 {
			continue
		}
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			changes = append(changes, ContentChange{Type: ChangeUnchanged, Text: d.Text, StartLine: newLine, EndLine: newLine + n - 1})
			oldLine += n
			newLine += n
		case diffmatchpatch.DiffDelete:
			changes = append(changes, ContentChange{Type: ChangeRemoved, Text: d.Text, StartLine: oldLine, EndLine: oldLine + n - 1})
			oldLine += n
		case diffmatchpatch.DiffInsert:
			changes = append(changes, ContentChange{Type: ChangeAdded, Text: d.Text, StartLine: newLine, EndLine: newLine + n - 1})
			newLine += n
		}
	}
	return changes
}

// lineEncoder maps each distinct line to one rune so the diff runs over
// whole lines. Surrogate code points are skipped since they do not survive a
// string round trip.
type lineEncoder struct {
	index map[string]rune
	lines []string
}

func (e *lineEncoder) encode(text string) []rune {
	if e.index == nil {
		e.index = make(map[string]rune)
	}
	out := make([]rune, 0, strings.Count(text, "\n")+1)
	for text != "" {
		line := text
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			line = text[:i+1]
		}
		text = text[len(line):]

		r, ok := e.index[line]
		if !ok {
			r = lineRune(len(e.lines))
			e.index[line] = r
			e.lines = append(e.lines, line)
		}
		out = append(out, r)
	}
	return out
}

func (e *lineEncoder) decode(text string) string {
	var b strings.Builder
	for _, r := range text {
		b.WriteString(e.lines[runeLine(r)])
	}
	return b.String()
}

const surrogates = 0xE000 - 0xD800

func lineRune(i int) rune {
	r := rune(i + 1)
	if r >= 0xD800 {
		r += surrogates
	}
	return r
}

func runeLine(r rune) int {
	if r >= 0xE000 {
		r -= surrogates
	}
	return int(r) - 1
}

// UnifiedDiff renders a single-hunk unified diff for display.
func UnifiedDiff(path string, c FileChange) string {
	changes := c.Changes
	if changes == nil {
		changes = ComputeContentChanges(c.OriginalContent, c.NewContent)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "--- a/%s\n", path)
	fmt.Fprintf(&buf, "+++ b/%s\n", path)

	var body []string
	oldCount, newCount := 0, 0
	for _, ch := range changes {
		prefix := " "
		switch ch.Type {
		case ChangeAdded:
			prefix = "+"
		case ChangeRemoved:
			prefix = "-"
		}
		for _, line := range splitLines(ch.Text) {
			body = append(body, prefix+line)
			if ch.Type != ChangeAdded {
				oldCount++
			}
			if ch.Type != ChangeRemoved {
				newCount++
			}
		}
	}
	if len(body) == 0 {
		return buf.String()
	}

	fmt.Fprintf(&buf, "@@ -%d,%d +%d,%d @@\n", hunkStart(oldCount), oldCount, hunkStart(newCount), newCount)
	for _, line := range body {
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	return buf.String()
}

func hunkStart(count int) int {
	if count == 0 {
		return 0
	}
	return 1
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

// countLines counts the number of lines in a string
// Empty string = 0 lines
// String ending with \n = number of \n
// String not ending with \n = number of \n + 1
func countLines(content string) int {
	if content == "" {
		return 0
	}

	count := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		count++
	}
	return count
}
