// Package jsonutil extracts JSON payloads from free-form completion text.
//
// Completion providers often wrap JSON in prose or markdown fences. Extraction is
// best effort: absence of a usable object is reported with ok=false, never as an
// error, and callers are expected to fall back to a complete default value.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ExtractObject returns the first balanced JSON object embedded in text that
// also parses as valid JSON.
func ExtractObject(text string) (string, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end, ok := matchBrace(text, start); ok {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// Decode extracts the first JSON object from text and unmarshals it into a new T.
func Decode[T any](text string) (T, bool) {
	var out T
	raw, ok := ExtractObject(text)
	if !ok {
		return out, false
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		var zero T
		return zero, false
	}
	return out, true
}

// MarshalArtifact encodes v as compact JSON without HTML escaping, the form
// stored in result artifacts.
func MarshalArtifact(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// matchBrace returns the index of the brace closing the one at start,
// ignoring braces inside JSON string literals.
func matchBrace(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
