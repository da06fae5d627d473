package log

import (
	"io"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Format represents the output format for logs
type Format int

const (
	// FormatJSON outputs logs in JSON format
	FormatJSON Format = iota
	// FormatText outputs logs in human-readable text format
	FormatText
)

// String returns the string representation of the format
func (f Format) String() string {
	if f == FormatText {
		return "text"
	}
	return "json"
}

// ParseFormat parses a string into a Format. Unknown values fall back to JSON.
func ParseFormat(s string) Format {
	switch s {
	case "text", "TEXT", "console":
		return FormatText
	default:
		return FormatJSON
	}
}

// Output represents where logs should be written
type Output struct {
	writer io.Writer
}

// Writer returns the underlying io.Writer
func (o Output) Writer() io.Writer {
	if o.writer == nil {
		return os.Stderr
	}
	return o.writer
}

// Close releases the output if it owns a file handle.
func (o Output) Close() error {
	if c, ok := o.writer.(io.Closer); ok && o.writer != os.Stdout && o.writer != os.Stderr {
		return c.Close()
	}
	return nil
}

// NewOutput creates an Output from an io.Writer
func NewOutput(w io.Writer) Output {
	return Output{writer: w}
}

// OutputStderr creates an Output that writes to stderr.
// Stdout is reserved for command results.
func OutputStderr() Output {
	return Output{writer: os.Stderr}
}

// OutputDiscard drops every record; used by tests and quiet library callers.
func OutputDiscard() Output {
	return Output{writer: io.Discard}
}

// OutputFile writes to a size-rotated log file.
func OutputFile(path string) Output {
	_ = os.MkdirAll(filepath.Dir(path), 0750)
	return Output{writer: &lumberjack.Logger{
		Filename:   path,
		MaxSize:    15, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}}
}

// Config holds configuration for the logger
type Config struct {
	// Level is the minimum log level to output
	Level Level

	// Format is the output format (JSON or Text)
	Format Format

	// Output is where logs should be written
	Output Output

	// AddSource includes source file and line number in logs
	AddSource bool

	// ServiceName is attached to every record as "service"
	ServiceName string
}

// DefaultConfig logs at INFO in text format to stderr.
func DefaultConfig() Config {
	return Config{
		Level:       LevelInfo,
		Format:      FormatText,
		Output:      OutputStderr(),
		ServiceName: "taskflow",
	}
}

// FileConfig logs JSON records at the given level into a rotated file.
func FileConfig(path string, level Level) Config {
	return Config{
		Level:       level,
		Format:      FormatJSON,
		Output:      OutputFile(path),
		ServiceName: "taskflow",
	}
}
