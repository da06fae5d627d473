package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/taskflow/internal/errors"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{" info ", LevelInfo},
		{"warning", LevelWarn},
		{"ERROR", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat("console") != FormatText {
		t.Error("console should map to text")
	}
	if ParseFormat("anything") != FormatJSON {
		t.Error("unknown formats should map to json")
	}
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("failed to parse JSON %q: %v", line, err)
	}
	return entry
}

func TestLoggerJSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Format: FormatJSON, Output: NewOutput(&buf), ServiceName: "taskflow"})

	logger.WithComponent("pipeline").Info("phase finished", "phase", "plan")

	entry := decodeLine(t, &buf)
	if entry["msg"] != "phase finished" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["service"] != "taskflow" {
		t.Errorf("service = %v", entry["service"])
	}
	if entry["component"] != "pipeline" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["phase"] != "plan" {
		t.Errorf("phase = %v", entry["phase"])
	}
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Format: FormatText, Output: NewOutput(&buf)})

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn record should be written")
	}
}

func TestLogErrorCoded(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatJSON, Output: NewOutput(&buf)})

	logger.LogError(errors.NewApplyFailedError("a.txt", fmt.Errorf("permission denied")))

	entry := decodeLine(t, &buf)
	if entry["error_code"] != string(errors.ErrCodeApplyFailed) {
		t.Errorf("error_code = %v", entry["error_code"])
	}
	if entry["cause"] != "permission denied" {
		t.Errorf("cause = %v", entry["cause"])
	}
	if _, ok := entry["suggestions"]; !ok {
		t.Error("expected suggestions field")
	}
}

func TestWithErrorPlain(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Format: FormatJSON, Output: NewOutput(&buf)})

	logger.WithError(fmt.Errorf("boom")).Warn("tool failed")

	entry := decodeLine(t, &buf)
	if entry["error"] != "boom" {
		t.Errorf("error = %v", entry["error"])
	}
	if _, ok := entry["error_code"]; ok {
		t.Error("plain errors should not carry error_code")
	}

	if logger.WithError(nil) != logger {
		t.Error("WithError(nil) should return the same logger")
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "taskflow.log")
	logger := New(FileConfig(path, LevelInfo))

	logger.Info("written to file")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing record: %s", data)
	}
}

func TestNopLogger(t *testing.T) {
	logger := Nop()
	logger.Error("nothing")
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
