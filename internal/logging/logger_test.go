package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func newTestLogger(minLevel LogLevel) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return &Logger{out: buf, minLevel: minLevel}, buf
}

func decodeLine(t *testing.T, line string) LogEntry {
	t.Helper()
	var entry LogEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("invalid log line %q: %v", line, err)
	}
	return entry
}

func TestLogEntryShape(t *testing.T) {
	logger, buf := newTestLogger(LevelDebug)
	logger.Info("sync cycle finished", map[string]any{
		"pushed": 3,
		"pulled": 7,
	})

	entry := decodeLine(t, buf.String())
	if entry.Level != "INFO" || entry.Message != "sync cycle finished" {
		t.Errorf("Unexpected entry: %+v", entry)
	}
	if entry.Context["pushed"].(float64) != 3 {
		t.Errorf("Expected context to round-trip, got %v", entry.Context)
	}
	if entry.Timestamp == "" {
		t.Error("Expected a timestamp")
	}
}

func TestErrorIncludesCause(t *testing.T) {
	logger, buf := newTestLogger(LevelDebug)
	logger.Error("push failed", errors.New("connection refused"))

	entry := decodeLine(t, buf.String())
	if entry.Level != "ERROR" || entry.Error != "connection refused" {
		t.Errorf("Unexpected entry: %+v", entry)
	}
}

func TestLevelFiltering(t *testing.T) {
	logger, buf := newTestLogger(LevelWarn)
	logger.Debug("noise")
	logger.Info("still noise")
	logger.Warn("trouble")
	logger.Error("broken", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines at warn level, got %d: %q", len(lines), buf.String())
	}
	if decodeLine(t, lines[0]).Level != "WARN" || decodeLine(t, lines[1]).Level != "ERROR" {
		t.Errorf("Unexpected levels in %q", buf.String())
	}
}

func TestMergeContext(t *testing.T) {
	logger, buf := newTestLogger(LevelDebug)
	logger.Info("merged", map[string]any{"a": "1"}, map[string]any{"b": "2"})

	entry := decodeLine(t, buf.String())
	if entry.Context["a"] != "1" || entry.Context["b"] != "2" {
		t.Errorf("Expected merged context, got %v", entry.Context)
	}
}

func TestGlobalLoggerSelfInitializes(t *testing.T) {
	// Must not panic before Init is called.
	Get().Debug("ping")
}
