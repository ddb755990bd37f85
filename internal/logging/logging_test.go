package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoggerWritesJSONLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "requests.log")

	l := &Logger{enabled: true}
	if err := l.SetOutput(path); err != nil {
		t.Fatalf("SetOutput: %v", err)
	}
	defer l.Close()

	l.Log(&RequestLog{ExecutionID: "e1", FunctionID: "f1", Function: "hello", Backend: "standard", DurationMs: 12, Success: true})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	var entry RequestLog
	if err := json.Unmarshal(data[:len(data)-1], &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry.ExecutionID != "e1" {
		t.Fatalf("ExecutionID = %q, want e1", entry.ExecutionID)
	}
}

func TestSetLevelFromStringIgnoresUnknown(t *testing.T) {
	SetLevel(0)
	SetLevelFromString("not-a-level")
	if got := logLevel.Level(); got != slog.LevelInfo {
		t.Fatalf("level = %v, want %v (unknown strings must leave it unchanged)", got, slog.LevelInfo)
	}
}
