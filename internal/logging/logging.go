// Package logging provides the daemon's operational logger (structured,
// slog-based) and the per-invocation request logger used by the
// coordinator to record one line per Execution.
package logging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

var (
	opLogger atomic.Pointer[slog.Logger]
	logLevel = new(slog.LevelVar)
)

func init() {
	logLevel.Set(slog.LevelInfo)
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	opLogger.Store(slog.New(handler))
}

// Op returns the operational logger used for daemon and infrastructure
// events. It is distinct from the Logger below, which logs individual
// invocations.
func Op() *slog.Logger {
	return opLogger.Load()
}

// SetLevel changes the operational logger's level.
func SetLevel(level slog.Level) {
	logLevel.Set(level)
}

// SetLevelFromString sets the operational logger's level from a config
// string; unrecognized values are ignored and leave the level unchanged.
func SetLevelFromString(level string) {
	switch level {
	case "debug", "DEBUG":
		logLevel.Set(slog.LevelDebug)
	case "info", "INFO":
		logLevel.Set(slog.LevelInfo)
	case "warn", "WARN", "warning", "WARNING":
		logLevel.Set(slog.LevelWarn)
	case "error", "ERROR":
		logLevel.Set(slog.LevelError)
	}
}

// RequestLog is one invocation's log entry, matching the fields the
// coordinator has available once an Execution finishes.
type RequestLog struct {
	Timestamp   time.Time `json:"timestamp"`
	ExecutionID string    `json:"execution_id"`
	FunctionID  string    `json:"function_id"`
	Function    string    `json:"function"`
	Backend     string    `json:"backend"`
	DurationMs  int64     `json:"duration_ms"`
	WarmStart   bool      `json:"warm_start"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
}

// Logger writes RequestLog entries to the console and, optionally, to a
// newline-delimited JSON file.
type Logger struct {
	mu      sync.Mutex
	enabled bool
	file    *os.File
	console bool
}

var defaultLogger = &Logger{enabled: true, console: true}

// Default returns the process-wide request logger.
func Default() *Logger {
	return defaultLogger
}

// SetOutput directs file output to path, replacing any prior file.
func (l *Logger) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// SetConsole enables or disables the human-readable console line.
func (l *Logger) SetConsole(enabled bool) {
	l.mu.Lock()
	l.console = enabled
	l.mu.Unlock()
}

// Log records one invocation.
func (l *Logger) Log(entry *RequestLog) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}
	entry.Timestamp = time.Now()

	if l.console {
		status := "ok"
		if !entry.Success {
			status = "err"
		}
		warm := ""
		if entry.WarmStart {
			warm = " [warm]"
		}
		fmt.Printf("[invoke] %s %s %s %dms%s\n", status, entry.ExecutionID, entry.Function, entry.DurationMs, warm)
		if entry.Error != "" {
			fmt.Printf("[invoke]   error: %s\n", entry.Error)
		}
	}

	if l.file != nil {
		data, _ := json.Marshal(entry)
		l.file.Write(append(data, '\n'))
	}
}

// Close releases the file handle, if one is open.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
