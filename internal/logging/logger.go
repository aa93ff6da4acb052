// Package logging provides structured JSON logging for the sync agent.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LogLevel represents a log level.
type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

var levelRank = map[LogLevel]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// Logger writes level-filtered structured JSON entries, one per line.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	minLevel LogLevel
}

var (
	global *Logger
	once   sync.Once
)

// Init initializes the global logger. Only the first call takes effect.
func Init(out io.Writer, minLevel LogLevel) {
	once.Do(func() {
		global = &Logger{
			out:      out,
			minLevel: minLevel,
		}
	})
}

// Get returns the global logger, initializing a default one if needed.
func Get() *Logger {
	if global == nil {
		Init(os.Stdout, LevelInfo)
	}
	return global
}

// LogEntry is one serialized log line.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Error     string         `json:"error,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

func (l *Logger) log(level LogLevel, message string, err error, context map[string]any) {
	if levelRank[level] < levelRank[l.minLevel] {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     string(level),
		Message:   message,
		Context:   context,
	}
	if err != nil {
		entry.Error = err.Error()
	}

	data, jsonErr := json.Marshal(entry)
	if jsonErr != nil {
		fmt.Fprintf(os.Stderr, "logging: failed to marshal entry: %v\n", jsonErr)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, string(data))
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, context ...map[string]any) {
	l.log(LevelDebug, message, nil, mergeContext(context...))
}

// Info logs an info message.
func (l *Logger) Info(message string, context ...map[string]any) {
	l.log(LevelInfo, message, nil, mergeContext(context...))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, context ...map[string]any) {
	l.log(LevelWarn, message, nil, mergeContext(context...))
}

// Error logs an error message with its cause.
func (l *Logger) Error(message string, err error, context ...map[string]any) {
	l.log(LevelError, message, err, mergeContext(context...))
}

func mergeContext(context ...map[string]any) map[string]any {
	switch len(context) {
	case 0:
		return nil
	case 1:
		return context[0]
	}
	merged := make(map[string]any)
	for _, c := range context {
		for k, v := range c {
			merged[k] = v
		}
	}
	return merged
}

// Convenience functions using the global logger.

func Debug(message string, context ...map[string]any) {
	Get().Debug(message, context...)
}

func Info(message string, context ...map[string]any) {
	Get().Info(message, context...)
}

func Warn(message string, context ...map[string]any) {
	Get().Warn(message, context...)
}

func Error(message string, err error, context ...map[string]any) {
	Get().Error(message, err, context...)
}
