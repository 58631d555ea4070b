// Package log provides category-based structured logging for the
// WebIssues client. Log lines carry a category so traces from the
// protocol layer, the entity model, and the snapshot store can be
// filtered independently.
package log

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// Category labels the subsystem a log line originates from.
type Category string

const (
	CatProto  Category = "proto"  // tokenizer and row parsing
	CatNet    Category = "net"    // protocol client and transport
	CatModel  Category = "model"  // entity model and reloads
	CatView   Category = "view"   // view definitions and queries
	CatDB     Category = "db"     // snapshot store
	CatConfig Category = "config" // configuration loading
)

var (
	mu     sync.RWMutex
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
)

// Init replaces the package logger. Pass nil to log to stderr at the
// given level. Safe to call concurrently with logging.
func Init(w io.Writer, level slog.Level) {
	if w == nil {
		w = os.Stderr
	}
	mu.Lock()
	defer mu.Unlock()
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ParseLevel maps a config level name to a slog level. Unknown names
// fall back to info.
func ParseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debug logs a debug message with the given category and key-value pairs.
func Debug(cat Category, msg string, args ...any) {
	current().Debug(msg, append([]any{"cat", string(cat)}, args...)...)
}

// Info logs an informational message.
func Info(cat Category, msg string, args ...any) {
	current().Info(msg, append([]any{"cat", string(cat)}, args...)...)
}

// Warn logs a warning.
func Warn(cat Category, msg string, args ...any) {
	current().Warn(msg, append([]any{"cat", string(cat)}, args...)...)
}

// Error logs an error message.
func Error(cat Category, msg string, args ...any) {
	current().Error(msg, append([]any{"cat", string(cat)}, args...)...)
}

// ErrorErr logs an error message with the error attached as an attribute.
func ErrorErr(cat Category, msg string, err error, args ...any) {
	current().Error(msg, append([]any{"cat", string(cat), "error", err}, args...)...)
}
