// Package logging holds the process-wide structured logger. The engine
// logs page and node traffic at Debug and lifecycle events at Info;
// batch runs default to text on stdout, and a file target can be set
// for long sessions. Subsystems take tagged child loggers via With.
package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Config selects the logger's level, destination and encoding.
type Config struct {
	Level      string // slog level name, e.g. "debug" or "WARN"; empty means info
	OutputPath string // empty for stdout, or a file path
	Format     string // "json" or "text"
}

var (
	mu      sync.Mutex
	base    *slog.Logger
	logFile *os.File
)

// Configure replaces the process logger. It may be called again to
// reconfigure; a log file opened by a previous call is closed first.
func Configure(cfg Config) error {
	level := slog.LevelInfo
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return err
		}
	}

	writer := os.Stdout
	var file *os.File
	if cfg.OutputPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0o750); err != nil {
			return err
		}
		opened, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return err
		}
		file = opened
		writer = opened
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
	}
	logFile = file
	base = slog.New(handler)
	return nil
}

// Shutdown closes the log file, if any, and drops the configured
// logger; the next use falls back to the default.
func Shutdown() error {
	mu.Lock()
	defer mu.Unlock()

	var err error
	if logFile != nil {
		err = logFile.Close()
		logFile = nil
	}
	base = nil
	return err
}

// L returns the process logger. Before any Configure call it lazily
// installs the default: info-level text on stdout.
func L() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if base == nil {
		base = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	return base
}

// With returns a child logger tagged with the subsystem it speaks for,
// e.g. With("HeapFileStore").
func With(component string) *slog.Logger {
	return L().With("component", component)
}

// Debug logs a debug message on the process logger.
func Debug(msg string, args ...any) {
	L().Debug(msg, args...)
}

// Info logs an info message on the process logger.
func Info(msg string, args ...any) {
	L().Info(msg, args...)
}

// Warn logs a warning on the process logger.
func Warn(msg string, args ...any) {
	L().Warn(msg, args...)
}

// Error logs an error on the process logger.
func Error(msg string, args ...any) {
	L().Error(msg, args...)
}
