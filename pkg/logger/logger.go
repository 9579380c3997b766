package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var Log *slog.Logger

var (
	sinkMu   sync.Mutex
	sinkFile *os.File
)

// Init initializes the global slog logger from CONDUIT_LOG_LEVEL and
// CONDUIT_LOG_SINK.
func Init() {
	InitWithLevel("")
}

// InitWithLevel initializes the global logger but honors the provided
// `level` string ("debug", "info", "warn", "error"). If level is empty,
// CONDUIT_LOG_LEVEL is used.
func InitWithLevel(level string) {
	// sink is "stdout", "stderr" or "file:/path/to/log"
	sink := os.Getenv("CONDUIT_LOG_SINK")
	lvl := strings.TrimSpace(level)
	if lvl == "" {
		lvl = os.Getenv("CONDUIT_LOG_LEVEL")
	}
	Log = slog.New(slog.NewTextHandler(openSink(sink), &slog.HandlerOptions{Level: ParseLevel(lvl)}))
	slog.SetDefault(Log)
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func openSink(sink string) io.Writer {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if sinkFile != nil {
		sinkFile.Close()
		sinkFile = nil
	}
	switch {
	case sink == "stderr":
		return os.Stderr
	case strings.HasPrefix(sink, "file:"):
		path := strings.TrimPrefix(sink, "file:")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err == nil {
			sinkFile = f
			return f
		}
		// fallback to stdout
		fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", path, err)
	}
	return os.Stdout
}

// Sync flushes a file sink to disk, if one is open.
func Sync() {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if sinkFile != nil {
		sinkFile.Sync()
	}
}

// Debug logs with slog-style key/value pairs.
func Debug(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Debug(msg, args...)
}

// Info logs with slog-style key/value pairs.
func Info(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Info(msg, args...)
}

// Warn logs with slog-style key/value pairs.
func Warn(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Warn(msg, args...)
}

// Error logs with slog-style key/value pairs.
func Error(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Error(msg, args...)
}

// LogConfigSummary logs a title followed by one "- item" line per entry.
func LogConfigSummary(title string, items []string) {
	if Log == nil {
		return
	}
	var b strings.Builder
	b.WriteString(title)
	for _, it := range items {
		b.WriteString("\n  - ")
		b.WriteString(it)
	}
	Log.Info(b.String())
}
