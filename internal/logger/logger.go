// Package logger sets up zerolog for the bot: human-readable console output
// and an optional JSON log file.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Logger is a zerolog.Logger that components receive and narrow with Named.
type Logger struct {
	zerolog.Logger
}

// ParseLevel maps LOG_LEVEL to a zerolog level. Empty or unknown values mean
// info; "warning" is accepted for warn.
func ParseLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// New logs to stdout and, when logFile is set, appends JSON lines to it.
func New(level, logFile string) (*Logger, error) {
	out := []io.Writer{zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}}

	if logFile != "" {
		f, err := openAppend(logFile)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(out...)).
		Level(ParseLevel(level)).
		With().Timestamp().Caller().
		Logger()
	return &Logger{zl}, nil
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// NewWriter logs JSON lines to w at debug level. Tests pass io.Discard or a
// buffer.
func NewWriter(w io.Writer) *Logger {
	return &Logger{zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Logger()}
}

// Named tags every entry with a component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{l.With().Str("component", component).Logger()}
}

// Global is set by Init.
var Global *Logger

// Init builds the process logger.
func Init(level, logFile string) error {
	l, err := New(level, logFile)
	if err != nil {
		return err
	}
	Global = l
	return nil
}

// Get returns the process logger, or a no-op logger before Init.
func Get() *Logger {
	if Global == nil {
		return &Logger{zerolog.Nop()}
	}
	return Global
}
