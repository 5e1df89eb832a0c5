package logging

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
)

// Level defines severity for logger output.
type Level int

const (
	LevelNop Level = iota - 1
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
)

// Logger provides leveled logging for runtime components. A nil *Logger is
// safe to use and discards everything.
type Logger struct {
	level  Level
	logger *stdlog.Logger
}

// New creates a logger with the desired level and component prefix.
func New(level Level, prefix string) *Logger {
	return NewWithWriter(level, prefix, os.Stderr)
}

// NewWithWriter creates a logger writing to w; used by tests to capture
// output.
func NewWithWriter(level Level, prefix string, w io.Writer) *Logger {
	if prefix != "" {
		prefix = "[" + prefix + "] "
	}
	return &Logger{
		level:  level,
		logger: stdlog.New(w, prefix, stdlog.LstdFlags|stdlog.Lmicroseconds),
	}
}

// ParseLevel maps a level name to its Level; unknown names fail.
func ParseLevel(name string) (Level, error) {
	switch name {
	case "nop", "off":
		return LevelNop, nil
	case "error":
		return LevelError, nil
	case "warn":
		return LevelWarn, nil
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	default:
		return LevelNop, fmt.Errorf("unknown log level: %s", name)
	}
}

// Nop returns a logger that discards all output; the default for tests.
func Nop() *Logger {
	return &Logger{level: LevelNop, logger: stdlog.New(io.Discard, "", 0)}
}

// SetLevel adjusts the current logging level.
func (l *Logger) SetLevel(level Level) {
	if l == nil {
		return
	}
	l.level = level
}

func (l *Logger) logf(target Level, format string, args ...any) {
	if l == nil || l.logger == nil || target > l.level {
		return
	}
	l.logger.Output(3, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.logf(LevelError, format, args...)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.logf(LevelWarn, format, args...)
}

func (l *Logger) Infof(format string, args ...any) {
	l.logf(LevelInfo, format, args...)
}

func (l *Logger) Debugf(format string, args ...any) {
	l.logf(LevelDebug, format, args...)
}
