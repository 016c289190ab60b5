// Package logging provides an explicitly-passed logger handle. The original
// source used a process-wide singleton (see spec.md §9's design note); this
// removes that hidden global by threading a *Logger value into the
// Orchestrator and every updater instead.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Level mirrors the YAML `debug_log_level` key (0..5, higher is more
// verbose).
type Level int

const (
	LevelOff Level = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

// Logger wraps a standard library *log.Logger with a mutex-guarded level,
// matching the concurrency model in spec.md §5 ("level changes are guarded
// by a mutex").
type Logger struct {
	mu    sync.Mutex
	level Level
	std   *log.Logger
}

// New creates a Logger writing to w at the given initial level.
func New(w io.Writer, level Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{level: level, std: log.New(w, "", log.LstdFlags|log.Lmicroseconds)}
}

// SetLevel changes the active log level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *Logger) enabled(level Level) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level >= level
}

func (l *Logger) log(level Level, tag, format string, args ...interface{}) {
	if !l.enabled(level) {
		return
	}
	l.std.Output(3, fmt.Sprintf("[%s] %s", tag, fmt.Sprintf(format, args...)))
}

// Errorf logs at LevelError.
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(LevelError, "ERROR", format, args...) }

// Warnf logs at LevelWarn.
func (l *Logger) Warnf(format string, args ...interface{}) { l.log(LevelWarn, "WARN", format, args...) }

// Infof logs at LevelInfo.
func (l *Logger) Infof(format string, args ...interface{}) { l.log(LevelInfo, "INFO", format, args...) }

// Debugf logs at LevelDebug.
func (l *Logger) Debugf(format string, args ...interface{}) { l.log(LevelDebug, "DEBUG", format, args...) }

// Tracef logs at LevelTrace.
func (l *Logger) Tracef(format string, args ...interface{}) { l.log(LevelTrace, "TRACE", format, args...) }

// Nop returns a Logger that discards everything, useful for tests.
func Nop() *Logger {
	return New(io.Discard, LevelOff)
}
