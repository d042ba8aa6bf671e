// Package logging provides the small leveled logger that the defacing
// pipeline receives by injection. The core never logs through package-level
// state; callers decide the destination writer and the minimum level.
package logging

import (
	"fmt"
	"io"
	"sync"
)

// Level orders log severities from most to least verbose.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

// String returns the tag printed in front of each message.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "Debug"
	case LevelInfo:
		return "Info"
	case LevelWarning:
		return "Warning"
	case LevelError:
		return "Error"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// Logger writes leveled messages to a single writer. Safe for concurrent use
// by batch workers.
type Logger struct {
	mu  sync.Mutex
	out io.Writer
	min Level
}

// New returns a logger emitting messages at or above min to out. A nil writer
// discards everything.
func New(out io.Writer, min Level) *Logger {
	if out == nil {
		out = io.Discard
	}
	return &Logger{out: out, min: min}
}

// Discard returns a logger that drops all messages, for callers that do not
// want pipeline output (tests, library embedders).
func Discard() *Logger {
	return &Logger{out: io.Discard, min: LevelError + 1}
}

func (l *Logger) logf(level Level, format string, args ...interface{}) {
	if l == nil || level < l.min {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if level == LevelInfo {
		// Informational output reads as plain progress text.
		fmt.Fprintf(l.out, format+"\n", args...)
		return
	}
	fmt.Fprintf(l.out, level.String()+": "+format+"\n", args...)
}

// Debugf logs diagnostic detail useful when tracing a run.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logf(LevelDebug, format, args...)
}

// Infof logs normal progress output.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logf(LevelInfo, format, args...)
}

// Warningf logs conditions the run survives but the user should see.
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.logf(LevelWarning, format, args...)
}

// Errorf logs failures.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logf(LevelError, format, args...)
}
