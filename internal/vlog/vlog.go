// Package vlog is a thin, level-tagged wrapper around the standard
// library logger, matching the bracketed-tag convention the rest of the
// pack's complete repos use ad hoc ([DEBUG], [WARN]) instead of pulling
// in a structured logging library nothing else in the pack uses.
package vlog

import (
	"log"
	"os"
)

// Logger tags every line with a component name and level.
type Logger struct {
	component string
	std       *log.Logger
}

// New returns a Logger writing to stderr, prefixed with component.
func New(component string) *Logger {
	return &Logger{
		component: component,
		std:       log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (l *Logger) line(level, format string, args ...any) {
	l.std.Printf("[%s] %s: "+format, append([]any{level, l.component}, args...)...)
}

// Debugf logs a debug-level line.
func (l *Logger) Debugf(format string, args ...any) { l.line("DEBUG", format, args...) }

// Infof logs an info-level line.
func (l *Logger) Infof(format string, args ...any) { l.line("INFO", format, args...) }

// Warnf logs a warning-level line.
func (l *Logger) Warnf(format string, args ...any) { l.line("WARN", format, args...) }

// Errorf logs an error-level line.
func (l *Logger) Errorf(format string, args ...any) { l.line("ERROR", format, args...) }
