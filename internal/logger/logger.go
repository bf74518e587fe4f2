// Package logger provides leveled logging for claimaudit.
//
// Debug and Info lines are printed only in verbose mode (--verbose).
// Warn and Error lines are always printed: the watcher and the audit graph
// run unattended and their failures must reach the operator.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	verbose bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer. Defaults to os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Logger prefixes every line with a component name.
type Logger struct {
	name string
}

// Named returns a logger for one component, e.g. "ingestion" or "graph".
func Named(name string) *Logger {
	return &Logger{name: name}
}

func (l *Logger) write(level string, always bool, format string, args []any) {
	mu.Lock()
	defer mu.Unlock()
	if !always && !verbose {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.name != "" {
		fmt.Fprintf(output, "[%s] %s: %s\n", level, l.name, msg)
		return
	}
	fmt.Fprintf(output, "[%s] %s\n", level, msg)
}

// Debug prints a trace message in verbose mode.
func (l *Logger) Debug(format string, args ...any) { l.write("DEBUG", false, format, args) }

// Info prints a progress message in verbose mode.
func (l *Logger) Info(format string, args ...any) { l.write("INFO", false, format, args) }

// Warn prints a recoverable problem.
func (l *Logger) Warn(format string, args ...any) { l.write("WARN", true, format, args) }

// Error prints a failure the component could not recover from.
func (l *Logger) Error(format string, args ...any) { l.write("ERROR", true, format, args) }

var root = &Logger{}

// Debug prints a trace message in verbose mode.
func Debug(format string, args ...any) { root.Debug(format, args...) }

// Info prints a progress message in verbose mode.
func Info(format string, args ...any) { root.Info(format, args...) }

// Warn prints a recoverable problem.
func Warn(format string, args ...any) { root.Warn(format, args...) }

// Error prints an unrecoverable failure.
func Error(format string, args ...any) { root.Error(format, args...) }
