// Package logger writes pipeline diagnostics to stderr. Debug and Info
// lines only appear in verbose mode; warnings about soft failures
// (skipped batches, failed searches, source fallbacks) always appear.
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
	quiet   bool
	output  io.Writer = os.Stderr
)

// SetVerbose enables or disables Debug and Info output.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// IsVerbose reports whether verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetQuiet suppresses warnings as well, so --json output stays machine-readable.
func SetQuiet(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

// SetOutput sets the writer for all log lines. Defaults to os.Stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func Debug(format string, args ...any) {
	logf(true, "[DEBUG] ", format, args...)
}

func Info(format string, args ...any) {
	logf(true, "[INFO] ", format, args...)
}

func Warn(format string, args ...any) {
	logf(false, "[WARN] ", format, args...)
}

// Section prints a header line in verbose mode.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

func logf(verboseOnly bool, prefix, format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if quiet || (verboseOnly && !verbose) {
		return
	}
	fmt.Fprintf(output, prefix+format+"\n", args...)
}
