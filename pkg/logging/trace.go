package logging

import (
	"log/slog"
	"strings"
	"sync/atomic"
)

// LevelTrace selects debug output plus trace lines for high-rate events
// such as AR audio progress.
const LevelTrace = "TRACE"

var traceEnabled atomic.Bool

// EnableTrace switches trace logging on or off.
func EnableTrace(on bool) { traceEnabled.Store(on) }

// TraceEnabled reports whether trace logging is on.
func TraceEnabled() bool { return traceEnabled.Load() }

func isTraceLevel(level string) bool {
	return strings.EqualFold(level, LevelTrace)
}

// Trace logs msg at DEBUG level on logger, only while trace is on.
func Trace(logger *slog.Logger, msg string, args ...any) {
	if traceEnabled.Load() {
		logger.Debug(msg, args...)
	}
}

// TraceDefault is Trace on the default logger.
func TraceDefault(msg string, args ...any) {
	if traceEnabled.Load() {
		slog.Debug(msg, args...)
	}
}
