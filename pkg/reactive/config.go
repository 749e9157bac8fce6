package reactive

import "log/slog"

// DebugMode enables debug logging throughout the reactive package:
// transaction boundaries for BatchNamed, per-pass propagation summaries,
// and warnings for writes made from inside computations. Set it at startup
// and leave it alone during runtime.
var DebugMode bool

func debugLog(msg string, args ...any) {
	if !DebugMode {
		return
	}
	slog.Default().With("component", "reactive").Debug(msg, args...)
}
