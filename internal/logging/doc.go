// Package logging assembles structured slog loggers and formatting helpers used
// across clipmill.
//
// It owns the configurable console/JSON handlers, fans records out to stdout
// and the per-run log file, and exposes context-aware helpers so stage code
// automatically tags log lines with the run, group key, output name, stage,
// worker, and correlation ID. The package also provides a no-op logger for
// tests and wiring code that cannot fail.
package logging
