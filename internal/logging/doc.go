// Package logging assembles structured slog loggers and formatting helpers used
// across reel.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so task handlers can tag log
// lines with media IDs, task IDs, stages, and lanes. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
