// Package logging assembles structured slog loggers and formatting helpers
// used across framealign.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context helpers so search and continuity code tag
// every line with the frame number and run identifier being processed. A
// no-op logger is provided for tests and for wiring that cannot fail.
package logging
