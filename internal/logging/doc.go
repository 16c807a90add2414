// Package logging assembles the structured slog loggers used across the
// narrator pipeline.
//
// It owns the console and JSON handlers, level and output plumbing, and the
// attribute helpers that keep phase transitions, retries, and failures tagged
// with a consistent shape (component, phase, fingerprint, run_id). A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
