// Package logging assembles the structured slog loggers used across emotrack.
//
// It owns the console and JSON handlers, level and output plumbing, the
// in-memory stream hub behind the log tail endpoint, and context helpers that
// tag lines with session, user, and correlation ids. NewNop serves tests and
// wiring code that cannot fail.
package logging
