// Package services defines shared utilities consumed by the analysis pipeline,
// the live session engine, and the daemon API.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, user IDs, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that give every failure a
//     stable Kind, so callers can decide between retry, abort, and surfacing
//     the problem to the end user.
//
// Use these helpers when wiring new components so operational behaviour (error
// classification, observability) stays uniform across the daemon.
package services
