// Package livesession accumulates per-frame emotion summaries for live camera
// sessions.
//
// A Session owns its running counts, snapshot paths, and video writer and is
// mutated only through Ingest and Finalize, which serialize on a per-session
// lock. The Registry maps session ids to sessions under its own lock, held only
// for map operations, so unrelated sessions ingest in parallel. Remove is the
// single handoff point to finalization: at most one caller wins it.
//
// Sessions whose clients vanish without stopping are evicted by Reap once they
// have been idle longer than the configured timeout.
package livesession
