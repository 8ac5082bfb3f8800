// Package daemon coordinates the long-running emotrack process.
//
// It owns the live session registry, the idle-session reaper, the finalized
// summary cache, and the chi-based HTTP API, with flock-based locking to
// prevent multiple instances. Upload analysis, previews, and persisted
// analysis maintenance are driven from here; frame analysis itself lives in
// the analyzer package and per-session state in livesession.
//
// Keep orchestration logic here. The daemon focuses on startup, shutdown,
// request handling, and moving results between the analyzer, the media
// store, and the results database.
package daemon
