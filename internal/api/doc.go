// Package api defines the wire-format types and converters shared by the
// daemon's HTTP server and the CLI client. It translates analyzer, live session
// and results models into transport DTOs so consumers never depend on internal
// types directly.
//
// # Key Types
//
// FrameAnalysis: one analyzed frame (dominant emotion, counts, detections).
//
// FrameResponse: a frame analysis plus the running live-session view when the
// frame was ingested into a session.
//
// StopResponse: the finalized session summary and the analyses persisted from
// it.
//
// Analysis/AnalysisListResponse: persisted per-label results with media URLs
// and the filter facets available to the caller.
//
// DaemonStatus: pid, active sessions, model metadata and state file paths.
//
// ErrorResponse: message plus the stable error kind and retry hint.
//
// # Design Notes
//
// DTOs use snake_case JSON tags so existing browser and mobile clients of the
// emotion API keep working unchanged. Counts are encoded as objects whose keys
// follow first-seen order. Stored paths are relative to the storage root; the
// matching URLs point at /api/media/.
package api
