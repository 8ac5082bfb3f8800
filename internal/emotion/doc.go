// Package emotion holds the shared data model of the analysis pipeline: the
// closed label set, per-face detections, per-frame summaries, and the
// immutable summaries produced by live sessions and batch analysis.
//
// Counts preserves first-insertion order so that dominant-label ties resolve
// to the label observed first, both within a frame and across a session.
package emotion
