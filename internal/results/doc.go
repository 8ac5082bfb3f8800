// Package results persists finished emotion analyses in SQLite.
//
// Every analysis is stored as one media_analyses row per detected label, with
// the label tally in media_emotion_counts. Live sessions, image uploads and
// video uploads share the table and are told apart by source_type. Paths are
// relative to the media storage root.
package results
