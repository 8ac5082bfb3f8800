package api

import (
	"time"

	"emotrack/internal/emotion"
)

// MediaPrefix is the URL prefix under which stored files are served.
const MediaPrefix = "/api/media/"

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Retryable bool   `json:"retryable"`
}

// HealthResponse answers liveness probes.
type HealthResponse struct {
	Status string `json:"status"`
}

// ModelMetadata describes the label set and model artifact availability.
type ModelMetadata struct {
	Labels         []string `json:"labels"`
	WeightsPath    string   `json:"weights_path"`
	HasModel       bool     `json:"has_model"`
	HasCascade     bool     `json:"has_cascade"`
	Loaded         bool     `json:"loaded"`
	StorageRoot    string   `json:"storage_root,omitempty"`
	RawSubdir      string   `json:"raw_subdir,omitempty"`
	SnapshotSubdir string   `json:"snapshot_subdir,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running        bool          `json:"running"`
	PID            int           `json:"pid"`
	StartedAt      time.Time     `json:"started_at"`
	ActiveSessions int           `json:"active_sessions"`
	DatabasePath   string        `json:"database_path"`
	LockFilePath   string        `json:"lock_file_path"`
	Model          ModelMetadata `json:"model"`
	Stats          *Stats        `json:"stats,omitempty"`
}

// Stats aggregates stored analyses per label and per source type.
type Stats struct {
	Analyses int            `json:"analyses"`
	ByLabel  map[string]int `json:"by_label"`
	BySource map[string]int `json:"by_source"`
}

// CreateSessionRequest opens a live session.
type CreateSessionRequest struct {
	UserID  int64  `json:"user_id"`
	Channel string `json:"channel"`
}

// CreateSessionResponse identifies a newly opened live session.
type CreateSessionResponse struct {
	SessionID string    `json:"session_id"`
	UserID    int64     `json:"user_id"`
	Channel   string    `json:"channel"`
	StartedAt time.Time `json:"started_at"`
}

// SessionInfo is the point-in-time view of a registered live session.
type SessionInfo struct {
	SessionID       string         `json:"session_id"`
	UserID          int64          `json:"user_id"`
	Channel         string         `json:"channel"`
	StartedAt       time.Time      `json:"started_at"`
	LastActivity    time.Time      `json:"last_activity"`
	Frames          int            `json:"frames"`
	Counts          emotion.Counts `json:"counts"`
	DominantEmotion *string        `json:"dominant_emotion"`
}

// SessionListResponse lists active live sessions.
type SessionListResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// BoundingBox is a face region in source-frame pixels.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Detection is one classified face.
type Detection struct {
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

// FrameAnalysis is the result of analyzing a single frame.
type FrameAnalysis struct {
	DominantEmotion    *string            `json:"dominant_emotion"`
	Confidence         *float64           `json:"confidence"`
	Counts             emotion.Counts     `json:"counts"`
	Detections         []Detection        `json:"detections"`
	EmotionConfidences map[string]float64 `json:"emotion_confidences,omitempty"`
}

// SessionState is the running view of a live session after a frame.
type SessionState struct {
	SessionID          string             `json:"session_id"`
	Counts             emotion.Counts     `json:"counts"`
	Frames             int                `json:"frames"`
	DominantEmotion    *string            `json:"dominant_emotion"`
	Confidence         *float64           `json:"confidence"`
	SnapshotPath       *string            `json:"snapshot_path"`
	SnapshotURL        *string            `json:"snapshot_url,omitempty"`
	EmotionConfidences map[string]float64 `json:"emotion_confidences"`
}

// FrameResponse answers frame ingestion and frame preview requests. Warning
// carries a non-fatal storage problem hit while the frame was ingested.
type FrameResponse struct {
	FrameAnalysis
	Session *SessionState  `json:"session,omitempty"`
	Warning *ErrorResponse `json:"warning,omitempty"`
}

// SessionSummary is a finalized live session.
type SessionSummary struct {
	SessionID          string             `json:"session_id"`
	UserID             int64              `json:"user_id"`
	Channel            string             `json:"channel"`
	Counts             emotion.Counts     `json:"counts"`
	DominantEmotion    *string            `json:"dominant_emotion"`
	Confidence         *float64           `json:"confidence"`
	EmotionConfidences map[string]float64 `json:"emotion_confidences"`
	EmotionSnapshots   map[string]string  `json:"emotion_snapshots"`
	SnapshotPath       *string            `json:"snapshot_path"`
	StreamPath         *string            `json:"stream_path"`
	DurationSeconds    float64            `json:"duration_seconds"`
	Frames             int                `json:"frames"`
	StartedAt          time.Time          `json:"started_at"`
	FinishedAt         time.Time          `json:"finished_at"`
	Evicted            bool               `json:"evicted,omitempty"`
}

// StopResponse answers a session stop with the summary and persisted rows.
type StopResponse struct {
	SessionSummary
	Analyses []Analysis `json:"analyses"`
	Analysis *Analysis  `json:"analysis,omitempty"`
}

// Analysis is one persisted per-label result.
type Analysis struct {
	ID               int64          `json:"id"`
	BatchID          string         `json:"batch_id"`
	UserID           int64          `json:"user_id"`
	MediaType        string         `json:"media_type"`
	SourceType       string         `json:"source_type"`
	Channel          string         `json:"channel"`
	OriginalFilename string         `json:"original_filename,omitempty"`
	OriginalPath     string         `json:"original_path"`
	OriginalURL      string         `json:"original_url"`
	SnapshotPath     string         `json:"snapshot_path"`
	SnapshotURL      string         `json:"snapshot_url"`
	DominantEmotion  string         `json:"dominant_emotion"`
	Confidence       float64        `json:"confidence"`
	Counts           emotion.Counts `json:"emotion_counts"`
	Detections       []Detection    `json:"detections"`
	TotalCounts      emotion.Counts `json:"total_counts"`
	CreatedAt        time.Time      `json:"created_at"`
}

// AnalyzeResponse answers an upload analysis.
type AnalyzeResponse struct {
	BatchID         string         `json:"batch_id"`
	DominantEmotion string         `json:"dominant_emotion"`
	Confidence      float64        `json:"confidence"`
	Counts          emotion.Counts `json:"counts"`
	FramesSampled   int            `json:"frames_sampled,omitempty"`
	FramesAnalyzed  int            `json:"frames_analyzed"`
	Analyses        []Analysis     `json:"analyses"`
	Analysis        *Analysis      `json:"analysis,omitempty"`
}

// PreviewResponse answers a preview analysis that is never persisted.
type PreviewResponse struct {
	MediaType       string         `json:"media_type"`
	DominantEmotion string         `json:"dominant_emotion"`
	Confidence      float64        `json:"confidence"`
	Counts          emotion.Counts `json:"counts"`
	Detections      []Detection    `json:"detections"`
	FramesSampled   int            `json:"frames_sampled,omitempty"`
	FramesAnalyzed  int            `json:"frames_analyzed"`
}

// AnalysisFilters echoes the applied filters and the facets available.
type AnalysisFilters struct {
	MediaType         string   `json:"media_type"`
	Source            string   `json:"source_type"`
	Emotion           string   `json:"emotion"`
	Limit             int      `json:"limit"`
	AvailableEmotions []string `json:"available_emotions"`
	AvailableSources  []string `json:"available_sources"`
}

// AnalysisListResponse lists persisted analyses, newest first.
type AnalysisListResponse struct {
	Items   []Analysis      `json:"items"`
	Filters AnalysisFilters `json:"filters"`
}

// AnalysisResponse wraps a single persisted analysis.
type AnalysisResponse struct {
	Analysis Analysis `json:"analysis"`
}

// LogEvent represents a structured log line for API consumers.
type LogEvent struct {
	Sequence      uint64            `json:"seq"`
	Timestamp     time.Time         `json:"ts"`
	Level         string            `json:"level"`
	Message       string            `json:"msg"`
	Component     string            `json:"component,omitempty"`
	SessionID     string            `json:"session_id,omitempty"`
	UserID        int64             `json:"user_id,omitempty"`
	Channel       string            `json:"channel,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
	Details       []DetailField     `json:"details,omitempty"`
}

// DetailField is one highlighted field of a log line.
type DetailField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// LogStreamResponse wraps log events with the cursor for the next fetch.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}
