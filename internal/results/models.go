package results

import (
	"path"
	"sort"
	"strings"
	"time"

	"emotrack/internal/emotion"
)

// Media types.
const (
	MediaImage = "image"
	MediaVideo = "video"
)

// Source types recorded on each analysis.
const (
	SourceWebcam      = "webcam"
	SourceWebcamLive  = "webcam-live"
	SourceImageUpload = "image-upload"
	SourceVideoUpload = "video-upload"
	SourceUpload      = "upload"
)

const (
	defaultListLimit = 25
	maxListLimit     = 100
	defaultChannel   = "manual"
)

var sourceAliases = map[string][]string{
	"camera": {SourceWebcam, SourceWebcamLive},
	"image":  {SourceImageUpload},
	"video":  {SourceVideoUpload},
}

// SourceAliases expands a user-facing source filter into stored source types.
// Unknown values match themselves; "" and "all" match everything.
func SourceAliases(value string) []string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || value == "all" {
		return nil
	}
	if aliases, ok := sourceAliases[value]; ok {
		return append([]string(nil), aliases...)
	}
	return []string{value}
}

// Record is one persisted per-label analysis.
type Record struct {
	ID               int64          `json:"id"`
	BatchID          string         `json:"batch_id"`
	UserID           int64          `json:"user_id"`
	MediaType        string         `json:"media_type"`
	SourceType       string         `json:"source_type"`
	Channel          string         `json:"channel"`
	OriginalFilename string         `json:"original_filename,omitempty"`
	OriginalPath     string         `json:"original_path"`
	SnapshotPath     string         `json:"snapshot_path"`
	DominantEmotion  emotion.Label  `json:"dominant_emotion"`
	Confidence       float64        `json:"confidence"`
	Detail           Detail         `json:"detections"`
	Counts           emotion.Counts `json:"emotion_counts"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Detail is the structured payload kept in detections_json.
type Detail struct {
	EmotionLabel    emotion.Label       `json:"emotion_label"`
	EmotionCount    int                 `json:"emotion_count"`
	TotalCounts     emotion.Counts      `json:"total_counts"`
	Detections      []emotion.Detection `json:"detections"`
	BatchID         string              `json:"batch_id,omitempty"`
	SessionID       string              `json:"session_id,omitempty"`
	DurationSeconds float64             `json:"duration_seconds,omitempty"`
	Frames          int                 `json:"frames,omitempty"`
	MediaType       string              `json:"media_type,omitempty"`
	SourceType      string              `json:"source_type,omitempty"`
}

// Filter narrows List and Stats queries.
type Filter struct {
	// UserID restricts results to one user when set.
	UserID    *int64
	MediaType string
	// Source accepts stored source types and the camera/image/video aliases.
	Source  string
	Emotion string
	Limit   int
}

// PageSize returns the effective list limit: 25 when unset, at most 100.
func (f Filter) PageSize() int {
	switch {
	case f.Limit <= 0:
		return defaultListLimit
	case f.Limit > maxListLimit:
		return maxListLimit
	default:
		return f.Limit
	}
}

// Stats aggregates stored analyses.
type Stats struct {
	Analyses int            `json:"analyses"`
	ByLabel  map[string]int `json:"by_label"`
	BySource map[string]int `json:"by_source"`
}

// Labels returns the labels present in ByLabel, sorted.
func (s Stats) Labels() []string {
	out := make([]string, 0, len(s.ByLabel))
	for label := range s.ByLabel {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}

// SessionRecords converts a finalized live session into one record per
// counted label. Sessions without frames or without a stream produce nothing,
// as do labels with no snapshot to show.
func SessionRecords(summary *emotion.SessionSummary) []Record {
	if summary == nil || summary.FrameCount == 0 || summary.VideoStreamPath == nil || *summary.VideoStreamPath == "" {
		return nil
	}
	stream := *summary.VideoStreamPath
	records := make([]Record, 0, summary.Counts.Len())
	for _, label := range summary.Counts.Labels() {
		qty := summary.Counts.Get(label)
		if qty <= 0 {
			continue
		}
		snapshot := summary.SnapshotPaths[label]
		if snapshot == "" && summary.PrimarySnapshotPath != nil {
			snapshot = *summary.PrimarySnapshotPath
		}
		if snapshot == "" {
			continue
		}
		records = append(records, Record{
			BatchID:          summary.SessionID,
			UserID:           summary.UserID,
			MediaType:        MediaVideo,
			SourceType:       SourceWebcamLive,
			Channel:          channelOrDefault(summary.Channel),
			OriginalFilename: path.Base(stream),
			OriginalPath:     stream,
			SnapshotPath:     snapshot,
			DominantEmotion:  label,
			Confidence:       summary.LabelConfidence(label),
			Counts:           singleCount(label, qty),
			Detail: Detail{
				EmotionLabel:    label,
				EmotionCount:    qty,
				TotalCounts:     summary.Counts.Clone(),
				Detections:      []emotion.Detection{},
				BatchID:         summary.SessionID,
				SessionID:       summary.SessionID,
				DurationSeconds: summary.DurationSeconds,
				Frames:          summary.FrameCount,
			},
			CreatedAt: summary.FinishedAt,
		})
	}
	return records
}

// Upload describes an uploaded file that was analyzed as a batch.
type Upload struct {
	BatchID          string
	UserID           int64
	MediaType        string
	SourceType       string
	Channel          string
	OriginalFilename string
	OriginalPath     string
}

// UploadRecord builds the record for one label of an analyzed upload.
func UploadRecord(upload Upload, summary *emotion.BatchSummary, label emotion.Label, snapshotPath string) Record {
	qty := summary.Counts.Get(label)
	labelDetections := LabelDetections(summary.Detections, label)
	return Record{
		BatchID:          upload.BatchID,
		UserID:           upload.UserID,
		MediaType:        upload.MediaType,
		SourceType:       upload.SourceType,
		Channel:          channelOrDefault(upload.Channel),
		OriginalFilename: upload.OriginalFilename,
		OriginalPath:     upload.OriginalPath,
		SnapshotPath:     snapshotPath,
		DominantEmotion:  label,
		Confidence:       BatchLabelConfidence(summary, label),
		Counts:           singleCount(label, qty),
		Detail: Detail{
			EmotionLabel: label,
			EmotionCount: qty,
			TotalCounts:  summary.Counts.Clone(),
			Detections:   labelDetections,
			BatchID:      upload.BatchID,
			MediaType:    upload.MediaType,
			SourceType:   upload.SourceType,
		},
	}
}

// BatchLabelConfidence picks the label's best confidence, then the best of its
// detections, then the batch confidence.
func BatchLabelConfidence(summary *emotion.BatchSummary, label emotion.Label) float64 {
	if summary == nil {
		return 0
	}
	if v, ok := summary.LabelConfidence[label]; ok {
		return v
	}
	best, found := 0.0, false
	for _, det := range summary.Detections {
		if det.Label == label && (!found || det.Confidence > best) {
			best, found = det.Confidence, true
		}
	}
	if found {
		return best
	}
	return summary.Confidence
}

// LabelDetections returns the detections carrying label.
func LabelDetections(detections []emotion.Detection, label emotion.Label) []emotion.Detection {
	out := make([]emotion.Detection, 0, len(detections))
	for _, det := range detections {
		if det.Label == label {
			out = append(out, det)
		}
	}
	return out
}

func channelOrDefault(channel string) string {
	if channel = strings.TrimSpace(channel); channel != "" {
		return channel
	}
	return defaultChannel
}

func singleCount(label emotion.Label, n int) emotion.Counts {
	var c emotion.Counts
	c.Add(label, n)
	return c
}
