package emotion

import (
	"image"
	"math"
	"time"
)

// BoundingBox is an axis-aligned face region in source-frame pixels.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// BoxFromRect converts an image rectangle into a bounding box.
func BoxFromRect(r image.Rectangle) BoundingBox {
	return BoundingBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Rect returns the box as an image rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Detection is one classified face within a frame.
type Detection struct {
	Label      Label       `json:"label"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

// FrameSummary is the result of analyzing a single frame. Face crops are
// freshly allocated and owned by whoever consumes the summary.
type FrameSummary struct {
	DominantLabel      Label
	DominantConfidence float64
	Counts             Counts
	Detections         []Detection
	LabelConfidence    map[Label]float64
	LabelFaces         map[Label]image.Image
	DominantFace       image.Image
	Annotated          image.Image
}

// SessionSummary is the immutable result of finalizing a live session. Paths
// are relative to the storage root.
type SessionSummary struct {
	SessionID           string            `json:"session_id"`
	UserID              int64             `json:"user_id"`
	Channel             string            `json:"channel"`
	Counts              Counts            `json:"counts"`
	DominantLabel       *Label            `json:"dominant_emotion"`
	Confidence          *float64          `json:"confidence"`
	BestConfidence      map[Label]float64 `json:"emotion_confidences"`
	SnapshotPaths       map[Label]string  `json:"emotion_snapshots"`
	PrimarySnapshotPath *string           `json:"snapshot_path"`
	VideoStreamPath     *string           `json:"stream_path"`
	DurationSeconds     float64           `json:"duration_seconds"`
	FrameCount          int               `json:"frames"`
	StartedAt           time.Time         `json:"started_at"`
	FinishedAt          time.Time         `json:"finished_at"`
	Evicted             bool              `json:"evicted,omitempty"`
}

// LabelConfidence returns the best confidence recorded for label, falling back
// to the summary's latest confidence.
func (s *SessionSummary) LabelConfidence(label Label) float64 {
	if s == nil {
		return 0
	}
	if v, ok := s.BestConfidence[label]; ok {
		return v
	}
	if s.Confidence != nil {
		return *s.Confidence
	}
	return 0
}

// BatchSummary combines the frames sampled from one image or video.
type BatchSummary struct {
	DominantLabel   Label
	Confidence      float64
	Counts          Counts
	Detections      []Detection
	Annotated       image.Image
	DominantFace    image.Image
	LabelFaces      map[Label]image.Image
	LabelConfidence map[Label]float64
	FramesSampled   int
	FramesAnalyzed  int
	BestFrameIndex  int
}

// FaceFor selects the image that best represents label: its own crop, then the
// dominant face, then the annotated best frame.
func (b *BatchSummary) FaceFor(label Label) image.Image {
	if b == nil {
		return nil
	}
	if img := b.LabelFaces[label]; usable(img) {
		return img
	}
	if usable(b.DominantFace) {
		return b.DominantFace
	}
	if usable(b.Annotated) {
		return b.Annotated
	}
	return nil
}

// RoundConfidence rounds a probability to four decimal places.
func RoundConfidence(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func usable(img image.Image) bool {
	return img != nil && !img.Bounds().Empty()
}

// Usable reports whether img is non-nil with a non-empty area.
func Usable(img image.Image) bool {
	return usable(img)
}
