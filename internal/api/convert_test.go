package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"emotrack/internal/api"
	"emotrack/internal/emotion"
	"emotrack/internal/livesession"
	"emotrack/internal/results"
	"emotrack/internal/services"
)

func TestStatusForError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid frame", services.Wrap(services.ErrInvalidFrame, "analyzer", "analyze", "", nil), http.StatusBadRequest},
		{"validation", services.Wrap(services.ErrValidation, "daemon", "upload", "", nil), http.StatusBadRequest},
		{"no face", services.Wrap(services.ErrNoFaceDetected, "analyzer", "detect", "", nil), http.StatusUnprocessableEntity},
		{"no detections", services.Wrap(services.ErrNoDetections, "analyzer", "combine", "", nil), http.StatusUnprocessableEntity},
		{"not found", services.Wrap(services.ErrSessionNotFound, "livesession", "stop", "", nil), http.StatusNotFound},
		{"model", services.Wrap(services.ErrModelUnavailable, "analyzer", "load", "", nil), http.StatusServiceUnavailable},
		{"storage", services.Wrap(services.ErrStorageFailure, "media", "snapshot", "", nil), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := api.StatusForError(tc.err); got != tc.status {
				t.Fatalf("status = %d, want %d", got, tc.status)
			}
		})
	}
}

func TestFromErrorCarriesKindAndRetry(t *testing.T) {
	resp := api.FromError(services.Wrap(services.ErrModelUnavailable, "analyzer", "load model", "missing weights", nil))
	if resp.Kind != "model_unavailable" {
		t.Fatalf("kind = %q", resp.Kind)
	}
	if resp.Retryable {
		t.Fatal("model errors must not be retryable")
	}
	if !strings.Contains(resp.Error, "missing weights") {
		t.Fatalf("unexpected message %q", resp.Error)
	}

	resp = api.FromError(services.Wrap(services.ErrNoFaceDetected, "analyzer", "detect faces", "", nil))
	if !resp.Retryable {
		t.Fatal("no-face errors should be retryable")
	}
}

func TestMediaURL(t *testing.T) {
	if got := api.MediaURL("emotion_class/happy/a.jpg"); got != "/api/media/emotion_class/happy/a.jpg" {
		t.Fatalf("url = %q", got)
	}
	if got := api.MediaURL("/raw//x.png"); got != "/api/media/raw/x.png" {
		t.Fatalf("url = %q", got)
	}
	if got := api.MediaURL("  "); got != "" {
		t.Fatalf("expected empty url, got %q", got)
	}
}

func TestFromFrameSummaryWithoutDominant(t *testing.T) {
	out := api.FromFrameSummary(nil)
	if out.DominantEmotion != nil || out.Confidence != nil {
		t.Fatal("nil summary should have no dominant emotion")
	}
	if out.Detections == nil {
		t.Fatal("detections should encode as an empty list")
	}
	payload, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(payload), `"dominant_emotion":null`) {
		t.Fatalf("unexpected payload %s", payload)
	}
}

func TestFromFrameSummaryKeepsCountOrder(t *testing.T) {
	summary := &emotion.FrameSummary{
		DominantLabel:      emotion.Label("Sad"),
		DominantConfidence: 0.7,
		Counts:             emotion.NewCounts("Sad", "Happy", "Sad"),
		Detections: []emotion.Detection{
			{Label: "Sad", Confidence: 0.7, Box: emotion.BoundingBox{X: 1, Y: 2, Width: 3, Height: 4}},
		},
		LabelConfidence: map[emotion.Label]float64{"Sad": 0.7, "Happy": 0.4},
	}
	out := api.FromFrameSummary(summary)
	if out.DominantEmotion == nil || *out.DominantEmotion != "Sad" {
		t.Fatalf("dominant = %v", out.DominantEmotion)
	}
	payload, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(payload), `"counts":{"Sad":2,"Happy":1}`) {
		t.Fatalf("counts not in insertion order: %s", payload)
	}
	if !strings.Contains(string(payload), `"box":{"x":1,"y":2,"width":3,"height":4}`) {
		t.Fatalf("unexpected box encoding: %s", payload)
	}
}

func TestFromIngestResultAddsSnapshotURL(t *testing.T) {
	label := emotion.Label("Happy")
	conf := 0.9
	rel := "emotion_class/happy/happy_abc_1.jpg"
	state := api.FromIngestResult(livesession.IngestResult{
		SessionID:      "abc",
		Counts:         emotion.NewCounts("Happy"),
		FrameCount:     1,
		DominantLabel:  &label,
		Confidence:     &conf,
		SnapshotPath:   &rel,
		BestConfidence: map[emotion.Label]float64{"Happy": 0.9},
	})
	if state.SnapshotURL == nil || *state.SnapshotURL != "/api/media/"+rel {
		t.Fatalf("snapshot url = %v", state.SnapshotURL)
	}
	if state.EmotionConfidences["Happy"] != 0.9 {
		t.Fatalf("confidences = %v", state.EmotionConfidences)
	}
}

func TestFromStopPromotesFirstAnalysis(t *testing.T) {
	stream := "session_stream/session_x.mp4"
	summary := &emotion.SessionSummary{
		SessionID:       "x",
		Counts:          emotion.NewCounts("Happy"),
		FrameCount:      1,
		VideoStreamPath: &stream,
		FinishedAt:      time.Unix(10, 0).UTC(),
	}
	records := []results.Record{{
		ID:              7,
		BatchID:         "x",
		MediaType:       results.MediaVideo,
		SourceType:      results.SourceWebcamLive,
		OriginalPath:    stream,
		SnapshotPath:    "emotion_class/happy/happy_x_final.jpg",
		DominantEmotion: "Happy",
		Confidence:      0.8,
	}}
	resp := api.FromStop(summary, records)
	if resp.StreamPath == nil || *resp.StreamPath != stream {
		t.Fatalf("stream path = %v", resp.StreamPath)
	}
	if resp.Analysis == nil || resp.Analysis.ID != 7 {
		t.Fatalf("analysis = %+v", resp.Analysis)
	}
	if resp.Analysis.OriginalURL != "/api/media/"+stream {
		t.Fatalf("original url = %q", resp.Analysis.OriginalURL)
	}

	empty := api.FromStop(summary, nil)
	if empty.Analysis != nil || empty.Analyses == nil {
		t.Fatalf("expected empty analyses list, got %+v", empty)
	}
}
