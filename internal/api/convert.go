package api

import (
	"net/http"
	"path"
	"sort"
	"strings"

	"emotrack/internal/analyzer"
	"emotrack/internal/emotion"
	"emotrack/internal/livesession"
	"emotrack/internal/logging"
	"emotrack/internal/results"
	"emotrack/internal/services"
)

// MediaURL maps a root-relative stored path to its download URL. Empty paths
// yield an empty URL.
func MediaURL(rel string) string {
	rel = strings.TrimLeft(strings.TrimSpace(rel), "/")
	if rel == "" {
		return ""
	}
	return MediaPrefix + path.Clean(rel)
}

// StatusForError maps an error's kind to its HTTP status code.
func StatusForError(err error) int {
	switch services.KindOf(err) {
	case services.KindInvalidFrame, services.KindValidation:
		return http.StatusBadRequest
	case services.KindNoFaceDetected, services.KindNoDetections:
		return http.StatusUnprocessableEntity
	case services.KindSessionNotFound:
		return http.StatusNotFound
	case services.KindModelUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromError builds the error body for err.
func FromError(err error) ErrorResponse {
	if err == nil {
		return ErrorResponse{}
	}
	return ErrorResponse{
		Error:     err.Error(),
		Kind:      string(services.KindOf(err)),
		Retryable: services.Retryable(err),
	}
}

// FromModelMetadata converts analyzer metadata.
func FromModelMetadata(meta analyzer.Metadata) ModelMetadata {
	return ModelMetadata{
		Labels:         labelStrings(meta.Labels),
		WeightsPath:    meta.WeightsPath,
		HasModel:       meta.HasModel,
		HasCascade:     meta.HasCascade,
		Loaded:         meta.Loaded,
		StorageRoot:    meta.StorageRoot,
		RawSubdir:      meta.RawSubdir,
		SnapshotSubdir: meta.SnapshotSubdir,
	}
}

// FromStats converts results statistics.
func FromStats(stats results.Stats) Stats {
	return Stats{
		Analyses: stats.Analyses,
		ByLabel:  stats.ByLabel,
		BySource: stats.BySource,
	}
}

// FromSessionInfo converts a registry session view.
func FromSessionInfo(info livesession.Info) SessionInfo {
	return SessionInfo{
		SessionID:       info.SessionID,
		UserID:          info.UserID,
		Channel:         info.Channel,
		StartedAt:       info.StartedAt,
		LastActivity:    info.LastActivity,
		Frames:          info.FrameCount,
		Counts:          info.Counts,
		DominantEmotion: labelPtr(info.DominantLabel),
	}
}

// FromSessionInfos converts registry session views, oldest first.
func FromSessionInfos(infos []livesession.Info) []SessionInfo {
	out := make([]SessionInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, FromSessionInfo(info))
	}
	return out
}

// FromDetections converts classified faces.
func FromDetections(detections []emotion.Detection) []Detection {
	out := make([]Detection, 0, len(detections))
	for _, det := range detections {
		out = append(out, Detection{
			Label:      string(det.Label),
			Confidence: det.Confidence,
			Box: BoundingBox{
				X:      det.Box.X,
				Y:      det.Box.Y,
				Width:  det.Box.Width,
				Height: det.Box.Height,
			},
		})
	}
	return out
}

// FromFrameSummary converts a single-frame analysis. A nil summary yields an
// empty analysis.
func FromFrameSummary(summary *emotion.FrameSummary) FrameAnalysis {
	if summary == nil {
		return FrameAnalysis{Detections: []Detection{}}
	}
	out := FrameAnalysis{
		Counts:             summary.Counts,
		Detections:         FromDetections(summary.Detections),
		EmotionConfidences: confidenceMap(summary.LabelConfidence),
	}
	if summary.DominantLabel != "" {
		label := string(summary.DominantLabel)
		conf := summary.DominantConfidence
		out.DominantEmotion = &label
		out.Confidence = &conf
	}
	return out
}

// FromIngestResult converts the running session view returned by an ingest.
func FromIngestResult(result livesession.IngestResult) *SessionState {
	state := &SessionState{
		SessionID:          result.SessionID,
		Counts:             result.Counts,
		Frames:             result.FrameCount,
		DominantEmotion:    labelPtr(result.DominantLabel),
		Confidence:         result.Confidence,
		SnapshotPath:       result.SnapshotPath,
		EmotionConfidences: confidenceMap(result.BestConfidence),
	}
	if result.SnapshotPath != nil {
		url := MediaURL(*result.SnapshotPath)
		state.SnapshotURL = &url
	}
	return state
}

// FromSessionSummary converts a finalized live session.
func FromSessionSummary(summary *emotion.SessionSummary) SessionSummary {
	if summary == nil {
		return SessionSummary{}
	}
	snapshots := make(map[string]string, len(summary.SnapshotPaths))
	for label, rel := range summary.SnapshotPaths {
		snapshots[string(label)] = rel
	}
	return SessionSummary{
		SessionID:          summary.SessionID,
		UserID:             summary.UserID,
		Channel:            summary.Channel,
		Counts:             summary.Counts,
		DominantEmotion:    labelPtr(summary.DominantLabel),
		Confidence:         summary.Confidence,
		EmotionConfidences: confidenceMap(summary.BestConfidence),
		EmotionSnapshots:   snapshots,
		SnapshotPath:       summary.PrimarySnapshotPath,
		StreamPath:         summary.VideoStreamPath,
		DurationSeconds:    summary.DurationSeconds,
		Frames:             summary.FrameCount,
		StartedAt:          summary.StartedAt,
		FinishedAt:         summary.FinishedAt,
		Evicted:            summary.Evicted,
	}
}

// FromStop combines a finalized summary with the rows persisted from it.
func FromStop(summary *emotion.SessionSummary, records []results.Record) StopResponse {
	resp := StopResponse{
		SessionSummary: FromSessionSummary(summary),
		Analyses:       FromRecords(records),
	}
	if len(resp.Analyses) > 0 {
		first := resp.Analyses[0]
		resp.Analysis = &first
	}
	return resp
}

// FromRecord converts a persisted analysis.
func FromRecord(rec results.Record) Analysis {
	detections := FromDetections(rec.Detail.Detections)
	return Analysis{
		ID:               rec.ID,
		BatchID:          rec.BatchID,
		UserID:           rec.UserID,
		MediaType:        rec.MediaType,
		SourceType:       rec.SourceType,
		Channel:          rec.Channel,
		OriginalFilename: rec.OriginalFilename,
		OriginalPath:     rec.OriginalPath,
		OriginalURL:      MediaURL(rec.OriginalPath),
		SnapshotPath:     rec.SnapshotPath,
		SnapshotURL:      MediaURL(rec.SnapshotPath),
		DominantEmotion:  string(rec.DominantEmotion),
		Confidence:       rec.Confidence,
		Counts:           rec.Counts,
		Detections:       detections,
		TotalCounts:      rec.Detail.TotalCounts,
		CreatedAt:        rec.CreatedAt,
	}
}

// FromRecords converts persisted analyses, keeping their order.
func FromRecords(records []results.Record) []Analysis {
	out := make([]Analysis, 0, len(records))
	for _, rec := range records {
		out = append(out, FromRecord(rec))
	}
	return out
}

// FromUpload builds the analyze response for an upload batch.
func FromUpload(batchID string, summary *emotion.BatchSummary, records []results.Record) AnalyzeResponse {
	resp := AnalyzeResponse{
		BatchID:  batchID,
		Analyses: FromRecords(records),
	}
	if summary != nil {
		resp.DominantEmotion = string(summary.DominantLabel)
		resp.Confidence = summary.Confidence
		resp.Counts = summary.Counts
		resp.FramesSampled = summary.FramesSampled
		resp.FramesAnalyzed = summary.FramesAnalyzed
	}
	if len(resp.Analyses) > 0 {
		first := resp.Analyses[0]
		resp.Analysis = &first
	}
	return resp
}

// FromPreview converts a batch analysis that will not be persisted.
func FromPreview(mediaType string, summary *emotion.BatchSummary) PreviewResponse {
	resp := PreviewResponse{MediaType: mediaType, Detections: []Detection{}}
	if summary == nil {
		return resp
	}
	resp.DominantEmotion = string(summary.DominantLabel)
	resp.Confidence = summary.Confidence
	resp.Counts = summary.Counts
	resp.Detections = FromDetections(summary.Detections)
	resp.FramesSampled = summary.FramesSampled
	resp.FramesAnalyzed = summary.FramesAnalyzed
	return resp
}

// FromLogEvents converts hub events for the log tail endpoint.
func FromLogEvents(events []logging.LogEvent) []LogEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		details := make([]DetailField, 0, len(evt.Details))
		for _, detail := range evt.Details {
			details = append(details, DetailField{Label: detail.Label, Value: detail.Value})
		}
		out = append(out, LogEvent{
			Sequence:      evt.Sequence,
			Timestamp:     evt.Timestamp,
			Level:         evt.Level,
			Message:       evt.Message,
			Component:     evt.Component,
			SessionID:     evt.SessionID,
			UserID:        evt.UserID,
			Channel:       evt.Channel,
			CorrelationID: evt.CorrelationID,
			Fields:        evt.Fields,
			Details:       details,
		})
	}
	return out
}

func labelPtr(label *emotion.Label) *string {
	if label == nil {
		return nil
	}
	value := string(*label)
	return &value
}

func labelStrings(labels []emotion.Label) []string {
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		out = append(out, string(label))
	}
	return out
}

func confidenceMap(in map[emotion.Label]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for label, conf := range in {
		out[string(label)] = conf
	}
	return out
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
