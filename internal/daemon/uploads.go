package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"emotrack/internal/analyzer"
	"emotrack/internal/emotion"
	"emotrack/internal/imaging"
	"emotrack/internal/logging"
	"emotrack/internal/media"
	"emotrack/internal/results"
	"emotrack/internal/services"
)

const defaultUploadSource = results.SourceUpload

var allowedExtensions = map[string]map[string]struct{}{
	results.MediaImage: {"jpg": {}, "jpeg": {}, "png": {}, "bmp": {}, "webp": {}},
	results.MediaVideo: {"mp4": {}, "mov": {}, "avi": {}, "mkv": {}, "webm": {}, "m4v": {}},
}

// AllowedExtension reports whether filename carries an extension accepted for
// mediaType.
func AllowedExtension(filename, mediaType string) bool {
	allowed, ok := allowedExtensions[mediaType]
	if !ok {
		return false
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return false
	}
	_, ok = allowed[ext]
	return ok
}

// UploadRequest describes one uploaded file to analyze and persist.
type UploadRequest struct {
	MediaType  string
	SourceType string
	Channel    string
	UserID     int64
	Filename   string
	Body       io.Reader
}

// UploadOutcome is the persisted result of an upload analysis.
type UploadOutcome struct {
	BatchID string
	Summary *emotion.BatchSummary
	Records []results.Record
}

// AnalyzeUpload stores the raw upload, analyzes it, writes one snapshot per
// detected label, and persists one record per label in a single transaction.
// Nothing is left on disk when the upload produces no records.
func (d *Daemon) AnalyzeUpload(ctx context.Context, req UploadRequest) (*UploadOutcome, error) {
	mediaType, err := normalizeMediaType(req.MediaType)
	if err != nil {
		return nil, err
	}
	if !AllowedExtension(req.Filename, mediaType) {
		return nil, services.Wrap(services.ErrValidation, "daemon", "analyze upload",
			fmt.Sprintf("unsupported file format for %s: %q", mediaType, req.Filename), nil)
	}
	source := strings.ToLower(strings.TrimSpace(req.SourceType))
	if source == "" {
		source = defaultUploadSource
	}
	logger := logging.WithContext(ctx, d.logger).With(
		logging.String(logging.FieldSource, source),
		logging.String("media_type", mediaType),
	)

	rawRel, err := d.media.SaveRaw(req.Body, req.Filename, source, d.cfg.MaxUploadBytes())
	if err != nil {
		return nil, err
	}
	rawAbs, err := d.media.Resolve(rawRel)
	if err != nil {
		d.removeFiles(logger, rawRel)
		return nil, services.Wrap(services.ErrStorageFailure, "daemon", "analyze upload", "resolve raw path", err)
	}

	summary, err := d.analyzeFile(ctx, mediaType, rawAbs, analyzer.SampleOptions{
		MaxFrames:  d.cfg.Batch.MaxFrames,
		SampleRate: d.cfg.Batch.SampleRate,
	})
	if err != nil {
		d.removeFiles(logger, rawRel)
		return nil, err
	}
	if summary.Counts.Len() == 0 {
		d.removeFiles(logger, rawRel)
		return nil, services.Wrap(services.ErrNoDetections, "daemon", "analyze upload", "no emotions detected in upload", nil)
	}

	batchID := strings.ReplaceAll(uuid.NewString(), "-", "")
	upload := results.Upload{
		BatchID:          batchID,
		UserID:           req.UserID,
		MediaType:        mediaType,
		SourceType:       source,
		Channel:          req.Channel,
		OriginalFilename: req.Filename,
		OriginalPath:     rawRel,
	}
	snapshots := make([]string, 0, summary.Counts.Len())
	records := make([]results.Record, 0, summary.Counts.Len())
	for _, label := range summary.Counts.Labels() {
		face := summary.FaceFor(label)
		if face == nil {
			d.removeFiles(logger, append(snapshots, rawRel)...)
			return nil, services.Wrap(services.ErrNoDetections, "daemon", "analyze upload",
				fmt.Sprintf("no representative image for %s", label), nil)
		}
		snapRel, err := d.media.SaveSnapshot(face, label, source)
		if err != nil {
			d.removeFiles(logger, append(snapshots, rawRel)...)
			return nil, err
		}
		snapshots = append(snapshots, snapRel)
		records = append(records, results.UploadRecord(upload, summary, label, snapRel))
	}

	saved, err := d.store.SaveBatch(ctx, records)
	if err != nil {
		d.removeFiles(logger, snapshots...)
		logging.ErrorWithContext(logger, "persist upload analysis failed", "upload_persist_failed",
			logging.Error(err),
			logging.String("batch_id", batchID),
		)
		return nil, err
	}
	logger.Info("upload analyzed",
		logging.String("batch_id", batchID),
		logging.String("dominant_emotion", string(summary.DominantLabel)),
		logging.Int("records", len(saved)),
		logging.Int("frames_analyzed", summary.FramesAnalyzed),
	)
	return &UploadOutcome{BatchID: batchID, Summary: summary, Records: saved}, nil
}

// Preview analyzes an upload without persisting anything. Videos are sampled
// with the preview frame budget.
func (d *Daemon) Preview(ctx context.Context, mediaType, filename string, body io.Reader) (*emotion.BatchSummary, error) {
	mediaType, err := normalizeMediaType(mediaType)
	if err != nil {
		return nil, err
	}
	limit := d.cfg.MaxUploadBytes()
	if mediaType == results.MediaImage {
		data, err := readLimited(body, limit)
		if err != nil {
			return nil, err
		}
		img, err := imaging.Decode(data)
		if err != nil {
			return nil, err
		}
		return d.analyzer.AnalyzeImage(img)
	}

	if !AllowedExtension(filename, mediaType) {
		filename = "preview.mp4"
	}
	tmp, err := os.CreateTemp("", "emotrack-preview-*"+filepath.Ext(filename))
	if err != nil {
		return nil, services.Wrap(services.ErrStorageFailure, "daemon", "preview", "create temp file", err)
	}
	defer os.Remove(tmp.Name())
	src := body
	if limit > 0 {
		src = io.LimitReader(body, limit+1)
	}
	written, err := io.Copy(tmp, src)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStorageFailure, "daemon", "preview", "write temp file", err)
	}
	if limit > 0 && written > limit {
		return nil, services.Wrap(services.ErrValidation, "daemon", "preview", filename, media.ErrTooLarge)
	}
	return d.analyzeFile(ctx, mediaType, tmp.Name(), analyzer.SampleOptions{
		MaxFrames:  d.cfg.Batch.PreviewMaxFrames,
		SampleRate: d.cfg.Batch.SampleRate,
	})
}

func (d *Daemon) analyzeFile(ctx context.Context, mediaType, path string, opts analyzer.SampleOptions) (*emotion.BatchSummary, error) {
	if mediaType == results.MediaImage {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, services.Wrap(services.ErrStorageFailure, "daemon", "read upload", "", err)
		}
		img, err := imaging.Decode(data)
		if err != nil {
			return nil, err
		}
		return d.analyzer.AnalyzeImage(img)
	}

	if d.openVideo == nil {
		return nil, services.Wrap(services.ErrConfiguration, "daemon", "analyze video", "video decoding is not available", nil)
	}
	src, err := d.openVideo(path)
	if err != nil {
		if errors.Is(err, services.ErrModelUnavailable) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrInvalidFrame, "daemon", "open video", "unreadable video", err)
	}
	defer src.Close()
	return d.analyzer.AnalyzeVideo(ctx, src, opts)
}

func (d *Daemon) removeFiles(logger *slog.Logger, rels ...string) {
	for _, rel := range rels {
		if rel == "" {
			continue
		}
		if err := d.media.Remove(rel); err != nil {
			logger.Warn("cleanup of stored file failed", logging.String("path", rel), logging.Error(err))
		}
	}
}

func normalizeMediaType(value string) (string, error) {
	mediaType := strings.ToLower(strings.TrimSpace(value))
	if mediaType == "" {
		mediaType = results.MediaImage
	}
	if _, ok := allowedExtensions[mediaType]; !ok {
		return "", services.Wrap(services.ErrValidation, "daemon", "media type",
			fmt.Sprintf("media_type must be %q or %q", results.MediaImage, results.MediaVideo), nil)
	}
	return mediaType, nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, services.Wrap(services.ErrInvalidFrame, "daemon", "read upload", "", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidFrame, "daemon", "read upload", "", err)
	}
	if int64(len(data)) > limit {
		return nil, services.Wrap(services.ErrValidation, "daemon", "read upload", "", media.ErrTooLarge)
	}
	return data, nil
}
