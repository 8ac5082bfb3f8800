package livesession

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"emotrack/internal/emotion"
	"emotrack/internal/logging"
	"emotrack/internal/metrics"
	"emotrack/internal/services"
)

const finalSuffix = "final"

// IngestResult is the running view of a session returned after each frame.
type IngestResult struct {
	SessionID     string         `json:"session_id"`
	Counts        emotion.Counts `json:"counts"`
	FrameCount    int            `json:"frames"`
	DominantLabel *emotion.Label `json:"dominant_emotion"`
	Confidence    *float64       `json:"confidence"`
	SnapshotPath  *string        `json:"snapshot_path"`

	// BestConfidence is the highest confidence seen per label so far.
	BestConfidence map[emotion.Label]float64 `json:"emotion_confidences"`
	Detections     []emotion.Detection       `json:"detections"`
}

// Info is a point-in-time description of a registered session.
type Info struct {
	SessionID     string         `json:"session_id"`
	UserID        int64          `json:"user_id"`
	Channel       string         `json:"channel"`
	StartedAt     time.Time      `json:"started_at"`
	LastActivity  time.Time      `json:"last_activity"`
	FrameCount    int            `json:"frames"`
	Counts        emotion.Counts `json:"counts"`
	DominantLabel *emotion.Label `json:"dominant_emotion"`
}

// Session is one live capture. Frames and crops passed to Ingest are retained
// until Finalize for snapshot backfill and must not be mutated by the caller.
type Session struct {
	id        string
	userID    int64
	channel   string
	startedAt time.Time
	cfg       Config

	store     SnapshotStore
	newWriter VideoWriterFactory
	clock     func() time.Time
	logger    *slog.Logger

	// unix nanoseconds; read by the reaper without taking mu
	lastActivity atomic.Int64

	mu               sync.Mutex
	finalized        bool
	counts           emotion.Counts
	bestConfidence   map[emotion.Label]float64
	latestLabel      emotion.Label
	latestConfidence *float64
	snapshots        map[emotion.Label]string
	currentSnapshot  string
	frameCount       int
	lastSnapshotAt   time.Time
	writer           VideoWriter
	frameSize        image.Point
	streamRel        string
	bestFaces        map[emotion.Label]image.Image
	bestFaceConf     map[emotion.Label]float64
	lastAnnotated    image.Image
	lastFrame        image.Image
}

func newSession(id string, userID int64, channel string, cfg Config, opts Options, clock func() time.Time) *Session {
	s := &Session{
		id:             id,
		userID:         userID,
		channel:        channel,
		startedAt:      clock(),
		cfg:            cfg,
		store:          opts.Store,
		newWriter:      opts.NewVideoWriter,
		clock:          clock,
		bestConfidence: make(map[emotion.Label]float64),
		snapshots:      make(map[emotion.Label]string),
		bestFaces:      make(map[emotion.Label]image.Image),
		bestFaceConf:   make(map[emotion.Label]float64),
	}
	s.logger = logging.NewComponentLogger(opts.Logger, "livesession").With(
		logging.String(logging.FieldSessionID, id),
		logging.String(logging.FieldChannel, channel),
	)
	s.touch(s.startedAt)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// UserID returns the owning user.
func (s *Session) UserID() int64 { return s.userID }

// Channel returns the source tag supplied at creation.
func (s *Session) Channel() string { return s.channel }

// StartedAt returns the creation time.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// LastActivity returns the time of the most recent creation or ingest.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *Session) touch(t time.Time) {
	s.lastActivity.Store(t.UnixNano())
}

// Ingest appends frame to the session video and folds summary into the
// running state. faces overrides summary.LabelFaces as the snapshot source
// when non-nil. A nil summary counts the frame without detections.
//
// Invalid frames and video failures leave the session untouched. A snapshot
// write failure keeps the accumulated state and returns the populated result
// alongside a storage error.
func (s *Session) Ingest(frame image.Image, summary *emotion.FrameSummary, faces map[emotion.Label]image.Image) (IngestResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return IngestResult{}, services.Wrap(services.ErrSessionNotFound, "livesession", "ingest", "session already finalized", nil)
	}
	if !emotion.Usable(frame) {
		return IngestResult{}, services.Wrap(services.ErrInvalidFrame, "livesession", "ingest", "frame is empty", nil)
	}
	if summary == nil {
		summary = &emotion.FrameSummary{}
	}
	if faces == nil {
		faces = summary.LabelFaces
	}

	size := frame.Bounds().Size()
	if s.writer != nil && size != s.frameSize {
		return IngestResult{}, services.Wrap(services.ErrInvalidFrame, "livesession", "ingest",
			fmt.Sprintf("frame is %dx%d, session stream is %dx%d", size.X, size.Y, s.frameSize.X, s.frameSize.Y), nil)
	}
	if err := s.ensureWriter(size); err != nil {
		return IngestResult{}, err
	}
	if err := s.writer.Write(frame); err != nil {
		return IngestResult{}, services.Wrap(services.ErrStorageFailure, "livesession", "write frame", "", err)
	}

	now := s.clock()
	s.touch(now)
	s.frameCount++
	s.counts.Merge(summary.Counts)
	if summary.DominantLabel != "" {
		s.latestLabel = summary.DominantLabel
		conf := summary.DominantConfidence
		s.latestConfidence = &conf
	}
	for label, conf := range summary.LabelConfidence {
		if existing, ok := s.bestConfidence[label]; !ok || conf > existing {
			s.bestConfidence[label] = conf
		}
	}
	for label, face := range faces {
		if !emotion.Usable(face) {
			continue
		}
		conf := summary.LabelConfidence[label]
		if existing, ok := s.bestFaceConf[label]; ok && conf < existing {
			continue
		}
		s.bestFaces[label] = face
		s.bestFaceConf[label] = conf
	}
	if emotion.Usable(summary.Annotated) {
		s.lastAnnotated = summary.Annotated
	}
	s.lastFrame = frame
	metrics.FramesIngested.Inc()

	snapErr := s.captureSnapshots(now, summary.DominantLabel, faces)

	result := s.resultLocked()
	result.Detections = summary.Detections
	return result, snapErr
}

func (s *Session) ensureWriter(size image.Point) error {
	if s.writer != nil {
		return nil
	}
	abs, rel, err := s.store.StreamPath(s.id, s.startedAt)
	if err != nil {
		return services.Wrap(services.ErrStorageFailure, "livesession", "open stream", "", err)
	}
	writer, err := s.newWriter(abs, s.cfg.VideoFPS, size.X, size.Y)
	if err != nil {
		return services.Wrap(services.ErrStorageFailure, "livesession", "open stream", rel, err)
	}
	s.writer = writer
	s.frameSize = size
	s.streamRel = rel
	s.logger.Debug("session stream opened",
		logging.String("stream_path", rel),
		logging.Int("width", size.X),
		logging.Int("height", size.Y),
	)
	return nil
}

// captureSnapshots writes one snapshot per usable crop once the throttle
// interval has elapsed. The throttle clock resets only when something was
// written.
func (s *Session) captureSnapshots(now time.Time, dominant emotion.Label, faces map[emotion.Label]image.Image) error {
	if !s.lastSnapshotAt.IsZero() && now.Sub(s.lastSnapshotAt) < s.cfg.SnapshotInterval {
		return nil
	}
	suffix := fmt.Sprintf("%d", now.Unix())
	written := 0
	var errs []error
	for _, label := range emotion.Labels() {
		face, ok := faces[label]
		if !ok || !emotion.Usable(face) {
			continue
		}
		rel, err := s.store.SaveLabelSnapshot(s.id, label, face, suffix)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
			continue
		}
		written++
		s.snapshots[label] = rel
		if label == dominant {
			s.currentSnapshot = rel
		}
	}
	if written > 0 {
		s.lastSnapshotAt = now
		metrics.SnapshotsWritten.Add(float64(written))
	}
	if len(errs) > 0 {
		err := errors.Join(errs...)
		logging.WarnWithContext(s.logger, "snapshot write failed", "snapshot_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions under the storage root"),
			logging.String(logging.FieldImpact, "session counts are kept; snapshot retried next interval"),
		)
		return services.Wrap(services.ErrStorageFailure, "livesession", "snapshot", "", err)
	}
	return nil
}

func (s *Session) resultLocked() IngestResult {
	result := IngestResult{
		SessionID:      s.id,
		Counts:         s.counts.Clone(),
		FrameCount:     s.frameCount,
		BestConfidence: maps.Clone(s.bestConfidence),
	}
	if s.latestLabel != "" {
		label := s.latestLabel
		result.DominantLabel = &label
	}
	if s.latestConfidence != nil {
		conf := *s.latestConfidence
		result.Confidence = &conf
	}
	if s.currentSnapshot != "" {
		path := s.currentSnapshot
		result.SnapshotPath = &path
	}
	return result
}

// Info reports the session's current state.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{
		SessionID:    s.id,
		UserID:       s.userID,
		Channel:      s.channel,
		StartedAt:    s.startedAt,
		LastActivity: s.LastActivity(),
		FrameCount:   s.frameCount,
		Counts:       s.counts.Clone(),
	}
	if label, _, ok := s.counts.Dominant(); ok {
		info.DominantLabel = &label
	}
	return info
}

// Finalize closes the session stream, backfills missing snapshots, and returns
// the session summary. The session is inert afterwards; a second call fails
// with a not-found error. Storage problems during finalization are returned
// alongside the summary.
func (s *Session) Finalize() (*emotion.SessionSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return nil, services.Wrap(services.ErrSessionNotFound, "livesession", "finalize", "session already finalized", nil)
	}
	s.finalized = true

	var errs []error
	if s.writer != nil {
		if err := s.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stream: %w", err))
		}
		s.writer = nil
		if s.frameCount == 0 && s.streamRel != "" {
			if err := s.store.Remove(s.streamRel); err != nil {
				errs = append(errs, fmt.Errorf("remove empty stream: %w", err))
			}
			s.streamRel = ""
		}
	}

	for _, label := range s.counts.Labels() {
		if _, ok := s.snapshots[label]; ok {
			continue
		}
		img := s.backfillImage(label)
		if img == nil {
			errs = append(errs, fmt.Errorf("%s: no image available for snapshot", label))
			continue
		}
		rel, err := s.store.SaveLabelSnapshot(s.id, label, img, finalSuffix)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", label, err))
			continue
		}
		s.snapshots[label] = rel
		metrics.SnapshotsWritten.Inc()
	}

	finished := s.clock()
	summary := &emotion.SessionSummary{
		SessionID:       s.id,
		UserID:          s.userID,
		Channel:         s.channel,
		Counts:          s.counts.Clone(),
		BestConfidence:  maps.Clone(s.bestConfidence),
		SnapshotPaths:   maps.Clone(s.snapshots),
		DurationSeconds: finished.Sub(s.startedAt).Seconds(),
		FrameCount:      s.frameCount,
		StartedAt:       s.startedAt,
		FinishedAt:      finished,
	}
	if s.latestConfidence != nil {
		conf := *s.latestConfidence
		summary.Confidence = &conf
	}
	dominant, _, hasDominant := s.counts.Dominant()
	if hasDominant {
		summary.DominantLabel = &dominant
	}
	primary := s.currentSnapshot
	if primary == "" && hasDominant {
		primary = s.snapshots[dominant]
	}
	if primary != "" {
		summary.PrimarySnapshotPath = &primary
	}
	if s.frameCount > 0 && s.streamRel != "" {
		stream := s.streamRel
		summary.VideoStreamPath = &stream
	}

	// release retained frames
	s.bestFaces = nil
	s.lastAnnotated = nil
	s.lastFrame = nil

	s.logger.Info("live session finalized",
		logging.Int("frames", summary.FrameCount),
		logging.Int("labels", summary.Counts.Len()),
		logging.Float64("duration_seconds", summary.DurationSeconds),
	)

	if len(errs) > 0 {
		err := errors.Join(errs...)
		logging.WarnWithContext(s.logger, "session finalized with storage errors", "session_finalize_degraded",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions under the storage root"),
			logging.String(logging.FieldImpact, "some snapshots or the session stream may be missing"),
		)
		return summary, services.Wrap(services.ErrStorageFailure, "livesession", "finalize", "", err)
	}
	return summary, nil
}

// backfillImage picks the best crop seen for label, then the last annotated
// frame, then the last raw frame.
func (s *Session) backfillImage(label emotion.Label) image.Image {
	if img := s.bestFaces[label]; emotion.Usable(img) {
		return img
	}
	if emotion.Usable(s.lastAnnotated) {
		return s.lastAnnotated
	}
	if emotion.Usable(s.lastFrame) {
		return s.lastFrame
	}
	return nil
}
