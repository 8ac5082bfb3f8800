package daemon

import (
	"context"
	"errors"
	"strings"

	"emotrack/internal/emotion"
	"emotrack/internal/livesession"
	"emotrack/internal/logging"
	"emotrack/internal/results"
	"emotrack/internal/services"
)

const defaultLiveChannel = "webcam-live"

// CreateSession registers a live session for userID.
func (d *Daemon) CreateSession(ctx context.Context, userID int64, channel string) livesession.Info {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = defaultLiveChannel
	}
	session := d.registry.Create(userID, channel, d.registry.Config())
	info := session.Info()
	logging.WithContext(ctx, d.logger).Info("live session started",
		logging.String(logging.FieldSessionID, info.SessionID),
		logging.Int64(logging.FieldUserID, userID),
		logging.String(logging.FieldChannel, channel),
	)
	return info
}

// FrameOutcome is the result of analyzing one frame and, when a session was
// named, folding it into that session.
type FrameOutcome struct {
	Summary *emotion.FrameSummary
	Session *livesession.IngestResult
	// Warning is a storage problem that did not prevent the ingest.
	Warning error
}

// IngestFrame analyzes an encoded frame and appends it to the session. An
// unknown session is rejected before the model runs, and analysis errors are
// returned before the session is touched. A storage failure while writing
// snapshots is reported as a warning alongside the updated session.
func (d *Daemon) IngestFrame(ctx context.Context, sessionID string, data []byte) (*FrameOutcome, error) {
	if sessionID != "" {
		if _, err := d.registry.Get(sessionID); err != nil {
			return nil, err
		}
	}
	summary, frame, err := d.analyzer.AnalyzeBytes(data)
	if err != nil {
		return nil, err
	}
	outcome := &FrameOutcome{Summary: summary}
	if sessionID == "" {
		return outcome, nil
	}
	result, err := d.registry.Ingest(sessionID, frame, summary, nil)
	if err != nil && !(errors.Is(err, services.ErrStorageFailure) && result.SessionID != "") {
		return nil, err
	}
	outcome.Session = &result
	if err != nil {
		outcome.Warning = err
		logging.WarnWithContext(logging.WithContext(ctx, d.logger), "frame ingested with storage warning", "frame_ingest_degraded",
			logging.String(logging.FieldSessionID, sessionID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "counts updated; snapshot not written"),
		)
	}
	return outcome, nil
}

// StopSession finalizes the session and persists its per-label analyses. The
// summary is returned even when persistence fails.
func (d *Daemon) StopSession(ctx context.Context, sessionID string) (*emotion.SessionSummary, []results.Record, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, nil, services.Wrap(services.ErrValidation, "daemon", "stop session", "session id is required", nil)
	}
	summary, err := d.registry.Stop(sessionID)
	if summary == nil {
		return nil, nil, err
	}
	logger := logging.WithContext(ctx, d.logger).With(logging.String(logging.FieldSessionID, sessionID))
	if err != nil {
		logging.WarnWithContext(logger, "session finalized with storage errors", "session_stop_degraded",
			logging.Error(err),
			logging.String(logging.FieldImpact, "summary returned; some snapshots may be missing"),
		)
	}
	records := d.persistSummary(ctx, summary)
	return summary, records, nil
}

// Sessions lists active live sessions.
func (d *Daemon) Sessions() []livesession.Info {
	return d.registry.List()
}
