package livesession

import (
	"context"
	"errors"
	"time"

	"emotrack/internal/emotion"
	"emotrack/internal/logging"
	"emotrack/internal/metrics"
	"emotrack/internal/services"
)

// Reap evicts and finalizes sessions idle longer than their timeout as of now.
// Evicted summaries are flagged and returned so callers can persist them.
func (r *Registry) Reap(now time.Time) []*emotion.SessionSummary {
	r.mu.Lock()
	var idle []*Session
	for id, s := range r.sessions {
		timeout := s.cfg.IdleTimeout
		if timeout <= 0 {
			continue
		}
		if now.Sub(s.LastActivity()) >= timeout {
			idle = append(idle, s)
			delete(r.sessions, id)
		}
	}
	active := len(r.sessions)
	r.mu.Unlock()

	if len(idle) == 0 {
		return nil
	}
	metrics.SessionsActive.Set(float64(active))
	return r.finalizeAll(idle, metrics.OutcomeEvicted, "idle timeout")
}

// Drain removes and finalizes every session. Used at shutdown so open streams
// are closed cleanly.
func (r *Registry) Drain() []*emotion.SessionSummary {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if len(all) == 0 {
		return nil
	}
	metrics.SessionsActive.Set(0)
	return r.finalizeAll(all, metrics.OutcomeEvicted, "shutdown")
}

func (r *Registry) finalizeAll(sessions []*Session, outcome, reason string) []*emotion.SessionSummary {
	summaries := make([]*emotion.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summary, err := s.Finalize()
		if err != nil && !errors.Is(err, services.ErrStorageFailure) {
			metrics.SessionsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
			r.logger.Warn("evicted session could not be finalized",
				logging.String(logging.FieldSessionID, s.ID()),
				logging.Error(err),
			)
			continue
		}
		summary.Evicted = true
		summaries = append(summaries, summary)
		metrics.SessionsTotal.WithLabelValues(outcome).Inc()
		r.logger.Info("live session evicted",
			logging.String(logging.FieldSessionID, s.ID()),
			logging.String("reason", reason),
			logging.Int("frames", summary.FrameCount),
		)
	}
	return summaries
}

// RunReaper calls Reap every interval until ctx is done, handing each evicted
// summary to handle. A non-positive interval uses DefaultReapInterval.
func (r *Registry) RunReaper(ctx context.Context, interval time.Duration, handle func(*emotion.SessionSummary)) {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, summary := range r.Reap(r.clock()) {
				if handle != nil {
					handle(summary)
				}
			}
		}
	}
}
