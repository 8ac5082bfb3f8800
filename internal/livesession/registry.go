package livesession

import (
	"image"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"emotrack/internal/emotion"
	"emotrack/internal/logging"
	"emotrack/internal/metrics"
	"emotrack/internal/services"
)

// Registry tracks live sessions by id. Its lock guards only the map; session
// work always happens after the lock is released.
type Registry struct {
	opts   Options
	cfg    Config
	clock  func() time.Time
	newID  func() string
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry builds an empty registry.
func NewRegistry(opts Options) (*Registry, error) {
	if opts.Store == nil {
		return nil, services.Wrap(services.ErrConfiguration, "livesession", "new registry", "snapshot store is required", nil)
	}
	if opts.NewVideoWriter == nil {
		return nil, services.Wrap(services.ErrConfiguration, "livesession", "new registry", "video writer factory is required", nil)
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") }
	}
	return &Registry{
		opts:     opts,
		cfg:      opts.Config.merge(DefaultConfig()),
		clock:    clock,
		newID:    newID,
		logger:   logging.NewComponentLogger(opts.Logger, "livesession"),
		sessions: make(map[string]*Session),
	}, nil
}

// Config returns the registry-wide session defaults.
func (r *Registry) Config() Config {
	return r.cfg
}

// Create registers a new session. Zero fields in cfg take registry defaults.
func (r *Registry) Create(userID int64, channel string, cfg Config) *Session {
	cfg = cfg.merge(r.cfg)

	r.mu.Lock()
	id := r.newID()
	for {
		if _, taken := r.sessions[id]; !taken {
			break
		}
		id = r.newID()
	}
	session := newSession(id, userID, channel, cfg, r.opts, r.clock)
	r.sessions[id] = session
	active := len(r.sessions)
	r.mu.Unlock()

	metrics.SessionsActive.Set(float64(active))
	session.logger.Info("live session started", logging.Int64(logging.FieldUserID, userID))
	return session
}

// Get returns the session registered under id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	session, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, services.Wrap(services.ErrSessionNotFound, "livesession", "get", id, nil)
	}
	return session, nil
}

// Remove unregisters and returns the session under id. Exactly one of any
// number of concurrent callers succeeds; the rest get a not-found error.
func (r *Registry) Remove(id string) (*Session, error) {
	r.mu.Lock()
	session, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	active := len(r.sessions)
	r.mu.Unlock()
	if !ok {
		return nil, services.Wrap(services.ErrSessionNotFound, "livesession", "remove", id, nil)
	}
	metrics.SessionsActive.Set(float64(active))
	return session, nil
}

// Ingest routes a frame to the session registered under id.
func (r *Registry) Ingest(id string, frame image.Image, summary *emotion.FrameSummary, faces map[emotion.Label]image.Image) (IngestResult, error) {
	session, err := r.Get(id)
	if err != nil {
		return IngestResult{}, err
	}
	return session.Ingest(frame, summary, faces)
}

// Stop removes and finalizes the session under id. The summary may accompany a
// storage error; it is nil only when the session was not found.
func (r *Registry) Stop(id string) (*emotion.SessionSummary, error) {
	session, err := r.Remove(id)
	if err != nil {
		return nil, err
	}
	summary, err := session.Finalize()
	outcome := metrics.OutcomeStopped
	if summary == nil {
		outcome = metrics.OutcomeFailed
	}
	metrics.SessionsTotal.WithLabelValues(outcome).Inc()
	return summary, err
}

// List describes every registered session, oldest first.
func (r *Registry) List() []Info {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].StartedAt.Equal(infos[j].StartedAt) {
			return infos[i].SessionID < infos[j].SessionID
		}
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
