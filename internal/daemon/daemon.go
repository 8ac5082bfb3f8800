package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"

	"emotrack/internal/analyzer"
	"emotrack/internal/config"
	"emotrack/internal/emotion"
	"emotrack/internal/livesession"
	"emotrack/internal/logging"
	"emotrack/internal/media"
	"emotrack/internal/metrics"
	"emotrack/internal/results"
	"emotrack/internal/services"
)

// VideoOpener opens a stored video for sequential frame reads.
type VideoOpener func(path string) (analyzer.FrameSource, error)

// Options wires a Daemon to its collaborators.
type Options struct {
	Config         *config.Config
	Store          *results.Store
	Media          *media.Store
	Analyzer       *analyzer.Analyzer
	NewVideoWriter livesession.VideoWriterFactory
	OpenVideo      VideoOpener
	Logger         *slog.Logger
	LogHub         *logging.StreamHub
	// Clock overrides time.Now for the session registry, mainly for tests.
	Clock func() time.Time
}

// Daemon owns the live session registry and the HTTP API, and enforces
// single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *results.Store
	media     *media.Store
	analyzer  *analyzer.Analyzer
	registry  *livesession.Registry
	openVideo VideoOpener
	logHub    *logging.StreamHub
	summaries *lru.Cache[string, *emotion.SessionSummary]
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running        bool
	PID            int
	StartedAt      time.Time
	ActiveSessions int
	DatabasePath   string
	LockFilePath   string
	Model          analyzer.Metadata
	Stats          *results.Stats
}

// New constructs a daemon with initialized dependencies.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Store == nil || opts.Media == nil || opts.Analyzer == nil {
		return nil, errors.New("daemon requires config, results store, media store, and analyzer")
	}
	if opts.NewVideoWriter == nil {
		return nil, errors.New("daemon requires a video writer factory")
	}
	cfg := opts.Config
	logger := logging.NewComponentLogger(opts.Logger, "daemon")

	registry, err := livesession.NewRegistry(livesession.Options{
		Store:          opts.Media,
		NewVideoWriter: opts.NewVideoWriter,
		Config: livesession.Config{
			SnapshotInterval: cfg.SnapshotInterval(),
			VideoFPS:         cfg.Session.VideoFPS,
			IdleTimeout:      cfg.IdleTimeout(),
		},
		Logger: opts.Logger,
		Clock:  opts.Clock,
	})
	if err != nil {
		return nil, fmt.Errorf("create session registry: %w", err)
	}

	entries := cfg.Cache.SummaryEntries
	if entries <= 0 {
		entries = 1
	}
	cache, err := lru.New[string, *emotion.SessionSummary](entries)
	if err != nil {
		return nil, fmt.Errorf("create summary cache: %w", err)
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:       cfg,
		logger:    logger,
		store:     opts.Store,
		media:     opts.Media,
		analyzer:  opts.Analyzer,
		registry:  registry,
		openVideo: opts.OpenVideo,
		logHub:    opts.LogHub,
		summaries: cache,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, opts.Logger)
	return d, nil
}

// Start acquires the daemon lock, starts the idle-session reaper, and begins
// serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another emotrack daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel
	d.startedAt = time.Now()

	if d.cfg.IdleTimeout() > 0 {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.registry.RunReaper(runCtx, d.cfg.ReapInterval(), func(summary *emotion.SessionSummary) {
				d.persistSummary(context.Background(), summary)
			})
		}()
	}

	d.running.Store(true)
	d.logger.Info("emotrack daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api_address", d.api.address()),
		logging.Duration("idle_timeout", d.cfg.IdleTimeout()),
	)
	return nil
}

// Stop stops the API and reaper, finalizes every open session, and releases
// the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.wg.Wait()

	drained := d.registry.Drain()
	for _, summary := range drained {
		d.persistSummary(context.Background(), summary)
	}

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("emotrack daemon stopped", logging.Int("sessions_drained", len(drained)))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Handler returns the HTTP API handler.
func (d *Daemon) Handler() http.Handler {
	return d.api.handler
}

// Registry exposes the live session registry.
func (d *Daemon) Registry() *livesession.Registry {
	return d.registry
}

// Addr returns the address the API is listening on, or "" before Start.
func (d *Daemon) Addr() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:        d.running.Load(),
		PID:            os.Getpid(),
		StartedAt:      d.startedAt,
		ActiveSessions: d.registry.Len(),
		DatabasePath:   d.store.Path(),
		LockFilePath:   d.lockPath,
		Model:          d.ModelMetadata(),
	}
	stats, err := d.store.Stats(ctx, results.Filter{})
	if err != nil {
		d.logger.Warn("stats lookup failed", logging.Error(err))
	} else {
		status.Stats = &stats
	}
	return status
}

// ModelMetadata reports the label set, model artifact presence, and the
// storage layout.
func (d *Daemon) ModelMetadata() analyzer.Metadata {
	meta := d.analyzer.ModelMetadata()
	layout := d.media.Layout()
	meta.StorageRoot = layout.Root
	meta.RawSubdir = layout.RawSubdir
	meta.SnapshotSubdir = layout.SnapshotSubdir
	return meta
}

// persistSummary caches a finalized summary and stores its per-label rows.
// Failures are logged; the summary stays retrievable from the cache.
func (d *Daemon) persistSummary(ctx context.Context, summary *emotion.SessionSummary) []results.Record {
	if summary == nil {
		return nil
	}
	d.summaries.Add(summary.SessionID, summary)
	records, err := d.store.SaveSession(ctx, summary)
	logger := d.logger.With(logging.String(logging.FieldSessionID, summary.SessionID))
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues(string(services.KindOf(err))).Inc()
		logging.ErrorWithContext(logger, "persist session summary failed", "session_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the results database under state_dir"),
		)
		return nil
	}
	logger.Info("session summary persisted",
		logging.Int("records", len(records)),
		logging.Bool("evicted", summary.Evicted),
	)
	return records
}

// CachedSummary returns a recently finalized session summary.
func (d *Daemon) CachedSummary(id string) (*emotion.SessionSummary, bool) {
	summary, ok := d.summaries.Get(id)
	if ok {
		metrics.SummaryCacheHits.Inc()
	} else {
		metrics.SummaryCacheMisses.Inc()
	}
	return summary, ok
}
