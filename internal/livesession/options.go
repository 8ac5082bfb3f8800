package livesession

import (
	"image"
	"log/slog"
	"time"

	"emotrack/internal/emotion"
)

const (
	DefaultSnapshotInterval = 5 * time.Second
	DefaultVideoFPS         = 12
	DefaultIdleTimeout      = 5 * time.Minute
	DefaultReapInterval     = 30 * time.Second
)

// VideoWriter appends frames to a video file in call order.
type VideoWriter interface {
	Write(frame image.Image) error
	Close() error
}

// VideoWriterFactory opens a writer at path for frames of width x height.
type VideoWriterFactory func(path string, fps float64, width, height int) (VideoWriter, error)

// SnapshotStore persists session artifacts and returns root-relative paths.
type SnapshotStore interface {
	SaveLabelSnapshot(sessionID string, label emotion.Label, img image.Image, suffix string) (string, error)
	StreamPath(sessionID string, startedAt time.Time) (abs string, rel string, err error)
	Remove(rel string) error
}

// Config holds per-session tunables. Zero fields take the registry defaults.
type Config struct {
	SnapshotInterval time.Duration
	VideoFPS         float64
	// IdleTimeout evicts sessions with no activity for this long. Zero or
	// negative disables eviction.
	IdleTimeout time.Duration
}

// DefaultConfig returns the stock session settings.
func DefaultConfig() Config {
	return Config{
		SnapshotInterval: DefaultSnapshotInterval,
		VideoFPS:         DefaultVideoFPS,
		IdleTimeout:      DefaultIdleTimeout,
	}
}

func (c Config) merge(base Config) Config {
	if c.SnapshotInterval <= 0 {
		c.SnapshotInterval = base.SnapshotInterval
	}
	if c.VideoFPS <= 0 {
		c.VideoFPS = base.VideoFPS
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = base.IdleTimeout
	}
	return c
}

// Options wires a Registry to its collaborators.
type Options struct {
	Store          SnapshotStore
	NewVideoWriter VideoWriterFactory
	Config         Config
	Logger         *slog.Logger
	// Clock overrides time.Now, mainly for tests.
	Clock func() time.Time
	// NewID overrides session id generation, mainly for tests.
	NewID func() string
}
