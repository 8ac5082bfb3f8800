package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateModel(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := ensurePositive([]positiveField{
		{"batch.max_frames", c.Batch.MaxFrames},
		{"batch.preview_max_frames", c.Batch.PreviewMaxFrames},
		{"batch.sample_rate", c.Batch.SampleRate},
		{"batch.max_upload_mib", c.Batch.MaxUploadMiB},
		{"cache.summary_entries", c.Cache.SummaryEntries},
	}); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StorageRoot) == "" {
		return errors.New("paths.storage_root must be set (or set EMOTRACK_STORAGE_ROOT)")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	if !strings.Contains(c.Paths.APIBind, ":") {
		return fmt.Errorf("paths.api_bind must be host:port, got %q", c.Paths.APIBind)
	}
	return nil
}

func (c *Config) validateModel() error {
	if strings.TrimSpace(c.Model.ClassifierPath) == "" {
		return errors.New("model.classifier_path must be set (or set EMOTRACK_MODEL_PATH)")
	}
	if c.Model.ScaleFactor <= 1 {
		return errors.New("model.scale_factor must be greater than 1")
	}
	return ensurePositive([]positiveField{
		{"model.min_neighbors", c.Model.MinNeighbors},
		{"model.min_face_size", c.Model.MinFaceSize},
	})
}

func (c *Config) validateStorage() error {
	subdirs := map[string]string{
		"storage.raw_subdir":      c.Storage.RawSubdir,
		"storage.snapshot_subdir": c.Storage.SnapshotSubdir,
		"storage.emotion_subdir":  c.Storage.EmotionSubdir,
		"storage.stream_subdir":   c.Storage.StreamSubdir,
	}
	for key, value := range subdirs {
		if filepath.IsAbs(value) || strings.Contains(value, "..") {
			return fmt.Errorf("%s must be a relative directory inside paths.storage_root", key)
		}
	}
	if err := ensurePositive([]positiveField{{"storage.thumbnail_size", c.Storage.ThumbnailSize}}); err != nil {
		return err
	}
	if c.Storage.JPEGQuality < 1 || c.Storage.JPEGQuality > 100 {
		return errors.New("storage.jpeg_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateSession() error {
	if err := ensurePositive([]positiveField{
		{"session.snapshot_interval", c.Session.SnapshotInterval},
		{"session.reap_interval", c.Session.ReapInterval},
	}); err != nil {
		return err
	}
	if c.Session.VideoFPS <= 0 {
		return errors.New("session.video_fps must be positive")
	}
	if c.Session.IdleTimeout < 0 {
		return errors.New("session.idle_timeout must be >= 0 (0 disables eviction)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
}

type positiveField struct {
	key   string
	value int
}

func ensurePositive(fields []positiveField) error {
	for _, field := range fields {
		if field.value <= 0 {
			return fmt.Errorf("%s must be positive", field.key)
		}
	}
	return nil
}
