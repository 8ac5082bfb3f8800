package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeModel(); err != nil {
		return err
	}
	c.normalizeStorage()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := lookupEnv("EMOTRACK_STORAGE_ROOT"); ok {
		c.Paths.StorageRoot = value
	}
	if strings.TrimSpace(c.Paths.StorageRoot) == "" {
		c.Paths.StorageRoot = defaultStorageRoot
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	var err error
	if c.Paths.StorageRoot, err = expandPath(strings.TrimSpace(c.Paths.StorageRoot)); err != nil {
		return fmt.Errorf("paths.storage_root: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := lookupEnv("EMOTRACK_API_TOKEN"); ok {
			c.Paths.APIToken = value
		}
	}
	return nil
}

func (c *Config) normalizeModel() error {
	if value, ok := lookupEnv("EMOTRACK_MODEL_PATH"); ok {
		c.Model.ClassifierPath = value
	}
	if strings.TrimSpace(c.Model.ClassifierPath) == "" {
		c.Model.ClassifierPath = defaultClassifierPath
	}
	if strings.TrimSpace(c.Model.CascadePath) == "" {
		c.Model.CascadePath = defaultCascadePath
	}
	var err error
	if c.Model.ClassifierPath, err = expandPath(strings.TrimSpace(c.Model.ClassifierPath)); err != nil {
		return fmt.Errorf("model.classifier_path: %w", err)
	}
	if c.Model.CascadePath, err = expandPath(strings.TrimSpace(c.Model.CascadePath)); err != nil {
		return fmt.Errorf("model.cascade_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeStorage() {
	c.Storage.RawSubdir = subdirOrDefault(c.Storage.RawSubdir, defaultRawSubdir)
	c.Storage.SnapshotSubdir = subdirOrDefault(c.Storage.SnapshotSubdir, defaultSnapshotSubdir)
	c.Storage.EmotionSubdir = subdirOrDefault(c.Storage.EmotionSubdir, defaultEmotionSubdir)
	c.Storage.StreamSubdir = subdirOrDefault(c.Storage.StreamSubdir, defaultStreamSubdir)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func subdirOrDefault(value, fallback string) string {
	value = strings.Trim(strings.TrimSpace(value), "/")
	if value == "" {
		return fallback
	}
	return value
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
