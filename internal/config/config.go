package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	StorageRoot string `toml:"storage_root"`
	StateDir    string `toml:"state_dir"`
	LogDir      string `toml:"log_dir"`
	APIBind     string `toml:"api_bind"`
	APIToken    string `toml:"api_token"`
}

// Model locates the classifier weights and face cascade and tunes detection.
type Model struct {
	ClassifierPath string  `toml:"classifier_path"`
	CascadePath    string  `toml:"cascade_path"`
	ScaleFactor    float64 `toml:"scale_factor"`
	MinNeighbors   int     `toml:"min_neighbors"`
	MinFaceSize    int     `toml:"min_face_size"`
}

// Storage controls the media tree below Paths.StorageRoot.
type Storage struct {
	RawSubdir      string `toml:"raw_subdir"`
	SnapshotSubdir string `toml:"snapshot_subdir"`
	EmotionSubdir  string `toml:"emotion_subdir"`
	StreamSubdir   string `toml:"stream_subdir"`
	ThumbnailSize  int    `toml:"thumbnail_size"`
	JPEGQuality    int    `toml:"jpeg_quality"`
}

// Session contains live session timing. Intervals are in seconds.
type Session struct {
	SnapshotInterval int     `toml:"snapshot_interval"`
	VideoFPS         float64 `toml:"video_fps"`
	// IdleTimeout of 0 disables eviction of idle sessions.
	IdleTimeout  int `toml:"idle_timeout"`
	ReapInterval int `toml:"reap_interval"`
}

// Batch bounds offline image and video analysis.
type Batch struct {
	MaxFrames        int `toml:"max_frames"`
	PreviewMaxFrames int `toml:"preview_max_frames"`
	SampleRate       int `toml:"sample_rate"`
	MaxUploadMiB     int `toml:"max_upload_mib"`
}

// Cache sizes in-memory caches.
type Cache struct {
	SummaryEntries int `toml:"summary_entries"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for emotrack.
//
// Configuration sections by subsystem:
//   - Paths: storage root, state and log directories, API bind address
//   - Model: classifier weights, face cascade, detector tuning
//   - Storage: media subdirectories and thumbnail encoding
//   - Session: live session snapshot cadence, video fps, idle eviction
//   - Batch: frame sampling and upload limits for offline analysis
//   - Cache: finalized summary cache size
//   - Logging: log format, level, and retention
type Config struct {
	Paths   Paths   `toml:"paths"`
	Model   Model   `toml:"model"`
	Storage Storage `toml:"storage"`
	Session Session `toml:"session"`
	Batch   Batch   `toml:"batch"`
	Cache   Cache   `toml:"cache"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("emotrack.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StorageRoot, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite results database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "emotrack.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "emotrack.lock")
}

// PIDPath returns where the running daemon records its process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "emotrack.pid")
}

// SnapshotInterval returns the live snapshot throttle as a duration.
func (c *Config) SnapshotInterval() time.Duration {
	return time.Duration(c.Session.SnapshotInterval) * time.Second
}

// IdleTimeout returns the idle eviction threshold. A negative duration means
// eviction is disabled.
func (c *Config) IdleTimeout() time.Duration {
	if c.Session.IdleTimeout <= 0 {
		return -1
	}
	return time.Duration(c.Session.IdleTimeout) * time.Second
}

// ReapInterval returns how often idle sessions are checked.
func (c *Config) ReapInterval() time.Duration {
	return time.Duration(c.Session.ReapInterval) * time.Second
}

// MaxUploadBytes returns the upload size ceiling.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Batch.MaxUploadMiB) << 20
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
