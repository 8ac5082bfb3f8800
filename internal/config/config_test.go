package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"emotrack/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"EMOTRACK_STORAGE_ROOT", "EMOTRACK_API_TOKEN", "EMOTRACK_MODEL_PATH"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "emotrack", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if want := filepath.Join(tempHome, ".local", "share", "emotrack", "media"); cfg.Paths.StorageRoot != want {
		t.Fatalf("unexpected storage root: got %q want %q", cfg.Paths.StorageRoot, want)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7610" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.DatabasePath() != filepath.Join(tempHome, ".local", "share", "emotrack", "emotrack.db") {
		t.Fatalf("unexpected database path %q", cfg.DatabasePath())
	}
	if cfg.LockPath() != filepath.Join(cfg.Paths.StateDir, "emotrack.lock") {
		t.Fatalf("unexpected lock path %q", cfg.LockPath())
	}
	if cfg.Storage.EmotionSubdir != "emotion_class" || cfg.Storage.ThumbnailSize != 320 {
		t.Fatalf("unexpected storage defaults %+v", cfg.Storage)
	}
	if cfg.SnapshotInterval() != 5*time.Second || cfg.IdleTimeout() != 5*time.Minute || cfg.ReapInterval() != 30*time.Second {
		t.Fatalf("unexpected session timing %+v", cfg.Session)
	}
	if cfg.Batch.MaxFrames != 180 || cfg.Batch.PreviewMaxFrames != 90 || cfg.Batch.SampleRate != 6 {
		t.Fatalf("unexpected batch defaults %+v", cfg.Batch)
	}
	if cfg.MaxUploadBytes() != 256<<20 {
		t.Fatalf("unexpected upload limit %d", cfg.MaxUploadBytes())
	}
	if cfg.Logging.Format != "console" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging defaults %+v", cfg.Logging)
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	custom := config.Default()
	custom.Paths.StorageRoot = "~/media"
	custom.Paths.APIBind = "0.0.0.0:9000"
	custom.Session.IdleTimeout = 0
	custom.Logging.Format = "JSON"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "emotrack.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.StorageRoot != filepath.Join(tempHome, "media") {
		t.Fatalf("unexpected storage root %q", cfg.Paths.StorageRoot)
	}
	if cfg.Paths.APIBind != "0.0.0.0:9000" {
		t.Fatalf("unexpected api bind %q", cfg.Paths.APIBind)
	}
	if cfg.IdleTimeout() >= 0 {
		t.Fatalf("expected idle eviction disabled, got %v", cfg.IdleTimeout())
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized json format, got %q", cfg.Logging.Format)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "emotrack.toml")
	if err := os.WriteFile(path, []byte("[paths]\nstaging_dir = \"/tmp\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil || !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestEnvFallbacks(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("EMOTRACK_STORAGE_ROOT", filepath.Join(tempHome, "env-media"))
	t.Setenv("EMOTRACK_MODEL_PATH", filepath.Join(tempHome, "model.onnx"))
	t.Setenv("EMOTRACK_API_TOKEN", " secret ")

	custom := config.Default()
	custom.Paths.StorageRoot = "/ignored"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "emotrack.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.StorageRoot != filepath.Join(tempHome, "env-media") {
		t.Fatalf("expected env storage root, got %q", cfg.Paths.StorageRoot)
	}
	if cfg.Model.ClassifierPath != filepath.Join(tempHome, "model.onnx") {
		t.Fatalf("expected env model path, got %q", cfg.Model.ClassifierPath)
	}
	if cfg.Paths.APIToken != "secret" {
		t.Fatalf("expected trimmed env token, got %q", cfg.Paths.APIToken)
	}
}

func TestAPITokenFromFileWinsOverEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("EMOTRACK_API_TOKEN", "from-env")

	path := filepath.Join(t.TempDir(), "emotrack.toml")
	if err := os.WriteFile(path, []byte("[paths]\napi_token = \"from-file\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.APIToken != "from-file" {
		t.Fatalf("expected file token, got %q", cfg.Paths.APIToken)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StorageRoot = filepath.Join(base, "media")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StorageRoot, cfg.Paths.StateDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %s: %v", dir, err)
		}
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	if cfg.Session.IdleTimeout != 300 || cfg.Storage.StreamSubdir != "session_stream" {
		t.Fatalf("sample does not match defaults: %+v", cfg)
	}

	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"storage root", func(c *config.Config) { c.Paths.StorageRoot = "" }, "paths.storage_root"},
		{"api bind", func(c *config.Config) { c.Paths.APIBind = "localhost" }, "paths.api_bind"},
		{"scale factor", func(c *config.Config) { c.Model.ScaleFactor = 1 }, "model.scale_factor"},
		{"subdir escape", func(c *config.Config) { c.Storage.RawSubdir = "../raw" }, "storage.raw_subdir"},
		{"jpeg quality", func(c *config.Config) { c.Storage.JPEGQuality = 0 }, "storage.jpeg_quality"},
		{"snapshot interval", func(c *config.Config) { c.Session.SnapshotInterval = 0 }, "session.snapshot_interval must be positive"},
		{"video fps", func(c *config.Config) { c.Session.VideoFPS = 0 }, "session.video_fps"},
		{"idle timeout", func(c *config.Config) { c.Session.IdleTimeout = -1 }, "session.idle_timeout"},
		{"sample rate", func(c *config.Config) { c.Batch.SampleRate = 0 }, "batch.sample_rate must be positive"},
		{"cache", func(c *config.Config) { c.Cache.SummaryEntries = 0 }, "cache.summary_entries"},
		{"log level", func(c *config.Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}
