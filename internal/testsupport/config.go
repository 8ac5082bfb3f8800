package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"emotrack/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StorageRoot = filepath.Join(base, "media")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Model.ClassifierPath = filepath.Join(base, "models", "emotion_model.onnx")
	cfgVal.Model.CascadePath = filepath.Join(base, "models", "haarcascade_frontalface_default.xml")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAPIToken sets the bearer token required by the API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithIdleTimeout overrides the session idle timeout in seconds.
func WithIdleTimeout(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Session.IdleTimeout = seconds
	}
}

// WithUploadLimitMiB overrides the upload size ceiling.
func WithUploadLimitMiB(mib int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Batch.MaxUploadMiB = mib
	}
}

// WithModelFiles writes placeholder model and cascade files so presence checks
// pass. The contents are not loadable by a real backend.
func WithModelFiles() ConfigOption {
	return func(b *configBuilder) {
		for _, path := range []string{b.cfg.Model.ClassifierPath, b.cfg.Model.CascadePath} {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				b.t.Fatalf("mkdir model dir: %v", err)
			}
			if err := os.WriteFile(path, []byte("placeholder"), 0o644); err != nil {
				b.t.Fatalf("write model file: %v", err)
			}
		}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StorageRoot)
}
