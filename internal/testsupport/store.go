package testsupport

import (
	"testing"

	"emotrack/internal/config"
	"emotrack/internal/media"
	"emotrack/internal/results"
)

// MustOpenStore opens a results.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *results.Store {
	t.Helper()

	store, err := results.Open(cfg)
	if err != nil {
		t.Fatalf("results.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustMediaStore creates the media tree described by cfg.
func MustMediaStore(t testing.TB, cfg *config.Config) *media.Store {
	t.Helper()

	store, err := media.New(media.Layout{
		Root:           cfg.Paths.StorageRoot,
		RawSubdir:      cfg.Storage.RawSubdir,
		SnapshotSubdir: cfg.Storage.SnapshotSubdir,
		EmotionSubdir:  cfg.Storage.EmotionSubdir,
		StreamSubdir:   cfg.Storage.StreamSubdir,
		ThumbnailSize:  cfg.Storage.ThumbnailSize,
		JPEGQuality:    cfg.Storage.JPEGQuality,
	})
	if err != nil {
		t.Fatalf("media.New: %v", err)
	}
	return store
}
