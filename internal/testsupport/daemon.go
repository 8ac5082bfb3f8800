package testsupport

import (
	"image"
	"net/http/httptest"
	"testing"

	"emotrack/internal/analyzer"
	"emotrack/internal/config"
	"emotrack/internal/daemon"
	"emotrack/internal/emotion"
	"emotrack/internal/logging"
)

// APIServer is an in-process daemon API backed by fake vision components.
type APIServer struct {
	Config   *config.Config
	Daemon   *daemon.Daemon
	Server   *httptest.Server
	Detector *FakeDetector
}

// URL returns the base URL of the running test server.
func (s *APIServer) URL() string {
	return s.Server.URL
}

// StartAPI serves a daemon handler over httptest. Placeholder model files are
// written and every frame yields one Happy face. The listener and daemon are
// torn down with the test.
func StartAPI(t testing.TB, opts ...ConfigOption) *APIServer {
	t.Helper()
	cfg := NewConfig(t, append([]ConfigOption{WithModelFiles()}, opts...)...)
	detector := &FakeDetector{Faces: []image.Rectangle{image.Rect(8, 8, 40, 40)}}
	classifier := NewFakeClassifier(Probs(emotion.Happy, 0.9))
	an, err := analyzer.New(analyzer.Options{
		Detector:    detector,
		Loader:      classifier.Loader(nil),
		ModelPath:   cfg.Model.ClassifierPath,
		CascadePath: cfg.Model.CascadePath,
		Logger:      logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("analyzer.New: %v", err)
	}
	videos := &VideoRecorder{}
	d, err := daemon.New(daemon.Options{
		Config:         cfg,
		Store:          MustOpenStore(t, cfg),
		Media:          MustMediaStore(t, cfg),
		Analyzer:       an,
		NewVideoWriter: videos.Open,
		OpenVideo: func(string) (analyzer.FrameSource, error) {
			return NewFrameSource(Frame(64, 64), Frame(64, 64)), nil
		},
		Logger: logging.NewNop(),
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	srv := httptest.NewServer(d.Handler())
	t.Cleanup(func() {
		srv.Close()
		d.Stop()
	})
	return &APIServer{Config: cfg, Daemon: d, Server: srv, Detector: detector}
}
