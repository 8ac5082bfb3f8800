package preflight

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"emotrack/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckModelFile(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "emotion_model.onnx")
	if err := os.WriteFile(model, make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckModelFile("model", model); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}

	empty := filepath.Join(dir, "empty.xml")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckModelFile("cascade", empty); result.Passed {
		t.Fatal("expected failure for empty file")
	}
	if result := CheckModelFile("cascade", filepath.Join(dir, "missing.xml")); result.Passed {
		t.Fatal("expected failure for missing file")
	}
	if result := CheckModelFile("cascade", dir); result.Passed {
		t.Fatal("expected failure for directory")
	}
	if result := CheckModelFile("cascade", ""); result.Passed {
		t.Fatal("expected failure for unset path")
	}
}

func TestCheckBindAddress(t *testing.T) {
	result := CheckBindAddress(context.Background(), "127.0.0.1:0")
	if !result.Passed {
		t.Fatalf("expected free port to pass, got: %s", result.Detail)
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer listener.Close()
	result = CheckBindAddress(context.Background(), listener.Addr().String())
	if result.Passed || !result.Optional {
		t.Fatalf("expected optional failure for busy port, got %+v", result)
	}

	if result := CheckBindAddress(context.Background(), "no-port"); result.Passed {
		t.Fatal("expected failure for malformed address")
	}
}

func TestCheckDaemonAPI_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	result := CheckDaemonAPI(context.Background(), srv.URL, "good-token")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
	if result := CheckDaemonAPI(context.Background(), srv.URL, "bad-token"); result.Passed {
		t.Fatal("expected failure for bad token")
	}
}

func TestCheckDaemonAPI_MissingURL(t *testing.T) {
	if result := CheckDaemonAPI(context.Background(), "", ""); result.Passed {
		t.Fatal("expected failure for missing URL")
	}
}

func TestAPIBaseURL(t *testing.T) {
	tests := []struct {
		bind string
		want string
	}{
		{"127.0.0.1:7610", "http://127.0.0.1:7610"},
		{"0.0.0.0:8080", "http://127.0.0.1:8080"},
		{":9000", "http://127.0.0.1:9000"},
		{"", ""},
		{"bogus", ""},
	}
	for _, tt := range tests {
		cfg := config.Default()
		cfg.Paths.APIBind = tt.bind
		if got := APIBaseURL(&cfg); got != tt.want {
			t.Errorf("APIBaseURL(%q) = %q, want %q", tt.bind, got, tt.want)
		}
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReadyConfig(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StorageRoot = filepath.Join(base, "media")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Model.ClassifierPath = filepath.Join(base, "model.onnx")
	cfg.Model.CascadePath = filepath.Join(base, "cascade.xml")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, path := range []string{cfg.Model.ClassifierPath, cfg.Model.CascadePath} {
		if err := os.WriteFile(path, []byte("weights"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	results := RunAll(context.Background(), &cfg)
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	for _, r := range results {
		if !r.Passed {
			t.Errorf("check %q failed: %s", r.Name, r.Detail)
		}
	}
	if !Passed(results) {
		t.Fatal("expected overall pass")
	}

	if err := os.Remove(cfg.Model.CascadePath); err != nil {
		t.Fatal(err)
	}
	if Passed(RunAll(context.Background(), &cfg)) {
		t.Fatal("expected overall failure without cascade")
	}
}
