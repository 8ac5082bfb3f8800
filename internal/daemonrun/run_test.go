package daemonrun

import (
	"errors"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"emotrack/internal/logging"
	"emotrack/internal/services"
	"emotrack/internal/testsupport"
)

func TestEnsureCurrentLogPointerReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "emotrack-1.log")
	second := filepath.Join(dir, "emotrack-2.log")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte(filepath.Base(path)), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "emotrack.log"))
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "emotrack-2.log" {
		t.Fatalf("pointer resolves to %q", data)
	}
}

func TestWritePIDFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Paths.StateDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := writePIDFile(cfg.PIDPath()); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, err := os.ReadFile(cfg.PIDPath())
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("unexpected pid file contents %q", data)
	}
}

func TestOpenDetectorDegradesToModelUnavailable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Model.CascadePath = filepath.Join(t.TempDir(), "missing.xml")

	detector, closeFn := openDetector(cfg, logging.NewNop())
	defer closeFn()
	_, err := detector.DetectFaces(image.NewGray(image.Rect(0, 0, 4, 4)))
	if !errors.Is(err, services.ErrModelUnavailable) {
		t.Fatalf("expected model unavailable, got %v", err)
	}
}
