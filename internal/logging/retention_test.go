package logging_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"emotrack/internal/logging"
)

func touch(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	when := time.Now().Add(-age)
	if err := os.Chtimes(path, when, when); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestCleanupOldLogsRemovesExpiredMatches(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "emotrack-20250101T000000.000Z.log")
	current := filepath.Join(dir, "emotrack-20250102T000000.000Z.log")
	fresh := filepath.Join(dir, "emotrack-20260101T000000.000Z.log")
	other := filepath.Join(dir, "notes.txt")
	touch(t, old, 40*24*time.Hour)
	touch(t, current, 40*24*time.Hour)
	touch(t, fresh, time.Hour)
	touch(t, other, 40*24*time.Hour)

	removed := logging.CleanupOldLogs(logging.NewNop(), 30, logging.RetentionTarget{
		Dir:     dir,
		Pattern: "emotrack-*.log",
		Exclude: []string{current},
	})
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected %s removed", old)
	}
	for _, keep := range []string{current, fresh, other} {
		if _, err := os.Stat(keep); err != nil {
			t.Fatalf("expected %s kept: %v", keep, err)
		}
	}
}

func TestCleanupOldLogsDisabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "emotrack-old.log")
	touch(t, path, 400*24*time.Hour)
	if removed := logging.CleanupOldLogs(nil, 0, logging.RetentionTarget{Dir: dir}); removed != 0 {
		t.Fatalf("expected no removals, got %d", removed)
	}
}
