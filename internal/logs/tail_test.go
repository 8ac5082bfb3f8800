package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"emotrack/internal/logs"
)

func TestLastReturnsTrailingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emotrack.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	lines, offset, err := logs.Last(path, 2)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != 6 {
		t.Fatalf("expected offset 6, got %d", offset)
	}

	lines, _, err = logs.Last(path, 10)
	if err != nil || len(lines) != 3 {
		t.Fatalf("expected all lines, got %#v, %v", lines, err)
	}
}

func TestLastMissingFile(t *testing.T) {
	lines, offset, err := logs.Last(filepath.Join(t.TempDir(), "missing.log"), 5)
	if err != nil || lines != nil || offset != 0 {
		t.Fatalf("expected empty result, got %#v %d %v", lines, offset, err)
	}
}

func TestLastRejectsDirectory(t *testing.T) {
	if _, _, err := logs.Last(t.TempDir(), 5); err == nil {
		t.Fatal("expected error for directory")
	}
}

type collector struct {
	mu    sync.Mutex
	lines []string
}

func (c *collector) add(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func waitForLines(t *testing.T, c *collector, n int) []string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if got := c.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d lines, got %#v", n, c.snapshot())
	return nil
}

func TestFollowEmitsAppendedCompleteLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emotrack.log")
	if err := os.WriteFile(path, []byte("old\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	_, offset, err := logs.Last(path, 1)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	got := &collector{}
	done := make(chan error, 1)
	go func() { done <- logs.Follow(ctx, path, offset, 10*time.Millisecond, got.add) }()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	if _, err := f.WriteString("first\nsecond"); err != nil {
		t.Fatalf("append: %v", err)
	}
	lines := waitForLines(t, got, 1)
	if lines[0] != "first" {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if _, err := f.WriteString("\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = f.Close()
	lines = waitForLines(t, got, 2)
	if lines[1] != "second" {
		t.Fatalf("partial line should be emitted once complete, got %#v", lines)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow: %v", err)
	}
}

func TestFollowRestartsAfterRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emotrack.log")
	if err := os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := &collector{}
	go func() { _ = logs.Follow(ctx, path, 14, 10*time.Millisecond, got.add) }()

	time.Sleep(30 * time.Millisecond)
	if err := os.WriteFile(path, []byte("new\n"), 0o644); err != nil {
		t.Fatalf("rotate log: %v", err)
	}
	lines := waitForLines(t, got, 1)
	if lines[0] != "new" {
		t.Fatalf("expected rotated content, got %#v", lines)
	}
}

func TestCurrentPath(t *testing.T) {
	if got := logs.CurrentPath("/var/log/emotrack"); got != filepath.Join("/var/log/emotrack", "emotrack.log") {
		t.Fatalf("unexpected path %q", got)
	}
}
