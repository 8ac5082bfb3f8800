package main

import (
	"io"
	"strings"
	"testing"
	"time"

	"emotrack/internal/api"
	"emotrack/internal/emotion"
	"emotrack/internal/preflight"
)

func TestRenderStatusLine(t *testing.T) {
	line := renderStatusLine("Emotion model", statusOK, "present", false)
	if !strings.HasPrefix(line, "  Emotion model:") || !strings.HasSuffix(line, "[OK] present") {
		t.Fatalf("unexpected line %q", line)
	}
	colored := renderStatusLine("API", statusError, "", true)
	if !strings.HasPrefix(colored, ansiRed) || !strings.HasSuffix(colored, "[ERROR]"+ansiReset) {
		t.Fatalf("unexpected colored line %q", colored)
	}
}

func TestResultKind(t *testing.T) {
	cases := []struct {
		result preflight.Result
		want   statusKind
	}{
		{preflight.Result{Passed: true}, statusOK},
		{preflight.Result{Optional: true}, statusWarn},
		{preflight.Result{}, statusError},
	}
	for _, tc := range cases {
		if got := resultKind(tc.result); got != tc.want {
			t.Fatalf("resultKind(%+v) = %v, want %v", tc.result, got, tc.want)
		}
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]column{{Header: "Emotion"}, {Header: "Faces", Align: alignRight}}, [][]string{{"Happy"}})
	// Rounded style upper-cases headers.
	if !strings.Contains(out, "EMOTION") || !strings.Contains(out, "FACES") {
		t.Fatalf("unexpected header in %q", out)
	}
	if !strings.Contains(out, "│ Happy   │       │") {
		t.Fatalf("expected padded row in %q", out)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatal("expected trailing newline")
	}
	if renderTable(nil, nil) != "" {
		t.Fatal("expected empty output without columns")
	}
}

func TestCountsTableKeepsFirstSeenOrder(t *testing.T) {
	counts := emotion.NewCounts()
	counts.Add(emotion.Sad, 1)
	counts.Add(emotion.Angry, 2)
	out := countsTable(counts, map[string]float64{"Angry": 0.5})
	sad := strings.Index(out, "Sad")
	angry := strings.Index(out, "Angry")
	if sad < 0 || angry < 0 || sad > angry {
		t.Fatalf("expected Sad before Angry:\n%s", out)
	}
	if !strings.Contains(out, "50.0%") {
		t.Fatalf("expected confidence column:\n%s", out)
	}
}

func TestFormatLogEvent(t *testing.T) {
	evt := api.LogEvent{
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local),
		Level:     "warn",
		Message:   "idle session evicted",
		Component: "registry",
		SessionID: "0123456789abcdef",
		Details: []api.DetailField{
			{Label: "Idle", Value: "120s"},
			{Label: "", Value: "skipped"},
		},
	}
	got := formatLogEvent(evt)
	want := "2026-01-02 03:04:05 WARN [registry] Session 01234567 - idle session evicted\n    - Idle: 120s"
	if got != want {
		t.Fatalf("formatLogEvent = %q, want %q", got, want)
	}
	if got := formatLogEvent(api.LogEvent{Timestamp: evt.Timestamp}); !strings.HasSuffix(got, " INFO") {
		t.Fatalf("expected default level, got %q", got)
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("abc"); got != "abc" {
		t.Fatalf("shortID(abc) = %q", got)
	}
	if got := shortID("0123456789"); got != "01234567" {
		t.Fatalf("shortID = %q", got)
	}
}

func TestShouldColorizeNonTerminal(t *testing.T) {
	if shouldColorize(io.Discard) {
		t.Fatal("expected no color for non-file writer")
	}
}
