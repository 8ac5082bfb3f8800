package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"emotrack/internal/api"
	"emotrack/internal/logs"
	"emotrack/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "token required: yes")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, _, err := runCLI(t, "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestModelCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "model")
	if err != nil {
		t.Fatalf("model: %v", err)
	}
	requireContains(t, out, "Angry, Disgust, Fear, Happy, Neutral, Sad, Surprise")
	requireContains(t, out, "Emotion model")

	out, _, err = runCLI(t, env.configPath, "model", "--json")
	if err != nil {
		t.Fatalf("model --json: %v", err)
	}
	var meta api.ModelMetadata
	if err := json.Unmarshal([]byte(out), &meta); err != nil {
		t.Fatalf("decode model json: %v", err)
	}
	if !meta.HasModel || len(meta.Labels) != 7 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
}

func TestMissingTokenIsRejected(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Paths.APIToken = ""
	configPath := writeTestConfig(t, env.cfg)

	_, _, err := runCLI(t, configPath, "model")
	if err == nil || !strings.Contains(err.Error(), "unauthorized") {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
}

func TestAnalyzeHistoryLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)
	image := writeImage(t)

	out, _, err := runCLI(t, env.configPath, "analyze", image, "--user", "3", "--channel", "lobby", "--source", "image-upload")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	requireContains(t, out, "Dominant emotion: Happy (90.0%)")
	requireContains(t, out, "image-upload")

	out, _, err = runCLI(t, env.configPath, "history", "--json", "--source", "image")
	if err != nil {
		t.Fatalf("history --json: %v", err)
	}
	var list api.AnalysisListResponse
	if err := json.Unmarshal([]byte(out), &list); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(list.Items) != 1 {
		t.Fatalf("expected 1 analysis, got %d", len(list.Items))
	}
	item := list.Items[0]
	if item.UserID != 3 || item.Channel != "lobby" || item.OriginalFilename != "group.png" {
		t.Fatalf("unexpected analysis %+v", item)
	}
	id := strconv.FormatInt(item.ID, 10)

	out, _, err = runCLI(t, env.configPath, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "group.png")
	requireContains(t, out, "Emotions: Happy")

	out, _, err = runCLI(t, env.configPath, "history", "show", id)
	if err != nil {
		t.Fatalf("history show: %v", err)
	}
	requireContains(t, out, "Analysis "+id)
	requireContains(t, out, "Original: raw/")

	out, _, err = runCLI(t, env.configPath, "history", "delete", id)
	if err != nil {
		t.Fatalf("history delete: %v", err)
	}
	requireContains(t, out, "Deleted analysis "+id)

	out, _, err = runCLI(t, env.configPath, "history")
	if err != nil {
		t.Fatalf("history after delete: %v", err)
	}
	requireContains(t, out, "No analyses found")

	if _, _, err := runCLI(t, env.configPath, "history", "show", id); err == nil {
		t.Fatal("expected error for deleted analysis")
	}
	if _, _, err := runCLI(t, env.configPath, "history", "delete", "abc"); err == nil {
		t.Fatal("expected error for invalid id")
	}
}

func TestInferMediaType(t *testing.T) {
	cases := map[string]string{
		"clip.MP4":     "video",
		"/tmp/a.webm":  "video",
		"face.png":     "image",
		"no-extension": "image",
	}
	for path, want := range cases {
		if got := inferMediaType(path); got != want {
			t.Fatalf("inferMediaType(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestAnalyzePreviewStoresNothing(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "analyze", "--preview", writeImage(t))
	if err != nil {
		t.Fatalf("analyze --preview: %v", err)
	}
	requireContains(t, out, "Preview only")

	out, _, err = runCLI(t, env.configPath, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No analyses found")
}

func TestAnalyzeWithoutFaces(t *testing.T) {
	env := setupCLITestEnv(t)
	env.server.Detector.Faces = nil

	_, _, err := runCLI(t, env.configPath, "analyze", writeImage(t))
	if err == nil || !(strings.Contains(err.Error(), "no_face_detected") || strings.Contains(err.Error(), "no_detections")) {
		t.Fatalf("expected a no-face error, got %v", err)
	}
}

func TestSessionsCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	out, _, err := runCLI(t, env.configPath, "sessions")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	requireContains(t, out, "No active sessions")

	info := env.server.Daemon.CreateSession(ctx, 4, "lab")
	frame := testsupport.PNG(t, testsupport.Frame(64, 64))
	if _, err := env.server.Daemon.IngestFrame(ctx, info.SessionID, frame); err != nil {
		t.Fatalf("IngestFrame: %v", err)
	}

	out, _, err = runCLI(t, env.configPath, "sessions")
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	requireContains(t, out, info.SessionID)
	requireContains(t, out, "lab")

	out, _, err = runCLI(t, env.configPath, "sessions", "stop", info.SessionID)
	if err != nil {
		t.Fatalf("sessions stop: %v", err)
	}
	requireContains(t, out, "stopped after 1 frames")
	requireContains(t, out, "Dominant emotion: Happy")
	requireContains(t, out, "Stored 1 analyses")

	_, _, err = runCLI(t, env.configPath, "sessions", "stop", info.SessionID)
	if err == nil || !strings.Contains(err.Error(), "session_not_found") {
		t.Fatalf("expected session_not_found, got %v", err)
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "Running (pid "+strconv.Itoa(os.Getpid()))
	requireContains(t, out, "Live sessions:")
	requireContains(t, out, "== Storage ==")

	out, _, err = runCLI(t, env.configPath, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.PID != os.Getpid() {
		t.Fatalf("unexpected pid %d", status.PID)
	}
}

func TestStatusWhenDaemonDown(t *testing.T) {
	_, configPath := setupOfflineEnv(t)

	out, _, err := runCLI(t, configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")
}

func TestCommandsReportUnreachableDaemon(t *testing.T) {
	_, configPath := setupOfflineEnv(t)

	_, _, err := runCLI(t, configPath, "sessions")
	if err == nil || !strings.Contains(err.Error(), "emotrack start") {
		t.Fatalf("expected start hint, got %v", err)
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	_, configPath := setupOfflineEnv(t)

	out, _, err := runCLI(t, configPath, "stop")
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon is not running")
}

func TestLogsFromAPIWithoutHub(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "logs")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "No log entries available")
}

func TestLogsFallsBackToFile(t *testing.T) {
	cfg, configPath := setupOfflineEnv(t)
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	content := "first line\nsecond line\nthird line\n"
	if err := os.WriteFile(logs.CurrentPath(cfg.Paths.LogDir), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, stderr, err := runCLI(t, configPath, "logs", "-n", "2")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, stderr, "reading the log file")
	if strings.Contains(out, "first line") {
		t.Fatalf("expected only the last two lines, got %q", out)
	}
	requireContains(t, out, "second line\nthird line")

	out, _, err = runCLI(t, configPath, "logs", "--file")
	if err != nil {
		t.Fatalf("logs --file: %v", err)
	}
	requireContains(t, out, "first line")
}

func TestPreflightCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "preflight")
	if err != nil {
		t.Fatalf("preflight: %v\n%s", err, out)
	}
	requireContains(t, out, "All required checks passed")
	requireContains(t, out, "Emotion model")

	if err := os.Remove(env.cfg.Model.CascadePath); err != nil {
		t.Fatalf("remove cascade: %v", err)
	}
	out, _, err = runCLI(t, env.configPath, "preflight")
	if !errors.Is(err, errPreflightFailed) {
		t.Fatalf("expected preflight failure, got %v", err)
	}
	requireContains(t, out, "[ERROR]")
}
