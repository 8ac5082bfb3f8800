package daemonctl_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"testing"
	"time"

	"emotrack/internal/apiclient"
	"emotrack/internal/config"
	"emotrack/internal/daemonctl"
	"emotrack/internal/testsupport"
)

func writePID(t *testing.T, cfg *config.Config, pid int) {
	t.Helper()
	if err := os.MkdirAll(cfg.Paths.StateDir, 0o755); err != nil {
		t.Fatalf("mkdir state: %v", err)
	}
	if err := os.WriteFile(cfg.PIDPath(), []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		t.Fatalf("write pid: %v", err)
	}
}

// startChild runs a shell script and reaps it in the background so the pid
// disappears once the process exits.
func startChild(t *testing.T, script string) int {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	cmd := exec.Command("sh", "-c", script)
	if err := cmd.Start(); err != nil {
		t.Fatalf("start child: %v", err)
	}
	go func() { _ = cmd.Wait() }()
	t.Cleanup(func() { _ = cmd.Process.Kill() })
	// Give the shell time to install its traps.
	time.Sleep(100 * time.Millisecond)
	return cmd.Process.Pid
}

func TestStopWithoutPIDFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := daemonctl.Stop(cfg, time.Second); !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestStopClearsStalePIDFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pid := startChild(t, "exit 0")
	time.Sleep(100 * time.Millisecond)
	writePID(t, cfg, pid)

	if _, err := daemonctl.Stop(cfg, time.Second); !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
	if _, err := os.Stat(cfg.PIDPath()); !os.IsNotExist(err) {
		t.Fatalf("expected stale pid file removed, stat err=%v", err)
	}
}

func TestStopRefusesOwnProcess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writePID(t, cfg, os.Getpid())
	if _, err := daemonctl.Stop(cfg, time.Second); err == nil {
		t.Fatal("expected error when pid file names the caller")
	}
}

func TestStopTerminatesGracefully(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pid := startChild(t, "exec sleep 30")
	writePID(t, cfg, pid)

	if got, ok := daemonctl.Running(cfg); !ok || got != pid {
		t.Fatalf("Running = %d, %v", got, ok)
	}
	result, err := daemonctl.Stop(cfg, 3*time.Second)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if result.PID != pid || result.ForcedKill {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestStopForceKillsIgnoredTerm(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	pid := startChild(t, `trap "" TERM; exec sleep 30`)
	writePID(t, cfg, pid)

	result, err := daemonctl.Stop(cfg, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !result.ForcedKill {
		t.Fatalf("expected forced kill, got %+v", result)
	}
	if _, err := os.Stat(cfg.PIDPath()); !os.IsNotExist(err) {
		t.Fatalf("expected pid file removed, stat err=%v", err)
	}
}

func TestEnsureStartedAlreadyRunning(t *testing.T) {
	server := testsupport.StartAPI(t)
	client, err := apiclient.New(server.URL(), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := daemonctl.EnsureStarted(context.Background(), client, "/nonexistent/emotrack", daemonctl.LaunchOptions{}, time.Second)
	if err != nil {
		t.Fatalf("EnsureStarted: %v", err)
	}
	if result.State != daemonctl.StartStateAlreadyRunning || result.Launched {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestEnsureStartedLaunchFailure(t *testing.T) {
	client, err := apiclient.New("127.0.0.1:1", "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = daemonctl.EnsureStarted(context.Background(), client, "/nonexistent/emotrack", daemonctl.LaunchOptions{}, 200*time.Millisecond)
	if err == nil {
		t.Fatal("expected launch error for missing executable")
	}
}

func TestLaunchRequiresExecutable(t *testing.T) {
	if err := daemonctl.Launch(" ", daemonctl.LaunchOptions{}); err == nil {
		t.Fatal("expected error for empty executable")
	}
}
