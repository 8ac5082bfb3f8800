package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"emotrack/internal/apiclient"
	"emotrack/internal/config"
)

// ErrDaemonNotRunning indicates no live daemon process was found.
var ErrDaemonNotRunning = errors.New("daemon not running")

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
	Diagnostic bool
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	PID      int
}

// Launch starts a detached `emotrack daemon` process in its own session.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if opts.Diagnostic {
		args = append(args, "--diagnostic")
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForAPI polls the health endpoint until it answers or timeout elapses.
func WaitForAPI(ctx context.Context, client *apiclient.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		_, err := client.Health(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("daemon failed to start: %w", err)
		case <-ticker.C:
		}
	}
}

// EnsureStarted launches the daemon unless its API already answers, then
// waits for the API to come up.
func EnsureStarted(ctx context.Context, client *apiclient.Client, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	_, err := client.Health(ctx)
	if err == nil {
		return StartResult{State: StartStateAlreadyRunning, PID: runningPID(ctx, client)}, nil
	}
	if !apiclient.IsUnavailable(err) {
		return StartResult{}, err
	}

	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	if err := WaitForAPI(ctx, client, waitTimeout); err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, Launched: true, PID: runningPID(ctx, client)}, nil
}

func runningPID(ctx context.Context, client *apiclient.Client) int {
	status, err := client.Status(ctx)
	if err != nil {
		return 0
	}
	return status.PID
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// ReadPID returns the process id recorded in the daemon pid file.
func ReadPID(cfg *config.Config) (int, error) {
	data, err := os.ReadFile(cfg.PIDPath())
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file %q: %w", cfg.PIDPath(), err)
	}
	return pid, nil
}

// Stop sends SIGTERM to the daemon recorded in the pid file and waits up to
// gracePeriod for it to exit before sending SIGKILL. A missing pid file or a
// dead process yields ErrDaemonNotRunning and clears the stale pid file.
func Stop(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	if cfg == nil {
		return StopResult{}, errors.New("configuration not available")
	}
	pid, err := ReadPID(cfg)
	if errors.Is(err, os.ErrNotExist) {
		return StopResult{}, ErrDaemonNotRunning
	}
	if err != nil {
		return StopResult{}, err
	}
	if pid <= 0 {
		return StopResult{}, fmt.Errorf("invalid daemon pid %d in %s", pid, cfg.PIDPath())
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}
	result := StopResult{PID: pid}
	if !processAlive(pid) {
		removeStale(cfg)
		return result, ErrDaemonNotRunning
	}

	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			removeStale(cfg)
			return result, ErrDaemonNotRunning
		}
		return result, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	if waitForExit(pid, gracePeriod) {
		return result, nil
	}

	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	waitForExit(pid, time.Second)
	removeStale(cfg)
	result.ForcedKill = true
	return result, nil
}

// Running reports whether the pid file names a live process.
func Running(cfg *config.Config) (int, bool) {
	pid, err := ReadPID(cfg)
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, processAlive(pid)
}

func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func waitForExit(pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !processAlive(pid) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// removeStale clears files a killed daemon could not clean up itself. The
// flock is released by the kernel, so only the paths are removed.
func removeStale(cfg *config.Config) {
	_ = os.Remove(cfg.PIDPath())
	_ = os.Remove(cfg.LockPath())
}
