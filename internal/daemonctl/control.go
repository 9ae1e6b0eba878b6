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

	"minimill/internal/api"
)

const pollInterval = 200 * time.Millisecond

// ErrDaemonNotRunning means no daemon answered on the API address.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Prober answers health checks against the daemon API.
type Prober interface {
	Health(ctx context.Context) (api.HealthResponse, error)
}

// LaunchOptions controls how a detached daemon is started.
type LaunchOptions struct {
	ConfigPath string
	LogLevel   string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State  StartState
	PID    int
	Health api.HealthResponse
}

// StopResult captures daemon stop outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// Launch starts `<executable> serve` in its own session. The daemon writes
// its own log files, so the child's stdio is discarded.
func Launch(executable string, opts LaunchOptions) (int, error) {
	if strings.TrimSpace(executable) == "" {
		return 0, fmt.Errorf("resolve executable: executable path is empty")
	}
	args := []string{"serve"}
	if path := strings.TrimSpace(opts.ConfigPath); path != "" {
		args = append(args, "--config", path)
	}
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		args = append(args, "--log-level", level)
	}

	proc := exec.Command(executable, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return 0, fmt.Errorf("launch daemon: %w", err)
	}
	pid := proc.Process.Pid
	return pid, proc.Process.Release()
}

// WaitReady polls health until the daemon answers or timeout passes.
func WaitReady(ctx context.Context, probe Prober, timeout time.Duration) (api.HealthResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	var lastErr error
	for {
		health, err := probe.Health(ctx)
		if err == nil {
			return health, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return api.HealthResponse{}, fmt.Errorf("daemon failed to start: %w", lastErr)
		case <-ticker.C:
		}
	}
}

// EnsureStarted launches a daemon unless one already answers.
func EnsureStarted(ctx context.Context, probe Prober, executable string, opts LaunchOptions, timeout time.Duration) (StartResult, error) {
	if health, err := probe.Health(ctx); err == nil {
		return StartResult{State: StartStateAlreadyRunning, PID: health.PID, Health: health}, nil
	}
	if _, err := Launch(executable, opts); err != nil {
		return StartResult{}, err
	}
	health, err := WaitReady(ctx, probe, timeout)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{State: StartStateStarted, PID: health.PID, Health: health}, nil
}

// WaitForShutdown polls until health checks stop succeeding.
func WaitForShutdown(ctx context.Context, probe Prober, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		if _, err := probe.Health(ctx); err != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("daemon did not stop within %s", timeout)
		case <-ticker.C:
		}
	}
}

// Stop sends SIGTERM to the daemon and escalates to SIGKILL once grace
// passes. The pid comes from the health answer, falling back to pidPath.
func Stop(ctx context.Context, probe Prober, pidPath string, grace time.Duration) (StopResult, error) {
	health, err := probe.Health(ctx)
	if err != nil {
		return StopResult{}, ErrDaemonNotRunning
	}
	pid := health.PID
	if pid <= 0 {
		if pid, err = ReadPID(pidPath); err != nil {
			return StopResult{}, err
		}
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to signal current process (pid %d)", pid)
	}

	result := StopResult{PID: pid}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return result, nil
		}
		return result, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	if err := WaitForShutdown(ctx, probe, grace); err == nil {
		return result, nil
	}

	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if pidPath != "" {
		if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return result, fmt.Errorf("remove pid file %q: %w", pidPath, err)
		}
	}
	result.ForcedKill = true
	return result, nil
}

// ReadPID parses the daemon pid file.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read daemon pid file %q: %w", path, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", path)
	}
	return pid, nil
}
