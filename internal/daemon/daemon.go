package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"minimill/internal/config"
	"minimill/internal/logging"
	"minimill/internal/preflight"
	"minimill/internal/progress"
	"minimill/internal/session"
	"minimill/internal/web"
)

// Daemon owns the HTTP API, the job trackers and the single-instance lock.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *session.Store
	progress *progress.Manager
	server   *web.Server

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	stopped atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool               `json:"running"`
	APIAddress   string             `json:"apiAddress,omitempty"`
	ActiveJobs   int                `json:"activeJobs"`
	Store        session.Health     `json:"store"`
	LockFilePath string             `json:"lockFilePath"`
	Preflight    []preflight.Result `json:"preflight,omitempty"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *session.Store, logger *slog.Logger, mgr *progress.Manager, server *web.Server) (*Daemon, error) {
	if cfg == nil || store == nil || mgr == nil || server == nil {
		return nil, errors.New("daemon requires config, store, progress manager, and web server")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		progress: mgr,
		server:   server,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and begins serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if d.stopped.Load() {
		return errors.New("daemon has been stopped")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another minimill daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.server.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start api server: %w", err)
	}
	d.cancel = cancel

	d.running.Store(true)
	d.logger.Info("minimill daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.server.Addr()),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop shuts the API down, stops every tracker and releases the lock. A
// stopped daemon cannot be started again.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.Stop()
	d.progress.Shutdown()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.stopped.Store(true)
	d.logger.Info("minimill daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	health, err := d.store.Health(ctx)
	if err != nil {
		d.logger.Debug("store health check failed", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		APIAddress:   d.server.Addr(),
		ActiveJobs:   d.progress.Active(),
		Store:        health,
		LockFilePath: d.lockPath,
		Preflight:    preflight.RunAll(ctx, d.cfg),
	}
}
