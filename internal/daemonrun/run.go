package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"minimill/internal/backend"
	"minimill/internal/config"
	"minimill/internal/daemon"
	"minimill/internal/logging"
	"minimill/internal/notifications"
	"minimill/internal/options"
	"minimill/internal/preflight"
	"minimill/internal/progress"
	"minimill/internal/results"
	"minimill/internal/session"
	"minimill/internal/upload"
	"minimill/internal/web"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the minimill daemon and blocks until a signal or ctx ends it.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("minimilld-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update minimilld.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "minimilld-*.log", Exclude: []string{logPath}},
	)
	pidPath := filepath.Join(cfg.Paths.LogDir, "minimilld.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	logPreflight(signalCtx, logger, cfg)

	store, err := session.Open(cfg)
	if err != nil {
		logger.Error("open session store", logging.Error(err))
		return err
	}

	d, err := build(cfg, store, logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check api_bind and that no other daemon uses this data directory"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("minimill daemon shutting down")
	return nil
}

// build wires the stage services into a daemon. The options stage hands new
// jobs to the progress manager.
func build(cfg *config.Config, store *session.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	be := backend.New(cfg, logger)
	notifier := notifications.NewService(cfg)
	mgr := progress.NewManager(cfg, store, be, notifier, logger)

	server, err := web.New(web.Deps{
		Config:   cfg,
		Store:    store,
		Upload:   upload.NewStage(cfg, store, logger),
		Options:  options.NewStage(cfg, store, be, mgr, logger),
		Progress: mgr,
		Results:  results.NewStage(cfg, store, be, logger),
		Backend:  be.Name(),
		Logger:   logger,
	})
	if err != nil {
		mgr.Shutdown()
		return nil, err
	}
	logger.Info("daemon configured",
		logging.String(logging.FieldEventType, "daemon_configured"),
		logging.String("backend", be.Name()),
		logging.String("store_driver", store.Driver()),
		logging.Bool("notifications", cfg.Notifications.NtfyTopic != ""),
		logging.Bool("auth", cfg.Paths.APIToken != ""),
	)
	return daemon.New(cfg, store, logger, mgr, server)
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Debug("preflight passed", logging.String("check", result.Name), logging.String("detail", result.Detail))
			continue
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "requests depending on this check may fail"),
		)
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "minimilld.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
