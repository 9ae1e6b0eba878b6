package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"minimill/internal/apiclient"
	"minimill/internal/daemonctl"
)

const (
	daemonStartTimeout = 10 * time.Second
	daemonStopGrace    = 10 * time.Second
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the daemon in the background",
	}
	cmd.AddCommand(newDaemonStartCommand(ctx))
	cmd.AddCommand(newDaemonStopCommand(ctx))
	cmd.AddCommand(newDaemonRestartCommand(ctx))
	return cmd
}

func newDaemonStartCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a background daemon unless one is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				return startDaemon(cmd, ctx, client, logLevel)
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level for the daemon")
	return cmd
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the background daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				return stopDaemon(cmd, ctx, client, true)
			})
		},
	}
}

func newDaemonRestartCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	cmd := &cobra.Command{
		Use:   "restart",
		Short: "Stop the daemon if it is running, then start it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				if err := stopDaemon(cmd, ctx, client, false); err != nil {
					return err
				}
				return startDaemon(cmd, ctx, client, logLevel)
			})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level for the daemon")
	return cmd
}

func startDaemon(cmd *cobra.Command, ctx *commandContext, client *apiclient.Client, logLevel string) error {
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	opts := daemonctl.LaunchOptions{LogLevel: logLevel}
	if ctx.configFlag != nil {
		if path := strings.TrimSpace(*ctx.configFlag); path != "" {
			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve config path: %w", err)
			}
			opts.ConfigPath = abs
		}
	}
	res, err := daemonctl.EnsureStarted(cmd.Context(), client, executable, opts, daemonStartTimeout)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	switch res.State {
	case daemonctl.StartStateAlreadyRunning:
		fmt.Fprintf(out, "Daemon already running (pid %d)\n", res.PID)
	default:
		fmt.Fprintf(out, "Daemon started (pid %d, backend %s)\n", res.PID, res.Health.Backend)
	}
	return nil
}

func stopDaemon(cmd *cobra.Command, ctx *commandContext, client *apiclient.Client, reportIdle bool) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	pidPath := filepath.Join(cfg.Paths.LogDir, "minimilld.pid")
	res, err := daemonctl.Stop(cmd.Context(), client, pidPath, daemonStopGrace)
	out := cmd.OutOrStdout()
	if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		if reportIdle {
			fmt.Fprintln(out, "Daemon is not running")
		}
		return nil
	}
	if err != nil {
		return err
	}
	if res.ForcedKill {
		fmt.Fprintf(out, "Daemon (pid %d) did not stop in time and was killed\n", res.PID)
		return nil
	}
	fmt.Fprintf(out, "Daemon stopped (pid %d)\n", res.PID)
	return nil
}
