package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"minimill/internal/api"
	"minimill/internal/apiclient"
	"minimill/internal/preflight"
)

type statusReport struct {
	Daemon    *api.HealthResponse  `json:"daemon,omitempty"`
	Session   *api.SessionResponse `json:"session,omitempty"`
	Error     string               `json:"error,omitempty"`
	Preflight []preflight.Result   `json:"preflight"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, session and environment status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := statusReport{Preflight: preflight.RunAll(cmd.Context(), cfg)}
			err = ctx.withClient(func(client *apiclient.Client) error {
				health, err := client.Health(cmd.Context())
				if err != nil {
					return err
				}
				report.Daemon = &health
				sess, err := client.Session(cmd.Context())
				if err != nil {
					return err
				}
				report.Session = &sess
				return nil
			})
			if err != nil {
				report.Error = err.Error()
			}

			if asJSON {
				return writeJSON(cmd, report)
			}
			out := cmd.OutOrStdout()
			for _, line := range statusLines(report, ctx.apiAddress(cfg), shouldColorize(out)) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func statusLines(report statusReport, address string, colorize bool) []string {
	var lines []string
	lines = append(lines, renderSectionHeader("Daemon", colorize)...)
	if report.Daemon == nil {
		lines = append(lines, renderStatusLine("minimill", statusError, "Not running", colorize))
		if report.Error != "" {
			lines = append(lines, renderStatusLine("Detail", statusInfo, report.Error, colorize))
		}
	} else {
		h := report.Daemon
		kind := statusOK
		state := "Running"
		if h.Status != "ok" {
			kind, state = statusWarn, titleCase(h.Status)
		}
		lines = append(lines,
			renderStatusLine("minimill", kind, fmt.Sprintf("%s (pid %d)", state, h.PID), colorize),
			renderStatusLine("API", statusInfo, address, colorize),
			renderStatusLine("Backend", statusInfo, h.Backend, colorize),
			renderStatusLine("Store", storeKind(h), fmt.Sprintf("%s %s", h.StoreDriver, h.StoreLocation), colorize),
			renderStatusLine("Sessions", statusInfo, formatCount(h.Sessions), colorize),
			renderStatusLine("Jobs", statusInfo, fmt.Sprintf("%s total, %s active", formatCount(h.Jobs), formatCount(h.ActiveJobs)), colorize),
		)
	}

	if s := report.Session; s != nil {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Session", colorize)...)
		lines = append(lines,
			renderStatusLine("Stage", statusInfo, titleCase(string(s.Stage)), colorize),
			renderStatusLine("Files", statusInfo, formatCount(len(s.Files)), colorize),
			renderStatusLine("Mode", statusInfo, fmt.Sprintf("%s, %s", s.Options.DetectionMode, s.Options.QualityLabel()), colorize),
		)
		if s.CurrentJobID != "" {
			lines = append(lines, renderStatusLine("Job", statusInfo, s.CurrentJobID, colorize))
		}
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Environment", colorize)...)
	for _, r := range report.Preflight {
		kind := statusOK
		if !r.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	return lines
}

func storeKind(h *api.HealthResponse) statusKind {
	if h.Error != "" {
		return statusError
	}
	return statusOK
}
