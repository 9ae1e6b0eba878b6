package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"minimill/internal/apiclient"
	"minimill/internal/domain"
)

func newProceedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "proceed",
		Short: "Move the selected files on to processing options",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.Proceed(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printNotice(out, resp.Notice)
				printNavigate(out, resp.Navigate)
				return nil
			})
		},
	}
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	var watch bool
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start processing the selected files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				res, resp, err := client.Start(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, res.Job)
				}
				out := cmd.OutOrStdout()
				printNotice(out, resp.Notice)
				fmt.Fprintf(out, "Started job %s (%s file(s), about %d minutes)\n",
					res.Job.ID, formatCount(len(res.Job.Files)), res.Job.EstimatedDuration)
				if watch {
					return runWatch(cmd, client, false)
				}
				printNavigate(out, resp.Navigate)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Follow progress after starting")
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Cancel the running job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				snap, resp, err := client.Cancel(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printNotice(out, resp.Notice)
				fmt.Fprintf(out, "Job %s: %s\n", snap.Job.ID, titleCase(string(snap.State)))
				printNavigate(out, resp.Navigate)
				return nil
			})
		},
	}
}

func newChooseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:       "choose <retry|restart>",
		Short:     "Answer the prompt after a failed job",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"retry", "restart"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.Choose(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printNotice(out, resp.Notice)
				printNavigate(out, resp.Navigate)
				return nil
			})
		},
	}
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "reset",
		Aliases: []string{"process-another"},
		Short:   "Clear the session and return to file selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				resp, err := client.ProcessAnother(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printNotice(out, resp.Notice)
				fmt.Fprintln(out, "Session cleared")
				printNavigate(out, resp.Navigate)
				return nil
			})
		},
	}
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs started from this session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				jobs, err := client.Jobs(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, jobs)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs yet")
					return nil
				}
				fmt.Fprintln(out, jobsTable(jobs, time.Now()))
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func jobsTable(jobs []domain.Job, now time.Time) string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		name := ""
		if primary, ok := job.PrimaryFile(); ok {
			name = primary.Name
			if extra := len(job.Files) - 1; extra > 0 {
				name = fmt.Sprintf("%s (+%d)", name, extra)
			}
		}
		started := ""
		if !job.StartTime.IsZero() {
			started = humanize.RelTime(job.StartTime, now, "ago", "from now")
		}
		rows = append(rows, []string{
			job.ID,
			titleCase(string(job.Status)),
			name,
			string(job.Options.DetectionMode),
			started,
		})
	}
	return renderTable(tableSpec{
		title:   "Jobs",
		headers: []string{"ID", "Status", "Files", "Mode", "Started"},
		rows:    rows,
	})
}
