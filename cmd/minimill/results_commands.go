package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"minimill/internal/apiclient"
	"minimill/internal/domain"
	"minimill/internal/fileutil"
	"minimill/internal/results"
)

func newResultsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show the results of the current job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				view, err := client.Results(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, view)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderPairs("Results", [][2]string{
					{"Job", view.Job.ID},
					{"Status", titleCase(string(view.Job.Status))},
					{"Original file", fmt.Sprintf("%s (%s)", view.OriginalFileName, view.OriginalFileSize)},
					{"Detection mode", view.DetectionMode},
					{"Objects detected", view.ObjectsDetected},
					{"Accuracy", view.AccuracyScore},
					{"Frames", view.ProcessingFrames},
					{"Speed", view.ProcessingSpeed},
					{"Playback", view.MediaURL},
				}))
				fmt.Fprintln(out, "Next: minimill download, minimill share or minimill reset")
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newDetailsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "details",
		Short: "Show processing details for the current job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				details, err := client.Details(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, details)
				}
				pairs := make([][2]string, 0, len(details))
				for _, d := range details {
					pairs = append(pairs, [2]string{d.Label, d.Value})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderPairs("Processing details", pairs))
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var quality string
	var output string
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the processed video",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := domain.ParseQuality(quality)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				out := cmd.OutOrStdout()
				start := results.StartNotice(q)
				printNotice(out, &start)

				body, filename, err := client.Download(cmd.Context(), q)
				if err != nil {
					return err
				}
				defer body.Close()

				target, err := downloadTarget(output, filename)
				if err != nil {
					return err
				}
				written, err := fileutil.WriteAtomic(target, body, 0o644)
				if err != nil {
					return fmt.Errorf("save download: %w", err)
				}
				done := results.CompleteNotice()
				printNotice(out, &done)
				fmt.Fprintf(out, "Saved %s to %s (sha256 %s)\n", humanize.IBytes(uint64(written.Bytes)), target, written.SHA256)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&quality, "quality", "q", string(domain.QualityHigh), "Download quality (high or standard)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file or directory (defaults to the current directory)")
	return cmd
}

// downloadTarget resolves where a download lands. A directory output keeps
// the server-provided filename.
func downloadTarget(output, filename string) (string, error) {
	filename = fileutil.SafeFileName(filename, "processed_video.mp4")
	output = strings.TrimSpace(output)
	if output == "" {
		return filename, nil
	}
	info, err := os.Stat(output)
	if err == nil && info.IsDir() {
		return filepath.Join(output, filename), nil
	}
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("check output path: %w", err)
	}
	return output, nil
}

func newShareCommand(ctx *commandContext) *cobra.Command {
	var copyLink bool
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Print or copy the share link for the current job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				info, err := client.Share(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, info)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, info.Title)
				fmt.Fprintln(out, info.Text)
				fmt.Fprintln(out, info.URL)
				if !copyLink {
					return nil
				}
				if err := clipboard.WriteAll(info.URL); err != nil {
					warn := domain.Notice{Type: domain.NoticeWarning, Message: "Could not copy the link: " + err.Error()}
					printNotice(out, &warn)
					return nil
				}
				copied := results.CopiedNotice()
				printNotice(out, &copied)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&copyLink, "copy", false, "Copy the link to the clipboard")
	addJSONFlag(cmd, &asJSON)
	return cmd
}
