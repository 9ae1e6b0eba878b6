package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"minimill/internal/apiclient"
	"minimill/internal/domain"
	"minimill/internal/options"
)

func newOptionsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "options",
		Short: "Review and change processing options",
	}
	cmd.AddCommand(newOptionsShowCommand(ctx))
	cmd.AddCommand(newOptionsSetCommand(ctx))
	cmd.AddCommand(newOptionsResetCommand(ctx))
	cmd.AddCommand(newOptionsRemoveCommand(ctx))
	return cmd
}

func newOptionsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the options summary and time estimate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				summary, err := client.Options(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, summary)
				}
				printSummary(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newOptionsSetCommand(ctx *commandContext) *cobra.Command {
	var mode string
	var highQuality bool
	var email bool
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change detection mode, quality or email notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch domain.OptionsPatch
			if cmd.Flags().Changed("mode") {
				value := strings.TrimSpace(mode)
				patch.DetectionMode = &value
			}
			if cmd.Flags().Changed("high-quality") {
				patch.HighQuality = &highQuality
			}
			if cmd.Flags().Changed("email") {
				patch.EmailNotification = &email
			}
			if patch.Empty() {
				return fmt.Errorf("nothing to change; pass --mode, --high-quality or --email")
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				summary, err := client.UpdateOptions(cmd.Context(), patch)
				if err != nil {
					return err
				}
				printSummary(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "Detection mode (4mm, 6mm, 8mm, 10mm)")
	cmd.Flags().BoolVar(&highQuality, "high-quality", true, "Produce high quality output")
	cmd.Flags().BoolVar(&email, "email", false, "Send an email when processing finishes")
	return cmd
}

func newOptionsResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore default options",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				summary, err := client.ResetOptions(cmd.Context())
				if err != nil {
					return err
				}
				printSummary(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}
}

func newOptionsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <number>",
		Short: "Drop a file from the options summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := displayIndex(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				summary, err := client.RemoveOptionFile(cmd.Context(), index)
				if err != nil {
					return err
				}
				printSummary(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}
}

func printSummary(w io.Writer, s options.Summary) {
	if len(s.Files) > 0 {
		fmt.Fprintln(w, filesTable(s.Files))
	}
	modes := make([][2]string, 0, len(s.Modes)+3)
	for _, m := range s.Modes {
		marker := " "
		if m.Selected {
			marker = "*"
		}
		modes = append(modes, [2]string{marker + " " + string(m.Mode), m.Description})
	}
	modes = append(modes,
		[2]string{"Quality", s.QualityLabel},
		[2]string{"Email", yesNo(s.Options.EmailNotification)},
		[2]string{"Estimate", s.Estimate.Label},
	)
	fmt.Fprintln(w, renderPairs("Processing options", modes))
	if s.CanStart {
		fmt.Fprintln(w, "Next: minimill start")
	} else {
		fmt.Fprintln(w, "Add files before starting: minimill files add <path>...")
	}
}
