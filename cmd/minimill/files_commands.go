package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"minimill/internal/apiclient"
	"minimill/internal/domain"
	"minimill/internal/upload"
)

func newFilesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Manage the files selected for processing",
	}
	cmd.AddCommand(newFilesListCommand(ctx))
	cmd.AddCommand(newFilesAddCommand(ctx))
	cmd.AddCommand(newFilesRemoveCommand(ctx))
	cmd.AddCommand(newFilesClearCommand(ctx))
	return cmd
}

func newFilesListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List selected files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				res, err := client.Files(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, res)
				}
				printSelection(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newFilesAddCommand(ctx *commandContext) *cobra.Command {
	var drop bool
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "add <path>...",
		Short: "Add video files from disk",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := make([]domain.FileMetadata, 0, len(args))
			for _, path := range args {
				meta, err := upload.MetadataFromPath(path)
				if err != nil {
					return err
				}
				files = append(files, meta)
			}
			source := upload.SourcePicker
			if drop {
				source = upload.SourceDrop
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				res, resp, err := client.AddFiles(cmd.Context(), source, files)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, res)
				}
				out := cmd.OutOrStdout()
				printNotice(out, resp.Notice)
				fmt.Fprintf(out, "Added %s of %s file(s)\n", formatCount(res.Added), formatCount(len(files)))
				printSelection(out, res)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&drop, "drop", false, "Record the files as dropped rather than picked")
	addJSONFlag(cmd, &asJSON)
	return cmd
}

func newFilesRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <number>",
		Short: "Remove a file by its list number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := displayIndex(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				res, err := client.RemoveFile(cmd.Context(), index)
				if err != nil {
					return err
				}
				printSelection(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
}

func newFilesClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every selected file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				res, err := client.ClearFiles(cmd.Context())
				if err != nil {
					return err
				}
				printSelection(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
}

// displayIndex converts a 1-based list number to the API's 0-based index.
func displayIndex(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("file number must be a positive integer (got %q)", value)
	}
	return n - 1, nil
}

func printSelection(w io.Writer, res upload.Result) {
	if len(res.Selected) == 0 {
		fmt.Fprintln(w, "No files selected")
		return
	}
	fmt.Fprintln(w, filesTable(res.Selected))
	fmt.Fprintf(w, "%s file(s), %s total\n", formatCount(len(res.Selected)), humanize.IBytes(uint64(res.TotalSize)))
	if res.CanProceed {
		fmt.Fprintln(w, "Next: minimill proceed")
	}
}

func filesTable(files []domain.FileMetadata) string {
	rows := make([][]string, 0, len(files))
	for i, f := range files {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			f.Name,
			f.SizeLabel(),
			f.Type,
			humanize.Time(f.ModifiedAt()),
		})
	}
	return renderTable(tableSpec{
		headers: []string{"#", "Name", "Size", "Type", "Modified"},
		rows:    rows,
		aligns:  []columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
	})
}
