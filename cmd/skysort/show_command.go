package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"skysort/internal/catalog"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var withSegments bool

	cmd := &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show a batch with its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batchID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid batch id %q", args[0])
			}
			return ctx.withStore(func(store *catalog.Store) error {
				batch, err := store.GetBatchByID(cmd.Context(), batchID)
				if err != nil {
					return err
				}
				files, err := store.ListFiles(cmd.Context(), batch.ID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Batch %d\n", batch.ID)
				fmt.Fprintf(out, "Folder:     %s\n", batch.FolderPath)
				fmt.Fprintf(out, "Status:     %s\n", batch.Status)
				fmt.Fprintf(out, "Files:      %d total, %d failed\n", batch.TotalFiles, batch.FailedFiles)
				fmt.Fprintf(out, "Jumps:      %d (markers: %d)\n", batch.JumpCount, batch.IdentifierCount)
				if batch.ResolutionMethod != "" {
					fmt.Fprintf(out, "Resolution: %s\n", batch.ResolutionMethod)
				}
				if batch.ManualReason != "" {
					fmt.Fprintf(out, "Manual:     %s (%s)\n", batch.ManualReason, batch.ResolutionNote)
				}
				if batch.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:      %s\n", batch.ErrorMessage)
				}
				fmt.Fprintln(out)

				rows := make([][]string, 0, len(files))
				for _, file := range files {
					rows = append(rows, []string{
						file.Filename,
						string(file.Status),
						orDash(file.DominantCategory),
						fmt.Sprintf("%.2f", file.Confidence),
						fmt.Sprintf("%.0fs", file.DurationSeconds),
						orDash(file.WorkloadID),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"File", "Status", "Dominant", "Conf", "Duration", "Jump"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))

				if !withSegments {
					return nil
				}
				for _, file := range files {
					segments, err := store.ListSegments(cmd.Context(), file.ID)
					if err != nil {
						return err
					}
					if len(segments) == 0 {
						continue
					}
					fmt.Fprintf(out, "\n%s\n", file.Filename)
					fmt.Fprintln(out, renderTable(
						[]string{"#", "Category", "Start", "End", "Confidence"},
						segmentRows(segments),
						[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight},
					))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&withSegments, "segments", false, "Include per-file segment breakdown")
	return cmd
}

func segmentRows(segments []catalog.Segment) [][]string {
	rows := make([][]string, 0, len(segments))
	for _, segment := range segments {
		rows = append(rows, []string{
			strconv.Itoa(segment.Sequence),
			segment.Category,
			fmt.Sprintf("%.1fs", segment.StartSeconds),
			fmt.Sprintf("%.1fs", segment.EndSeconds),
			fmt.Sprintf("%.2f", segment.Confidence),
		})
	}
	return rows
}
