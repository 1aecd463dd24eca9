package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"skysort/internal/catalog"
)

func newBatchesCommand(ctx *commandContext) *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List footage batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *catalog.Store) error {
				var statuses []catalog.BatchStatus
				if statusFilter != "" {
					statuses = append(statuses, catalog.BatchStatus(statusFilter))
				}
				batches, err := store.ListBatches(cmd.Context(), statuses...)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(batches) == 0 {
					fmt.Fprintln(out, "No batches found")
					return nil
				}

				rows := make([][]string, 0, len(batches))
				for _, batch := range batches {
					rows = append(rows, []string{
						strconv.FormatInt(batch.ID, 10),
						filepath.Base(batch.FolderPath),
						string(batch.Status),
						fmt.Sprintf("%d/%d", batch.ProcessedFiles, batch.TotalFiles),
						strconv.Itoa(batch.JumpCount),
						orDash(string(batch.ResolutionMethod)),
						batch.CreatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Folder", "Status", "Files", "Jumps", "Resolution", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "Only list batches with this status")
	return cmd
}
