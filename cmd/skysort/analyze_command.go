package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"skysort/internal/analyzer"
	"skysort/internal/catalog"
	"skysort/internal/classifier"
	"skysort/internal/logging"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <folder>",
		Short: "Analyze a footage folder and sort its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			folder, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve folder path: %w", err)
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			return ctx.withStore(func(store *catalog.Store) error {
				cls := classifier.NewClient(classifier.Config{
					Endpoint:             cfg.Classifier.Endpoint,
					TimeoutSeconds:       cfg.Classifier.TimeoutSeconds,
					WarmupTimeoutSeconds: cfg.Classifier.WarmupTimeoutSeconds,
					BatchSize:            cfg.Classifier.BatchSize,
				})
				a := analyzer.New(cfg, store, cls, nil, logger)

				batch, runErr := a.AnalyzeFolder(cmd.Context(), folder)
				if batch == nil {
					return runErr
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Batch %d: %s\n", batch.ID, batch.Status)
				fmt.Fprintf(out, "Files: %d analyzed, %d failed of %d\n",
					batch.ProcessedFiles-batch.FailedFiles, batch.FailedFiles, batch.TotalFiles)
				switch batch.Status {
				case catalog.BatchImported:
					fmt.Fprintf(out, "Resolved %d jump(s) via %s\n", batch.JumpCount, batch.ResolutionMethod)
				case catalog.BatchNeedsManual:
					fmt.Fprintf(out, "Manual review required (%s): %s\n", batch.ManualReason, batch.ResolutionNote)
				case catalog.BatchFailed:
					fmt.Fprintf(out, "Analysis failed: %s\n", batch.ErrorMessage)
				}
				return runErr
			})
		},
	}
}
