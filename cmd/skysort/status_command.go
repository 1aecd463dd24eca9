package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"skysort/internal/catalog"
	"skysort/internal/classifier"
	"skysort/internal/config"
	"skysort/internal/deps"
)

type statusReport struct {
	ConfigPath   string
	DatabasePath string
	InboxDir     string
	LibraryDir   string
	Classifier   string
	BatchCounts  map[catalog.BatchStatus]int
	Dependencies []deps.Status
}

// batchStatusOrder fixes the display order of lifecycle states.
var batchStatusOrder = []catalog.BatchStatus{
	catalog.BatchPending,
	catalog.BatchAnalyzing,
	catalog.BatchResolved,
	catalog.BatchNeedsManual,
	catalog.BatchImported,
	catalog.BatchFailed,
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon configuration and batch overview",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *catalog.Store) error {
				report, err := buildStatusReport(cmd.Context(), cfg, ctx.configPath, store)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), renderStatus(report))
				return nil
			})
		},
	}
}

func buildStatusReport(ctx context.Context, cfg *config.Config, configPath string, store *catalog.Store) (statusReport, error) {
	report := statusReport{
		ConfigPath:   configPath,
		DatabasePath: cfg.DatabasePath(),
		InboxDir:     cfg.Paths.InboxDir,
		LibraryDir:   cfg.Paths.LibraryDir,
		BatchCounts:  make(map[catalog.BatchStatus]int),
	}

	batches, err := store.ListBatches(ctx)
	if err != nil {
		return statusReport{}, err
	}
	for _, batch := range batches {
		report.BatchCounts[batch.Status]++
	}

	report.Classifier = classifierStatus(ctx, cfg)
	report.Dependencies = deps.CheckBinaries(deps.Required(cfg))
	return report, nil
}

func classifierStatus(ctx context.Context, cfg *config.Config) string {
	cls := classifier.NewClient(classifier.Config{
		Endpoint:       cfg.Classifier.Endpoint,
		TimeoutSeconds: cfg.Classifier.TimeoutSeconds,
	})
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cls.HealthCheck(checkCtx); err != nil {
		return fmt.Sprintf("unreachable (%v)", err)
	}
	return "healthy"
}

func renderStatus(report statusReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Config:     %s\n", orDash(report.ConfigPath))
	fmt.Fprintf(&b, "Database:   %s\n", orDash(report.DatabasePath))
	fmt.Fprintf(&b, "Inbox:      %s\n", orDash(report.InboxDir))
	fmt.Fprintf(&b, "Library:    %s\n", orDash(report.LibraryDir))
	fmt.Fprintf(&b, "Classifier: %s\n", orDash(report.Classifier))
	b.WriteString("\n")

	rows := make([][]string, 0, len(batchStatusOrder))
	for _, status := range batchStatusOrder {
		rows = append(rows, []string{string(status), strconv.Itoa(report.BatchCounts[status])})
	}
	b.WriteString(renderTable(
		[]string{"Batch Status", "Count"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	))
	b.WriteString("\n\n")

	depRows := make([][]string, 0, len(report.Dependencies))
	for _, status := range report.Dependencies {
		depRows = append(depRows, []string{status.Name, dependencyState(status)})
	}
	b.WriteString(renderTable(
		[]string{"Dependency", "Status"},
		depRows,
		[]columnAlignment{alignLeft, alignLeft},
	))
	b.WriteString("\n")

	return b.String()
}

func dependencyState(status deps.Status) string {
	if status.Available {
		return "ok"
	}
	if status.Optional {
		return "missing (optional)"
	}
	return "missing"
}
