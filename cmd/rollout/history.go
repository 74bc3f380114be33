package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/config"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/infrastructure/sqlite"
)

var (
	historyApp   string
	historyEnv   string
	historyLimit int

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show recent rollout runs for an application",
		Long: "Show recent rollout runs for an application. With --env the " +
			"release ledger for that environment is shown instead: every " +
			"candidate, commit and rollback entry, newest first.",
		RunE: showHistory,
	}
)

func init() {
	historyCmd.Flags().StringVar(&historyApp, "app", "", "application to inspect (defaults to the configured application)")
	historyCmd.Flags().StringVar(&historyEnv, "env", "", "show ledger entries for this environment instead of runs")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of entries to show")
}

func showHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if historyApp == "" {
		historyApp = cfg.Application
	}

	db, err := sqlite.Open(cfg.LedgerPath)
	if err != nil {
		return fmt.Errorf("open ledger database: %w", err)
	}
	defer db.Close()

	if historyEnv != "" {
		ledger := &sqlite.LedgerRepo{DB: db}
		entries, err := ledger.History(cmd.Context(), historyApp, historyEnv, historyLimit)
		if err != nil {
			return err
		}
		return printLedger(entries)
	}

	repo := &sqlite.RunRepo{DB: db}
	runs, err := repo.ListByApplication(cmd.Context(), historyApp, historyLimit)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tARTIFACT\tSTATUS\tREASON")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			run.StartedAt.Format(time.RFC3339),
			artifactLabel(run.Artifact),
			run.Status,
			run.Reason)
	}
	return w.Flush()
}

func printLedger(entries []domain.LedgerEntry) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROMOTED\tARTIFACT\tOUTCOME")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			e.PromotedAt.Format(time.RFC3339),
			artifactLabel(e.Artifact),
			e.Outcome)
	}
	return w.Flush()
}

func artifactLabel(a domain.ArtifactRef) string {
	if a.IsZero() {
		return "-"
	}
	return a.String()
}
