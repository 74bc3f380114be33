// Command rollout drives the release pipeline: it builds an artifact,
// runs the gates, promotes through staging into production, and
// commits or rolls back based on observed health.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/config"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/logger"
)

var (
	configPath string
	jsonOutput bool

	log *slog.Logger

	rootCmd = &cobra.Command{
		Use:           "rollout",
		Short:         "Build, gate, and promote releases through staging into production",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			level := slog.LevelInfo
			if config.GetBool("ROLLOUT_DEBUG", false) {
				level = slog.LevelDebug
			}
			log = logger.New("rollout", level)
			slog.SetDefault(log)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "rollout.yaml", "path to the pipeline config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print machine-readable JSON instead of text")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errNotCommitted) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}
