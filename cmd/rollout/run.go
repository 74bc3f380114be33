package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tommyanhnguyen/house-price-pipeline/internal/application"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/config"
	"github.com/tommyanhnguyen/house-price-pipeline/internal/domain"
)

var (
	runApp       string
	runSourceRev string
	runVersion   string

	// errNotCommitted makes a non-committed run exit nonzero without
	// printing a second error line; the result was already printed.
	// Returning it through RunE lets the deferred cleanup run before
	// the process exits.
	errNotCommitted = errors.New("run did not commit")

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Execute one release: build, gates, staging, production, commit or rollback",
		RunE:  runRelease,
	}
)

func init() {
	runCmd.Flags().StringVar(&runApp, "app", "", "application to release (defaults to the configured application)")
	runCmd.Flags().StringVar(&runSourceRev, "source-rev", "", "source revision to build")
	runCmd.Flags().StringVar(&runVersion, "version", "", "version tag for the artifact (required)")
	_ = runCmd.MarkFlagRequired("version")
}

func runRelease(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if runApp == "" {
		runApp = cfg.Application
	}

	ctx := cmd.Context()
	service, cleanup, err := buildService(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := service.Release(ctx, application.ReleaseInput{
		Application: runApp,
		SourceRev:   runSourceRev,
		Version:     runVersion,
	})
	if err != nil {
		return err
	}

	printResult(result)
	return releaseErr(result.Status)
}

func releaseErr(status domain.RunStatus) error {
	if status != domain.RunStatusCommitted {
		return errNotCommitted
	}
	return nil
}

func printResult(result domain.RolloutResult) {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
		return
	}

	fmt.Printf("run:      %s\n", result.RunID)
	fmt.Printf("artifact: %s\n", result.Artifact)
	fmt.Printf("status:   %s\n", result.Status)
	if result.Reason != "" {
		fmt.Printf("reason:   %s\n", result.Reason)
	}
	if result.RollbackTarget != nil {
		fmt.Printf("restored: %s\n", result.RollbackTarget)
	}
}
