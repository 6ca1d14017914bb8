package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/trust-evidence/gate/pkg/tracestore"
)

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Run a retention sweep against the trace store",
}

var retentionRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Delete expired, non-held traces now",
	Long: `Run one retention sweep immediately rather than waiting for the
configured cron schedule. Traces under legal hold are always skipped.

Examples:
  trustgate retention run --config config.yaml`,
	RunE: runRetention,
}

func init() {
	rootCmd.AddCommand(retentionCmd)
	retentionCmd.AddCommand(retentionRunCmd)
}

func runRetention(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	traceStore, err := openTraceStore(&cfg.Sidecar)
	if err != nil {
		return err
	}
	defer traceStore.Close()

	lister, ok := traceStore.(tracestore.Lister)
	if !ok {
		return fmt.Errorf("configured trace store backend does not support retention listing")
	}

	result := tracestore.RunRetentionSweep(cmd.Context(), traceStore, lister, time.Now().UTC())
	fmt.Printf("Deleted: %d\n", len(result.Deleted))
	fmt.Printf("Skipped (legal hold): %d\n", len(result.SkippedHeld))
	if len(result.Errored) > 0 {
		fmt.Printf("Errored: %d\n", len(result.Errored))
		for id, err := range result.Errored {
			fmt.Printf("  %s: %v\n", id, err)
		}
	}
	return nil
}
