package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trust-evidence/gate/pkg/gate"
	"github.com/trust-evidence/gate/pkg/replay"
)

var replayCmd = &cobra.Command{
	Use:   "replay <trace-id>",
	Short: "Re-run the claim engine against a stored trace",
	Long: `Reload a recorded trace, re-normalize its stored evidence, re-run the
claim engine against the stored sanitized prompt window, and compare the
replayed outcome against what was originally recorded.

A replayed/recorded mismatch does not halt the system on its own; it is
surfaced for a human or downstream policy to act on: the command reports
the mismatches on stderr and exits non-zero.

Examples:
  trustgate replay 6f1b... --config config.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	traceID := args[0]

	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	systemClaims, err := loadSystemClaims(cfg.Gate.SystemClaimsPath)
	if err != nil {
		return err
	}

	traceStore, err := openTraceStore(&cfg.Sidecar)
	if err != nil {
		return err
	}
	defer traceStore.Close()

	result, err := replay.Evaluate(cmd.Context(), traceStore, traceID, systemClaims, gate.TrustedTools{})
	if err != nil {
		return fmt.Errorf("replay failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}

	if !result.Equivalent {
		fmt.Fprintf(os.Stderr, "replay diverged from recorded outcome: %v\n", result.Mismatches)
		os.Exit(1)
	}
	return nil
}
