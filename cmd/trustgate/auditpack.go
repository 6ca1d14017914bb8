package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/trust-evidence/gate/pkg/auditpack"
)

var auditPackFlags struct {
	output string
}

var auditPackCmd = &cobra.Command{
	Use:   "audit-pack",
	Short: "Build and export audit packs for recorded traces",
}

var auditPackExportCmd = &cobra.Command{
	Use:   "export <trace-id>",
	Short: "Export a tamper-evident audit pack for a recorded trace",
	Long: `Load a recorded trace from the configured trace store, re-verify its
integrity hashes and event chain, and package a ZIP audit pack containing
the decision record, evidence sources, policy evaluation results, incident
events, an attestation artifact, and a redacted chain-of-custody
narrative.

Examples:
  trustgate audit-pack export 6f1b... --config config.yaml -o pack.zip`,
	Args: cobra.ExactArgs(1),
	RunE: exportAuditPack,
}

func init() {
	rootCmd.AddCommand(auditPackCmd)
	auditPackCmd.AddCommand(auditPackExportCmd)

	auditPackExportCmd.Flags().StringVarP(&auditPackFlags.output, "output", "o", "", "output zip path (default: <trace-id>.zip)")
}

func exportAuditPack(cmd *cobra.Command, args []string) error {
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

	record, events, err := traceStore.Load(cmd.Context(), traceID)
	if err != nil {
		return fmt.Errorf("failed to load trace %s: %w", traceID, err)
	}

	pack, err := auditpack.BuildHostPack(auditpack.BuildInput{
		Record:                  record,
		Events:                  events,
		SystemClaims:            systemClaims,
		TestsExecuted:           []string{"go test ./..."},
		LastEvaluationTimestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("failed to build audit pack: %w", err)
	}

	outPath := auditPackFlags.output
	if outPath == "" {
		outPath = fmt.Sprintf("%s.zip", traceID)
	}
	if err := os.WriteFile(outPath, pack.Zip, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}

	fmt.Printf("Audit pack written to %s (%d bytes)\n", outPath, len(pack.Zip))
	fmt.Printf("  Narrative hash: %s\n", pack.Manifest.NarrativeHash)
	fmt.Printf("  Retention mode: %s\n", pack.Manifest.Retention.Mode)
	return nil
}
