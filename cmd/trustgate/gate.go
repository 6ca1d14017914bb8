package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/trust-evidence/gate/pkg/gate"
	"github.com/trust-evidence/gate/pkg/telemetry/metrics"
)

var gateFlags struct {
	draftFile    string
	evidenceFile string
	hostFile     string
	enforceMode  string
	format       string
}

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Run the embedded gate pipeline directly",
	Long: `Run the embedded gate pipeline (component H) over a draft answer and
raw evidence, without a sidecar or trace store. Useful for exercising the
pipeline locally and inspecting its response contract.`,
}

var gateRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate one draft answer against raw evidence",
	Long: `Evaluate a single draft answer against a raw evidence bundle and print
the resulting response contract.

Examples:
  # Run against files
  trustgate gate run --draft draft.txt --evidence evidence.json --host host.json

  # Run with observe-mode enforcement
  trustgate gate run --draft draft.txt --evidence evidence.json --enforce observe`,
	RunE: runGate,
}

func init() {
	rootCmd.AddCommand(gateCmd)
	gateCmd.AddCommand(gateRunCmd)

	gateRunCmd.Flags().StringVar(&gateFlags.draftFile, "draft", "", "path to a file containing the draft answer text")
	gateRunCmd.Flags().StringVar(&gateFlags.evidenceFile, "evidence", "", "path to a JSON array of raw evidence items")
	gateRunCmd.Flags().StringVar(&gateFlags.hostFile, "host", "", "path to a JSON-encoded HostContext (optional)")
	gateRunCmd.Flags().StringVar(&gateFlags.enforceMode, "enforce", "enforce", "enforcement mode: enforce, observe")
	gateRunCmd.Flags().StringVar(&gateFlags.format, "format", "json", "output format: json, text")
	_ = gateRunCmd.MarkFlagRequired("draft")
	_ = gateRunCmd.MarkFlagRequired("evidence")
}

func runGate(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	draftBytes, err := os.ReadFile(gateFlags.draftFile)
	if err != nil {
		return fmt.Errorf("failed to read draft %q: %w", gateFlags.draftFile, err)
	}

	evidenceBytes, err := os.ReadFile(gateFlags.evidenceFile)
	if err != nil {
		return fmt.Errorf("failed to read evidence %q: %w", gateFlags.evidenceFile, err)
	}
	var rawEvidence []gate.RawEvidenceItem
	if err := json.Unmarshal(evidenceBytes, &rawEvidence); err != nil {
		return fmt.Errorf("failed to parse evidence %q: %w", gateFlags.evidenceFile, err)
	}

	var host gate.HostContext
	if gateFlags.hostFile != "" {
		hostBytes, err := os.ReadFile(gateFlags.hostFile)
		if err != nil {
			return fmt.Errorf("failed to read host context %q: %w", gateFlags.hostFile, err)
		}
		if err := json.Unmarshal(hostBytes, &host); err != nil {
			return fmt.Errorf("failed to parse host context %q: %w", gateFlags.hostFile, err)
		}
	}
	host.RawModelOutput = string(draftBytes)

	systemClaims, err := loadSystemClaims(cfg.Gate.SystemClaimsPath)
	if err != nil {
		return err
	}

	enforce := gate.EnforceModeEnforce
	if gateFlags.enforceMode == "observe" {
		enforce = gate.EnforceModeObserve
	}

	deps := gate.GateDependencies{
		KillSwitch:   gate.New(),
		SystemClaims: systemClaims,
		TrustedTools: gate.TrustedTools{},
		Enforce:      enforce,
	}

	started := time.Now()
	contract, err := gate.Run(deps, host, string(draftBytes), rawEvidence)
	if err != nil {
		return fmt.Errorf("gate run failed: %w", err)
	}

	if cfg.Telemetry.Metrics.Enabled {
		collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
		collector.RecordDecision(contract.Decision, time.Since(started))
		for _, check := range contract.PolicyTrace {
			result := "fail"
			if check.Passed {
				result = "pass"
			}
			collector.RecordPolicyCheck(check.PolicyID, result)
		}
		for _, red := range contract.DecisionRecord.RedactionEvents {
			collector.RecordRedaction(red.Detector, red.Count)
		}
	}

	switch gateFlags.format {
	case "text":
		fmt.Printf("Decision: %s\n", contract.Decision)
		fmt.Printf("Trace ID: %s\n", contract.TraceID)
		fmt.Printf("Failure Mode: %s\n", contract.FailureMode)
		fmt.Printf("Answer: %s\n", contract.AnswerText)
		return nil
	default:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(contract)
	}
}
