package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trust-evidence/gate/pkg/gate"
)

var killswitchFlags struct {
	statePath string
	mode      string
	domain    string
	claimType string
	reason    string
}

// killswitchState is the on-disk representation of a kill-switch halt,
// giving the CLI a durable view of state that otherwise lives only in the
// in-process *gate.KillSwitch each gate/sidecar process constructs at
// startup. Operators use `activate`/`clear` here to record an incident
// response decision. The file is read and written only by these CLI
// commands; `gate run` and `sidecar serve` construct a fresh
// *gate.KillSwitch and do not load it.
type killswitchState struct {
	Mode      gate.HaltMode  `json:"mode"`
	Domain    string         `json:"domain,omitempty"`
	ClaimType gate.ClaimType `json:"claim_type,omitempty"`
	Reason    string         `json:"reason,omitempty"`
}

var killswitchCmd = &cobra.Command{
	Use:   "killswitch",
	Short: "Inspect or control the kill-switch halt state",
}

var killswitchStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current kill-switch state",
	RunE:  killswitchStatus,
}

var killswitchActivateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Activate a system, domain, or claim-type halt",
	Long: `Activate the kill-switch at the given granularity.

Examples:
  trustgate killswitch activate --mode system --reason "manual incident response"
  trustgate killswitch activate --mode domain --domain finance --reason "incident-42"
  trustgate killswitch activate --mode claim-type --claim-type system --reason "incident-42"`,
	RunE: killswitchActivate,
}

var killswitchClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the kill-switch halt state",
	RunE:  killswitchClear,
}

func init() {
	rootCmd.AddCommand(killswitchCmd)
	killswitchCmd.AddCommand(killswitchStatusCmd, killswitchActivateCmd, killswitchClearCmd)

	killswitchCmd.PersistentFlags().StringVar(&killswitchFlags.statePath, "state", "killswitch.json", "path to the kill-switch state file")

	killswitchActivateCmd.Flags().StringVar(&killswitchFlags.mode, "mode", "system", "halt granularity: system, domain, claim-type")
	killswitchActivateCmd.Flags().StringVar(&killswitchFlags.domain, "domain", "", "domain name (required for --mode domain)")
	killswitchActivateCmd.Flags().StringVar(&killswitchFlags.claimType, "claim-type", "", "claim type (required for --mode claim-type)")
	killswitchActivateCmd.Flags().StringVar(&killswitchFlags.reason, "reason", "", "reason recorded with the halt")
	_ = killswitchActivateCmd.MarkFlagRequired("reason")
}

func loadKillswitchState(path string) (killswitchState, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return killswitchState{Mode: gate.HaltNone}, nil
	}
	if err != nil {
		return killswitchState{}, fmt.Errorf("failed to read %q: %w", path, err)
	}
	var st killswitchState
	if err := json.Unmarshal(data, &st); err != nil {
		return killswitchState{}, fmt.Errorf("failed to parse %q: %w", path, err)
	}
	return st, nil
}

func saveKillswitchState(path string, st killswitchState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal kill-switch state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	return nil
}

func killswitchStatus(cmd *cobra.Command, args []string) error {
	st, err := loadKillswitchState(killswitchFlags.statePath)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

func killswitchActivate(cmd *cobra.Command, args []string) error {
	var st killswitchState
	switch killswitchFlags.mode {
	case "system":
		st = killswitchState{Mode: gate.HaltSystem, Reason: killswitchFlags.reason}
	case "domain":
		if killswitchFlags.domain == "" {
			return fmt.Errorf("--domain is required for --mode domain")
		}
		st = killswitchState{Mode: gate.HaltDomain, Domain: killswitchFlags.domain, Reason: killswitchFlags.reason}
	case "claim-type":
		if killswitchFlags.claimType == "" {
			return fmt.Errorf("--claim-type is required for --mode claim-type")
		}
		st = killswitchState{Mode: gate.HaltClaimType, ClaimType: gate.ClaimType(killswitchFlags.claimType), Reason: killswitchFlags.reason}
	default:
		return fmt.Errorf("unknown --mode %q (expected system, domain, claim-type)", killswitchFlags.mode)
	}

	if err := saveKillswitchState(killswitchFlags.statePath, st); err != nil {
		return err
	}
	fmt.Printf("kill-switch activated: mode=%s reason=%q\n", st.Mode, st.Reason)
	return nil
}

func killswitchClear(cmd *cobra.Command, args []string) error {
	if err := saveKillswitchState(killswitchFlags.statePath, killswitchState{Mode: gate.HaltNone}); err != nil {
		return err
	}
	fmt.Println("kill-switch cleared")
	return nil
}
