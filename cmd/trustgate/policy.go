package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trust-evidence/gate/pkg/gate"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect the fixed policy registry",
}

var policyBundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Print the fixed policy registry",
	Long: `Print every policy definition in the fixed registry evaluated on each
gate run: its scope, enforcing component, and acceptance tests.

Examples:
  trustgate policy bundle`,
	RunE: printPolicyBundle,
}

var policyVersionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "Print the policy version change log",
	Long: `Print the documented version-change log for the fixed policy registry,
for operator review of what changed and why.

Examples:
  trustgate policy versions`,
	RunE: printPolicyVersions,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyBundleCmd, policyVersionsCmd)
}

func printPolicyBundle(cmd *cobra.Command, args []string) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(gate.PolicyRegistry)
}

func printPolicyVersions(cmd *cobra.Command, args []string) error {
	if len(gate.PolicyVersionChangeLog) == 0 {
		fmt.Println("No recorded policy version changes.")
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(gate.PolicyVersionChangeLog)
}
