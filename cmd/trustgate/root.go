package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "trustgate",
	Short: "Trust-and-evidence gate for LLM host applications",
	Long: `trustgate is a verification layer that sits between an LLM host
application and its end users: it checks a draft answer's claims against
retrieved evidence, enforces jurisdiction and policy rules, and produces a
hash-chained, replayable audit trail for every turn.

Subcommands:
  gate        - Run the embedded gate pipeline directly
  sidecar     - Run the standalone evidence sidecar HTTP service
  audit-pack  - Export a tamper-evident audit pack for a recorded trace
  replay      - Re-run the claim engine against a stored trace
  retention   - Run a retention sweep against a trace store
  killswitch  - Inspect or control the kill-switch halt state
  policy      - Inspect the fixed policy registry and its change log`,
	Version: Version,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.CompletionOptions.DisableDefaultCmd = false
}
