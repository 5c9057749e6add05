package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "orch",
	Short: "Workflow orchestration over a directory-discovered agent pool",
	Long: `orch turns a work request into a dependency-ordered execution plan and
dispatches its units to a pool of agents discovered from a manifest
directory.

Core capabilities:
- Parses "then" / "in parallel" phrasing into staged workflow plans
- Resolves whole-team, named-subset and capability-scoped requests
- Blocks whole-team requests that are missing critical agents
- Executes stages over a bounded worker pool with retries
- Runs quorum votes across the team
- Records every invocation in an append-only audit log`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(consensusCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
