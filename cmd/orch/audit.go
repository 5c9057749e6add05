package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/calvinwilliamsjr/orch/internal/audit"
	"github.com/calvinwilliamsjr/orch/internal/config"
	"github.com/calvinwilliamsjr/orch/pkg/models"
)

var auditJSON bool

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List the invocation audit log",
	Long: `List every recorded plan execution: planned versus invoked agents,
completion rate, critical-agent satisfaction and outcome.

Entries are append-only; nothing in this log is ever updated or deleted.`,
	RunE: runAuditList,
}

func init() {
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "Output in JSON format")
}

func runAuditList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	auditPath := cfg.Audit.Path
	if auditPath == "" {
		auditPath = audit.DefaultDBPath(".")
	}
	if _, err := os.Stat(auditPath); os.IsNotExist(err) {
		fmt.Println("no audit entries recorded yet")
		return nil
	}

	store, err := audit.Open(auditPath)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer store.Close()

	entries, err := store.List()
	if err != nil {
		return err
	}

	if auditJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("no audit entries recorded yet")
		return nil
	}

	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)
	warn := color.New(color.FgYellow)

	for _, entry := range entries {
		fmt.Printf("%s  %s\n", entry.Timestamp.Format(time.RFC3339), entry.RequestSummary)
		fmt.Printf("  scope %s, %d planned, %d invoked (%.0f%%)",
			entry.Scope, len(entry.PlannedAgents), len(entry.InvokedAgents),
			entry.CompletionRate*100)
		switch entry.Outcome {
		case models.PlanCompleted:
			ok.Printf("  %s\n", entry.Outcome)
		case models.PlanFailed, models.PlanUnverified:
			bad.Printf("  %s\n", entry.Outcome)
		default:
			warn.Printf("  %s\n", entry.Outcome)
		}
		if !entry.CriticalAgentsSatisfied {
			bad.Println("  ! critical agents not satisfied")
		}
		for _, issue := range entry.Issues {
			warn.Printf("  ! %s\n", issue)
		}
	}
	return nil
}
