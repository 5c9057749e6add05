package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/calvinwilliamsjr/orch/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display the effective configuration",
	Long: `Display the effective configuration after merging defaults, the XDG user
config, the project .orch.yaml, and environment variables.

Configuration is stored at ~/.config/orch/config.yaml
Project-specific overrides can be placed in .orch.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		displayConfig(cfg)
	},
}

func displayConfig(cfg *config.Config) {
	apiKeyDisplay := "(not set)"
	if cfg.Anthropic.APIKey != "" {
		apiKeyDisplay = "****"
	}

	fmt.Printf("registry.path: %s\n", cfg.Registry.Path)
	fmt.Printf("registry.min_team_fraction: %g\n", cfg.Registry.MinTeamFraction)
	fmt.Printf("planner.confirmation_threshold: %d\n", cfg.Planner.ConfirmationThreshold)
	fmt.Printf("planner.per_agent_time: %s\n", cfg.Planner.PerAgentTime)
	fmt.Printf("planner.per_agent_cost: %g\n", cfg.Planner.PerAgentCost)
	fmt.Printf("scheduler.max_concurrency: %d\n", cfg.Scheduler.MaxConcurrency)
	fmt.Printf("scheduler.max_retries: %d\n", cfg.Scheduler.MaxRetries)
	fmt.Printf("scheduler.retry_backoff: %s\n", cfg.Scheduler.RetryBackoff)
	fmt.Printf("scheduler.unit_timeout: %s\n", cfg.Scheduler.UnitTimeout)
	fmt.Printf("scheduler.fail_fast: %t\n", cfg.Scheduler.FailFast)
	fmt.Printf("consensus.quorum: %g\n", cfg.Consensus.Quorum)
	fmt.Printf("consensus.min_participation: %g\n", cfg.Consensus.MinParticipation)
	fmt.Printf("consensus.vote_timeout: %s\n", cfg.Consensus.VoteTimeout)
	fmt.Printf("audit.path: %s\n", cfg.Audit.Path)
	fmt.Printf("anthropic.api_key: %s\n", apiKeyDisplay)
	fmt.Printf("anthropic.model: %s\n", cfg.Anthropic.Model)

	if project := config.GetProjectConfigPath(); project != "" {
		fmt.Printf("\nproject config: %s\n", project)
	}
	fmt.Printf("user config: %s\n", config.GetUserConfigPath())
}
