package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/calvinwilliamsjr/orch/internal/config"
	"github.com/calvinwilliamsjr/orch/internal/consensus"
	"github.com/calvinwilliamsjr/orch/internal/registry"
	"github.com/calvinwilliamsjr/orch/internal/tui"
	"github.com/calvinwilliamsjr/orch/pkg/models"
)

var (
	consensusAgents   []string
	consensusSimulate bool
)

var consensusCmd = &cobra.Command{
	Use:   "consensus <topic>",
	Short: "Run a quorum vote across the team",
	Long: `Put a topic to the discovered agents and compute the outcome.

Votes fan out concurrently under the scheduler's concurrency bound. The
outcome is approved only when enough participants respond (the
participation floor) and enough responders approve (the quorum). Too few
responses leave the topic pending; it is never silently approved.

Examples:
  orch consensus "adopt the new deployment pipeline"
  orch consensus "merge the refactor" --agents backend-dev,qa-engineer`,
	Args: cobra.ExactArgs(1),
	RunE: runConsensus,
}

func init() {
	consensusCmd.Flags().StringSliceVar(&consensusAgents, "agents", nil, "Poll only the named agents")
	consensusCmd.Flags().BoolVar(&consensusSimulate, "simulate", false, "Use the simulated worker (no API key needed)")
}

func runConsensus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	participants := consensusAgents
	if len(participants) == 0 {
		reg, err := registry.Discover(cfg.Registry.Path)
		if err != nil {
			return err
		}
		participants = reg.Available()
	}

	w, err := buildWorker(cfg, consensusSimulate)
	if err != nil {
		return err
	}

	engine := consensus.New(consensus.Config{
		Quorum:           cfg.Consensus.Quorum,
		MinParticipation: cfg.Consensus.MinParticipation,
		VoteTimeout:      cfg.Consensus.VoteTimeout,
		MaxConcurrency:   cfg.Scheduler.MaxConcurrency,
	}, w)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := engine.Decide(ctx, args[0], participants)
	if err != nil {
		return err
	}

	fmt.Print(tui.RenderConsensus(result))
	for _, ballot := range result.Ballots {
		if ballot.Feedback != "" {
			fmt.Printf("  %s (%s): %s\n", ballot.AgentID, ballot.Vote, ballot.Feedback)
		}
	}

	if result.Outcome != models.ConsensusApproved {
		os.Exit(1)
	}
	return nil
}
