package main

import (
	"context"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/calvinwilliamsjr/orch/internal/config"
	"github.com/calvinwilliamsjr/orch/internal/dispatch"
	"github.com/calvinwilliamsjr/orch/internal/invoke"
	"github.com/calvinwilliamsjr/orch/pkg/models"
)

// worker is the combined boundary the CLI hands to the dispatcher and the
// consensus engine: it can run work units and cast ballots.
type worker interface {
	Invoke(ctx context.Context, agentID string, unit *models.WorkUnit) (*dispatch.Result, error)
	Vote(ctx context.Context, agentID, topic string) (*models.Ballot, error)
}

// buildWorker selects the worker implementation. The simulated worker
// needs no API key and completes every unit after a short delay.
func buildWorker(cfg *config.Config, simulate bool) (worker, error) {
	if simulate {
		return invoke.NewSimulator(200 * time.Millisecond), nil
	}
	return invoke.NewClient(invoke.ClientConfig{
		Model:  anthropic.Model(cfg.Anthropic.Model),
		APIKey: cfg.Anthropic.APIKey,
	})
}
