package invoke

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/calvinwilliamsjr/orch/internal/dispatch"
	"github.com/calvinwilliamsjr/orch/pkg/models"
)

// Simulator is an offline worker that completes every unit and approves
// every topic after a short deterministic delay. It implements
// dispatch.Invoker and consensus.Voter, so the full pipeline can be
// exercised without an API key.
type Simulator struct {
	// Delay is the simulated per-invocation latency. Zero means no delay.
	Delay time.Duration
	// FailUnits lists unit IDs that should report failure, for rehearsing
	// retry and partial-completion paths.
	FailUnits map[string]bool
}

// NewSimulator creates a simulator with the given latency.
func NewSimulator(delay time.Duration) *Simulator {
	return &Simulator{Delay: delay}
}

// Invoke implements dispatch.Invoker.
func (s *Simulator) Invoke(ctx context.Context, agentID string, unit *models.WorkUnit) (*dispatch.Result, error) {
	if err := s.wait(ctx, unit.ID); err != nil {
		return nil, err
	}
	if s.FailUnits[unit.ID] {
		return &dispatch.Result{Success: false, Err: "simulated failure"}, nil
	}
	return &dispatch.Result{
		Success:  true,
		Artifact: fmt.Sprintf("simulated completion of %s by %s", unit.ID, agentID),
	}, nil
}

// Vote implements consensus.Voter.
func (s *Simulator) Vote(ctx context.Context, agentID, topic string) (*models.Ballot, error) {
	if err := s.wait(ctx, agentID); err != nil {
		return nil, err
	}
	return &models.Ballot{
		AgentID:  agentID,
		Vote:     models.VoteApprove,
		Feedback: "simulated approval",
	}, nil
}

// wait sleeps for the configured delay with a small per-key jitter so
// concurrent units do not finish in lockstep.
func (s *Simulator) wait(ctx context.Context, key string) error {
	if s.Delay <= 0 {
		return nil
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	jitter := time.Duration(h.Sum32()%100) * s.Delay / 400
	select {
	case <-time.After(s.Delay + jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
