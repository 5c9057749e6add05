// Package consensus runs quorum vote rounds among a set of agents.
// A vote round is just another workflow plan: each participant becomes a
// work unit and the round is executed through the dispatcher, so vote
// collection inherits its concurrency bound, timeout, and cancellation
// semantics.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calvinwilliamsjr/orch/internal/dispatch"
	"github.com/calvinwilliamsjr/orch/pkg/models"
)

// ErrNoParticipants indicates a vote round was requested with an empty
// participant set.
var ErrNoParticipants = errors.New("consensus round has no participants")

// Voter is the collaborator boundary for casting a single ballot. A nil
// ballot or an error counts as a non-response; an abstain ballot counts
// as a response.
type Voter interface {
	Vote(ctx context.Context, agentID, topic string) (*models.Ballot, error)
}

// VoterFunc adapts a function to the Voter interface.
type VoterFunc func(ctx context.Context, agentID, topic string) (*models.Ballot, error)

// Vote calls f.
func (f VoterFunc) Vote(ctx context.Context, agentID, topic string) (*models.Ballot, error) {
	return f(ctx, agentID, topic)
}

// Config holds consensus tunables.
type Config struct {
	// Quorum is the minimum approval fraction among responders.
	Quorum float64
	// MinParticipation is the participation floor: the fraction of
	// invited participants that must respond for the outcome to be
	// decisive.
	MinParticipation float64
	// VoteTimeout bounds a single participant's vote.
	VoteTimeout time.Duration
	// MaxConcurrency bounds concurrent vote invocations.
	MaxConcurrency int
}

// Engine decides consensus topics by dispatching vote units to agents.
type Engine struct {
	cfg   Config
	voter Voter
}

// New creates a consensus engine.
func New(cfg Config, voter Voter) *Engine {
	if cfg.Quorum <= 0 {
		cfg.Quorum = 0.7
	}
	if cfg.MinParticipation <= 0 {
		cfg.MinParticipation = 0.8
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	return &Engine{cfg: cfg, voter: voter}
}

// Decide puts a topic to the participants and computes the outcome.
// All votes run in a single stage. A failed or timed-out vote is a
// non-response: it lowers the participation rate but never aborts the
// round. If responses fall below the participation floor the outcome is
// pending regardless of how the responders voted.
func (e *Engine) Decide(ctx context.Context, topic string, participants []string) (*models.ConsensusTopic, error) {
	if len(participants) == 0 {
		return nil, ErrNoParticipants
	}

	stage := &models.Stage{Index: 0}
	assignments := make(map[string]string, len(participants))
	for i, agentID := range participants {
		unitID := fmt.Sprintf("vote.%d", i+1)
		stage.Units = append(stage.Units, &models.WorkUnit{
			ID:     unitID,
			Title:  fmt.Sprintf("vote on: %s", topic),
			Status: models.UnitStatusPending,
		})
		assignments[unitID] = agentID
	}
	plan := &models.WorkflowPlan{
		ID:        uuid.New().String()[:8],
		Request:   topic,
		Stages:    []*models.Stage{stage},
		CreatedAt: time.Now(),
	}

	var mu sync.Mutex
	var ballots []models.Ballot
	collector := dispatch.InvokerFunc(func(ctx context.Context, agentID string, unit *models.WorkUnit) (*dispatch.Result, error) {
		ballot, err := e.voter.Vote(ctx, agentID, topic)
		if err != nil {
			return nil, err
		}
		if ballot == nil {
			return &dispatch.Result{Success: false, Err: "no ballot returned"}, nil
		}
		ballot.AgentID = agentID
		mu.Lock()
		ballots = append(ballots, *ballot)
		mu.Unlock()
		return &dispatch.Result{Success: true, Artifact: ballot}, nil
	})

	// A vote is cast once or not at all: no retries, and no audit entry
	// for the internal vote plan.
	d := dispatch.New(dispatch.Config{
		MaxConcurrency: e.cfg.MaxConcurrency,
		MaxRetries:     0,
		RetryBackoff:   time.Millisecond,
		UnitTimeout:    e.cfg.VoteTimeout,
	}, collector)

	if _, err := d.Execute(ctx, dispatch.ExecRequest{
		Workflow:    plan,
		Assignments: assignments,
	}); err != nil {
		return nil, fmt.Errorf("dispatch vote round: %w", err)
	}

	result := &models.ConsensusTopic{
		Topic:            topic,
		Participants:     append([]string(nil), participants...),
		Ballots:          ballots,
		Quorum:           e.cfg.Quorum,
		MinParticipation: e.cfg.MinParticipation,
		DecidedAt:        time.Now(),
	}
	tally(result)
	return result, nil
}

// tally computes the rates and outcome for a completed round.
// Abstain ballots count toward participation but not approval, so enough
// abstentions can sink a topic that every non-abstainer approved.
func tally(t *models.ConsensusTopic) {
	responded := t.Responded()
	t.ParticipationRate = ratio(responded, len(t.Participants))

	if t.ParticipationRate < t.MinParticipation && !closeEnough(t.ParticipationRate, t.MinParticipation) {
		t.Outcome = models.ConsensusPending
		t.ApprovalRate = ratio(t.Approvals(), responded)
		return
	}

	t.ApprovalRate = ratio(t.Approvals(), responded)
	if t.ApprovalRate >= t.Quorum || closeEnough(t.ApprovalRate, t.Quorum) {
		t.Outcome = models.ConsensusApproved
	} else {
		t.Outcome = models.ConsensusRejected
	}
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// closeEnough absorbs float division noise at the threshold boundary,
// so 7 approvals out of 10 responders meets a 0.7 quorum.
func closeEnough(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
