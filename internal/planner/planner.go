// Package planner resolves invocation requests into concrete agent lists
// with completeness enforcement, resource estimates, and a confirmation gate.
package planner

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/calvinwilliamsjr/orch/internal/registry"
	"github.com/calvinwilliamsjr/orch/pkg/models"
)

// wholeTeamPhrases map request text to a whole-team scope.
var wholeTeamPhrases = []string{
	"whole team", "everyone", "full team", "all agents", "complete review",
}

// reviewWords default a comprehensive request to whole-team scope.
var reviewWords = []string{"review", "evaluate", "assess", "analyze"}

// ErrUnresolvedScope indicates the request was empty: no agents, no
// capability, no text.
var ErrUnresolvedScope = errors.New("cannot resolve request scope")

// IncompleteTeamError indicates a whole-team request is missing critical
// agents or covers too little of the discovered set. The request is
// blocked entirely; it is never downgraded to a subset invocation.
type IncompleteTeamError struct {
	// Missing lists the absent critical agent IDs.
	Missing []string
	// Discovered is the full discovered agent count.
	Discovered int
	// Candidates is the available candidate count.
	Candidates int
}

func (e *IncompleteTeamError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("whole-team request blocked: missing critical agents: %s",
			strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("whole-team request blocked: only %d of %d discovered agents available",
		e.Candidates, e.Discovered)
}

// Config holds the planner tunables.
type Config struct {
	// ConfirmationThreshold is the agent count above which execution
	// blocks on explicit confirmation.
	ConfirmationThreshold int
	// PerAgentTime is the estimated time per agent invocation.
	PerAgentTime time.Duration
	// PerAgentCost is the estimated cost per agent invocation.
	PerAgentCost float64
	// MaxConcurrency is the dispatcher's concurrency bound, used for the
	// wall-clock time estimate.
	MaxConcurrency int
	// MinTeamFraction is the whole-team coverage floor.
	MinTeamFraction float64
}

// Planner turns requests into invocation plans against a registry snapshot.
type Planner struct {
	cfg Config
}

// New creates a Planner with the given configuration.
func New(cfg Config) *Planner {
	if cfg.ConfirmationThreshold <= 0 {
		cfg.ConfirmationThreshold = 10
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if cfg.MinTeamFraction <= 0 {
		cfg.MinTeamFraction = 0.9
	}
	return &Planner{cfg: cfg}
}

// Request describes an invocation request. AgentIDs and Capability select
// explicit scopes; otherwise the scope is derived from Text.
type Request struct {
	// Text is the free-form request.
	Text string
	// AgentIDs selects a named subset when non-empty.
	AgentIDs []string
	// Capability selects a capability-filtered subset when non-empty.
	Capability string
}

// DetectScope resolves the scope of a free-text request against the fixed
// phrase table.
func DetectScope(text string) (models.RequestScope, bool) {
	lower := strings.ToLower(text)
	for _, phrase := range wholeTeamPhrases {
		if strings.Contains(lower, phrase) {
			return models.ScopeWholeTeam, true
		}
	}
	for _, word := range reviewWords {
		if strings.Contains(lower, word) {
			return models.ScopeWholeTeam, true
		}
	}
	return "", false
}

// Plan resolves the request into a concrete agent list. Whole-team requests
// are validated for completeness and fail with *IncompleteTeamError rather
// than truncating. Plans above the confirmation threshold come back in a
// pending-confirmation state; execution must not proceed until Confirm.
func (p *Planner) Plan(req Request, reg *registry.Registry) (*models.InvocationPlan, error) {
	plan := &models.InvocationPlan{
		ID:             uuid.New().String()[:8],
		RequestSummary: summarize(req),
		CreatedAt:      time.Now(),
	}

	switch {
	case len(req.AgentIDs) > 0:
		plan.Scope = models.ScopeNamed
		for _, id := range req.AgentIDs {
			if reg.Get(id) == nil {
				return nil, fmt.Errorf("unknown agent %q in request", id)
			}
		}
		plan.AgentIDs = append(plan.AgentIDs, req.AgentIDs...)

	case req.Capability != "":
		plan.Scope = models.ScopeCapability
		plan.AgentIDs = reg.WithCapability(req.Capability)
		if len(plan.AgentIDs) == 0 {
			return nil, fmt.Errorf("no discovered agent declares capability %q", req.Capability)
		}

	default:
		if strings.TrimSpace(req.Text) == "" {
			return nil, ErrUnresolvedScope
		}
		// Requests that match no phrase still go to the full team, same
		// completeness and confirmation gates as an explicit whole-team ask.
		scope, ok := DetectScope(req.Text)
		if !ok {
			scope = models.ScopeWholeTeam
		}
		plan.Scope = scope

		candidates := reg.Available()
		completeness := reg.ValidateCompleteness(candidates, p.cfg.MinTeamFraction)
		plan.Completeness = &completeness
		if !completeness.OK {
			return nil, &IncompleteTeamError{
				Missing:    completeness.Missing,
				Discovered: completeness.Discovered,
				Candidates: completeness.Candidates,
			}
		}
		plan.AgentIDs = candidates
	}

	p.estimate(plan)
	plan.RequiresConfirmation = len(plan.AgentIDs) > p.cfg.ConfirmationThreshold
	return plan, nil
}

// Confirm records the requester's explicit accept signal.
func (p *Planner) Confirm(plan *models.InvocationPlan) {
	plan.Confirmed = true
}

// estimate fills the linear time and cost model. The estimate is purely
// informational and never blocks execution.
func (p *Planner) estimate(plan *models.InvocationPlan) {
	n := len(plan.AgentIDs)
	waves := int(math.Ceil(float64(n) / float64(p.cfg.MaxConcurrency)))
	plan.EstimatedTime = time.Duration(waves) * p.cfg.PerAgentTime
	plan.EstimatedCost = float64(n) * p.cfg.PerAgentCost
}

// summarize produces the request summary recorded on plans and audit entries.
func summarize(req Request) string {
	switch {
	case req.Text != "":
		return req.Text
	case len(req.AgentIDs) > 0:
		return fmt.Sprintf("named subset: %s", strings.Join(req.AgentIDs, ", "))
	case req.Capability != "":
		return fmt.Sprintf("capability subset: %s", req.Capability)
	default:
		return "(empty request)"
	}
}
