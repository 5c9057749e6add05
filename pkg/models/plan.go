package models

import "time"

// RequestScope identifies how an invocation request selects agents.
type RequestScope string

const (
	// ScopeWholeTeam selects every agent in the discovered registry.
	ScopeWholeTeam RequestScope = "whole_team"
	// ScopeNamed selects an explicit list of agent IDs.
	ScopeNamed RequestScope = "named"
	// ScopeCapability selects agents declaring a capability tag.
	ScopeCapability RequestScope = "capability"
)

// CompletenessResult holds the outcome of a whole-team completeness check.
type CompletenessResult struct {
	// OK is true when the candidate set satisfies the completeness rules.
	OK bool `json:"ok"`
	// Missing lists critical agent IDs absent from the candidate set.
	Missing []string `json:"missing,omitempty"`
	// Discovered is the size of the full discovered registry.
	Discovered int `json:"discovered"`
	// Candidates is the size of the candidate set that was checked.
	Candidates int `json:"candidates"`
}

// InvocationPlan is the planner's resolution of a request into a concrete
// agent list with resource estimates and gating state.
type InvocationPlan struct {
	// ID is the unique identifier for this plan.
	ID string `json:"id"`
	// RequestSummary is a short description of the originating request.
	RequestSummary string `json:"request_summary"`
	// Scope is how the request selected agents.
	Scope RequestScope `json:"scope"`
	// AgentIDs is the ordered candidate agent list.
	AgentIDs []string `json:"agent_ids"`
	// EstimatedTime is the projected wall-clock duration.
	EstimatedTime time.Duration `json:"estimated_time"`
	// EstimatedCost is the projected total cost. Informational only; it
	// never blocks execution.
	EstimatedCost float64 `json:"estimated_cost"`
	// RequiresConfirmation is true when the agent count exceeds the
	// configured confirmation threshold. Execution must not start until
	// Confirmed is set.
	RequiresConfirmation bool `json:"requires_confirmation"`
	// Confirmed records the explicit accept signal from the requester.
	Confirmed bool `json:"confirmed"`
	// Completeness is the whole-team completeness check result, when the
	// scope is whole-team.
	Completeness *CompletenessResult `json:"completeness,omitempty"`
	// CreatedAt is when the plan was created.
	CreatedAt time.Time `json:"created_at"`
}

// PendingConfirmation returns true while the plan is gated on an explicit
// accept signal.
func (p *InvocationPlan) PendingConfirmation() bool {
	return p.RequiresConfirmation && !p.Confirmed
}
