package models

import "time"

// AgentOutcome records what happened to a single agent in an invocation.
type AgentOutcome string

const (
	// AgentInvoked means the agent was dispatched and returned a result.
	AgentInvoked AgentOutcome = "invoked"
	// AgentFailed means the agent was dispatched and failed after retries.
	AgentFailed AgentOutcome = "failed"
	// AgentSkipped means the agent was planned but never dispatched.
	AgentSkipped AgentOutcome = "skipped"
)

// AuditEntry is one immutable record of a planned invocation and what
// actually executed. Entries are append-only and never mutated or deleted
// after being written.
type AuditEntry struct {
	// ID is the unique identifier for this entry.
	ID string `json:"id"`
	// Timestamp is when the entry was recorded.
	Timestamp time.Time `json:"timestamp"`
	// RequestSummary describes the originating request.
	RequestSummary string `json:"request_summary"`
	// Scope is the request scope that produced the plan.
	Scope RequestScope `json:"scope"`
	// PlannedAgents lists every agent the plan intended to invoke.
	PlannedAgents []string `json:"planned_agents"`
	// InvokedAgents lists the agents actually dispatched.
	InvokedAgents []string `json:"invoked_agents"`
	// Outcomes maps agent ID to its per-agent outcome.
	Outcomes map[string]AgentOutcome `json:"outcomes"`
	// CompletionRate is invoked divided by planned.
	CompletionRate float64 `json:"completion_rate"`
	// CriticalAgentsSatisfied is false if any critical agent was planned
	// but not invoked.
	CriticalAgentsSatisfied bool `json:"critical_agents_satisfied"`
	// Incomplete flags whole-team invocations whose completion rate
	// fell below 1.0. Incomplete entries must be surfaced to the caller.
	Incomplete bool `json:"incomplete"`
	// Outcome is the overall plan outcome.
	Outcome PlanOutcome `json:"outcome"`
	// Issues lists human-readable reasons for any shortfall.
	Issues []string `json:"issues,omitempty"`
}
