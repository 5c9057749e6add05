package dispatch

import "time"

// EventType represents the type of dispatcher event.
type EventType string

const (
	// EventStageStarted indicates a stage has begun execution.
	EventStageStarted EventType = "stage_started"
	// EventStageCompleted indicates every unit of a stage is terminal.
	EventStageCompleted EventType = "stage_completed"
	// EventUnitStarted indicates a unit was dispatched to an agent.
	EventUnitStarted EventType = "unit_started"
	// EventUnitCompleted indicates a unit finished successfully.
	EventUnitCompleted EventType = "unit_completed"
	// EventUnitRetrying indicates a failed unit is being retried.
	EventUnitRetrying EventType = "unit_retrying"
	// EventUnitFailed indicates a unit failed with retries exhausted.
	EventUnitFailed EventType = "unit_failed"
	// EventUnitCancelled indicates a unit was cancelled before completion.
	EventUnitCancelled EventType = "unit_cancelled"
	// EventPlanDone indicates the whole plan reached a terminal outcome.
	EventPlanDone EventType = "plan_done"
)

// Event is emitted by the dispatcher as execution progresses.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// PlanID is the workflow plan being executed.
	PlanID string
	// StageIndex is the stage the event relates to, if applicable.
	StageIndex int
	// UnitID is the unit the event relates to, if applicable.
	UnitID string
	// AgentID is the agent the unit was dispatched to, if applicable.
	AgentID string
	// Attempt is the invocation attempt number (1-indexed).
	Attempt int
	// Message provides additional context.
	Message string
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
