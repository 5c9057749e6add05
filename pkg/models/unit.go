package models

import "time"

// UnitStatus represents the current state of a work unit.
type UnitStatus string

const (
	// UnitStatusPending indicates the unit's stage has not started.
	UnitStatusPending UnitStatus = "pending"
	// UnitStatusReady indicates the unit is waiting for a concurrency slot.
	UnitStatusReady UnitStatus = "ready"
	// UnitStatusRunning indicates the unit has been dispatched to an agent.
	UnitStatusRunning UnitStatus = "running"
	// UnitStatusDone indicates the unit completed successfully.
	UnitStatusDone UnitStatus = "done"
	// UnitStatusFailed indicates the unit failed with retries exhausted.
	UnitStatusFailed UnitStatus = "failed"
	// UnitStatusCancelled indicates the unit was cancelled before completion.
	UnitStatusCancelled UnitStatus = "cancelled"
)

// Valid returns true if the status is a known value.
func (s UnitStatus) Valid() bool {
	switch s {
	case UnitStatusPending, UnitStatusReady, UnitStatusRunning,
		UnitStatusDone, UnitStatusFailed, UnitStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the status is a terminal state.
func (s UnitStatus) Terminal() bool {
	switch s {
	case UnitStatusDone, UnitStatusFailed, UnitStatusCancelled:
		return true
	default:
		return false
	}
}

// WorkUnit represents one unit of work in a workflow plan.
type WorkUnit struct {
	// ID is the opaque identifier for this unit (often hierarchical, e.g. "1.2").
	ID string `json:"id"`
	// Title is the short description of the unit, if any.
	Title string `json:"title,omitempty"`
	// Capabilities lists the capability tags an agent needs to run this unit.
	Capabilities []string `json:"capabilities,omitempty"`
	// DependsOn lists unit IDs that must complete before this unit.
	DependsOn []string `json:"depends_on,omitempty"`
	// Status is the current state of the unit.
	Status UnitStatus `json:"status"`
	// RetryCount is the number of times this unit has been retried.
	RetryCount int `json:"retry_count,omitempty"`
	// AssignedTo is the ID of the agent this unit was dispatched to.
	AssignedTo string `json:"assigned_to,omitempty"`
	// Error contains the last error message if the unit failed.
	Error string `json:"error,omitempty"`
}

// Stage is a set of work units whose dependencies are fully satisfied by
// strictly earlier stages, so its units may run concurrently.
type Stage struct {
	// Index is the ordered position of this stage in the workflow.
	Index int `json:"index"`
	// Units are the work units belonging to this stage, in stable
	// first-appearance order.
	Units []*WorkUnit `json:"units"`
}

// UnitIDs returns the IDs of all units in the stage, in order.
func (s *Stage) UnitIDs() []string {
	ids := make([]string, 0, len(s.Units))
	for _, u := range s.Units {
		ids = append(ids, u.ID)
	}
	return ids
}

// PlanOutcome represents the overall result of executing a workflow plan.
type PlanOutcome string

const (
	// PlanCompleted indicates every unit finished successfully.
	PlanCompleted PlanOutcome = "completed"
	// PlanPartial indicates some units failed under best-effort policy.
	PlanPartial PlanOutcome = "partial"
	// PlanFailed indicates the plan was aborted by a failure.
	PlanFailed PlanOutcome = "failed"
	// PlanCancelled indicates the plan was cancelled before completion.
	PlanCancelled PlanOutcome = "cancelled"
	// PlanUnverified indicates execution finished but the audit record
	// could not be persisted.
	PlanUnverified PlanOutcome = "unverified"
)

// WorkflowPlan is an ordered list of stages derived from a request.
// A plan is immutable after validation; the dispatcher owns it for the
// duration of execution.
type WorkflowPlan struct {
	// ID is the unique identifier for this plan.
	ID string `json:"id"`
	// Request is the original request text or a summary of the
	// structured input.
	Request string `json:"request"`
	// Stages are the ordered execution stages.
	Stages []*Stage `json:"stages"`
	// CreatedAt is when the plan was built.
	CreatedAt time.Time `json:"created_at"`
}

// Units returns all work units across all stages, in stage order.
func (p *WorkflowPlan) Units() []*WorkUnit {
	var units []*WorkUnit
	for _, st := range p.Stages {
		units = append(units, st.Units...)
	}
	return units
}

// Unit returns the unit with the given ID, or nil if not present.
func (p *WorkflowPlan) Unit(id string) *WorkUnit {
	for _, st := range p.Stages {
		for _, u := range st.Units {
			if u.ID == id {
				return u
			}
		}
	}
	return nil
}
