// Package models defines the core data types shared across orch components.
package models

// Availability represents the current availability of an agent.
type Availability string

const (
	// AvailabilityIdle indicates the agent can accept work.
	AvailabilityIdle Availability = "idle"
	// AvailabilityBusy indicates the agent is currently working.
	AvailabilityBusy Availability = "busy"
	// AvailabilityUnavailable indicates the agent cannot accept work.
	AvailabilityUnavailable Availability = "unavailable"
)

// Valid returns true if the availability is a known value.
func (a Availability) Valid() bool {
	switch a {
	case AvailabilityIdle, AvailabilityBusy, AvailabilityUnavailable:
		return true
	default:
		return false
	}
}

// AgentDescriptor describes a discoverable worker agent.
// Descriptors are rebuilt on every registry scan and are never cached
// across requests.
type AgentDescriptor struct {
	// ID is the stable identifier for this agent (the descriptor file stem).
	ID string `json:"id" yaml:"id"`
	// Name is the human-readable agent name.
	Name string `json:"name" yaml:"name"`
	// Capabilities lists the capability tags this agent declares.
	Capabilities []string `json:"capabilities" yaml:"capabilities"`
	// Critical marks agents that must never be excluded from a
	// whole-team invocation.
	Critical bool `json:"critical" yaml:"critical"`
	// Availability is the agent's availability at scan time.
	Availability Availability `json:"availability" yaml:"availability"`
	// Source is the path of the descriptor file this agent was loaded from.
	Source string `json:"source,omitempty" yaml:"-"`
}

// HasCapability returns true if the agent declares the given capability tag.
func (d *AgentDescriptor) HasCapability(tag string) bool {
	for _, c := range d.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}
