package planner

import (
	"errors"

	"github.com/calvinwilliamsjr/orch/internal/registry"
	"github.com/calvinwilliamsjr/orch/pkg/models"
)

// ErrNoCandidates indicates a unit could not be assigned because the
// candidate list is empty.
var ErrNoCandidates = errors.New("no candidate agents to assign")

// AssignUnits maps every unit of a workflow plan onto one of the plan's
// candidate agents. Units that declare capabilities go to the first
// candidate covering all of them; everything else is spread round-robin.
// Assignment is deterministic for a given plan and candidate order.
func AssignUnits(plan *models.WorkflowPlan, candidates []string, reg *registry.Registry) (map[string]string, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	assignments := make(map[string]string)
	next := 0
	for _, unit := range plan.Units() {
		if agentID := matchCapabilities(unit, candidates, reg); agentID != "" {
			assignments[unit.ID] = agentID
			continue
		}
		assignments[unit.ID] = candidates[next%len(candidates)]
		next++
	}
	return assignments, nil
}

// matchCapabilities returns the first candidate covering all of the unit's
// capability tags, or "" when the unit has none or no candidate qualifies.
func matchCapabilities(unit *models.WorkUnit, candidates []string, reg *registry.Registry) string {
	if len(unit.Capabilities) == 0 || reg == nil {
		return ""
	}
	for _, id := range candidates {
		desc := reg.Get(id)
		if desc == nil {
			continue
		}
		covered := true
		for _, tag := range unit.Capabilities {
			if !desc.HasCapability(tag) {
				covered = false
				break
			}
		}
		if covered {
			return id
		}
	}
	return ""
}
