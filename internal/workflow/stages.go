package workflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/calvinwilliamsjr/orch/pkg/models"
)

// BuildStages groups units into stages by topologically layering the
// dependency graph. Each extraction round collects every unit whose
// dependencies are all placed in strictly earlier stages; ties within a
// stage keep the units' first-appearance order. If no unit can be
// extracted while unplaced units remain, the graph is cyclic and no
// partial plan is returned.
func BuildStages(units []*models.WorkUnit) ([]*models.Stage, error) {
	if len(units) == 0 {
		return nil, ErrEmptyRequest
	}

	known := make(map[string]bool, len(units))
	for _, u := range units {
		known[u.ID] = true
	}
	for _, u := range units {
		for _, dep := range u.DependsOn {
			if !known[dep] {
				return nil, &UnresolvedDependencyError{UnitID: u.ID, DepID: dep}
			}
		}
	}

	placed := make(map[string]bool, len(units))
	var stages []*models.Stage

	for len(placed) < len(units) {
		stage := &models.Stage{Index: len(stages)}

		for _, u := range units {
			if placed[u.ID] {
				continue
			}
			ready := true
			for _, dep := range u.DependsOn {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				stage.Units = append(stage.Units, u)
			}
		}

		if len(stage.Units) == 0 {
			return nil, ErrCycleDetected
		}

		// Units extracted in this round join the placed set only after the
		// round completes, so same-round units never depend on each other.
		for _, u := range stage.Units {
			placed[u.ID] = true
		}
		stages = append(stages, stage)
	}

	return stages, nil
}

// NewPlan builds a validated, immutable WorkflowPlan from a request
// description and its units.
func NewPlan(request string, units []*models.WorkUnit) (*models.WorkflowPlan, error) {
	stages, err := BuildStages(units)
	if err != nil {
		return nil, err
	}

	for _, u := range units {
		u.Status = models.UnitStatusPending
	}

	return &models.WorkflowPlan{
		ID:        uuid.New().String()[:8],
		Request:   request,
		Stages:    stages,
		CreatedAt: time.Now(),
	}, nil
}
