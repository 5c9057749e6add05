// Package workflow turns work requests into dependency-ordered stage plans.
package workflow

import (
	"errors"
	"fmt"
)

// ErrCycleDetected indicates a circular dependency was found among the
// requested units. No partial plan is produced.
var ErrCycleDetected = errors.New("circular dependency detected")

// ErrEmptyRequest indicates the request contained no recognizable units.
var ErrEmptyRequest = errors.New("request contains no work units")

// UnresolvedDependencyError indicates a unit depends on a unit that never
// appears in the request. The plan fails rather than silently dropping
// the edge.
type UnresolvedDependencyError struct {
	UnitID string
	DepID  string
}

func (e *UnresolvedDependencyError) Error() string {
	return fmt.Sprintf("unit %s depends on unknown unit %s", e.UnitID, e.DepID)
}
