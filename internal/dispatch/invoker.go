// Package dispatch executes workflow plans stage by stage over a bounded
// worker pool.
package dispatch

import (
	"context"

	"github.com/calvinwilliamsjr/orch/pkg/models"
)

// Result is the outcome of a single worker invocation.
type Result struct {
	// Success reports whether the worker completed the unit.
	Success bool
	// Artifact is the opaque output produced by the worker.
	Artifact any
	// Err carries the worker-reported error message, if any.
	Err string
}

// Invoker is the collaborator boundary to external workers. The dispatcher
// treats an invocation as a black-box synchronous call bounded by the
// context deadline; it does not care how the worker performs the task.
type Invoker interface {
	Invoke(ctx context.Context, agentID string, unit *models.WorkUnit) (*Result, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, agentID string, unit *models.WorkUnit) (*Result, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, agentID string, unit *models.WorkUnit) (*Result, error) {
	return f(ctx, agentID, unit)
}
