package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/calvinwilliamsjr/orch/internal/audit"
	"github.com/calvinwilliamsjr/orch/pkg/models"
)

// ErrConfirmationRequired indicates the invocation plan is still gated on
// an explicit accept signal. The gate is hard and synchronous: no stage
// starts until the plan is confirmed.
var ErrConfirmationRequired = errors.New("plan requires confirmation before execution")

// ErrUnassignedUnit indicates a work unit has no agent assignment.
var ErrUnassignedUnit = errors.New("work unit has no assigned agent")

// Config holds dispatcher tunables.
type Config struct {
	// MaxConcurrency bounds concurrent unit invocations within a stage.
	MaxConcurrency int
	// MaxRetries is the number of retries after a unit's first failure.
	MaxRetries int
	// RetryBackoff is the base backoff; it doubles with each retry.
	RetryBackoff time.Duration
	// UnitTimeout bounds a single invocation attempt.
	UnitTimeout time.Duration
	// FailFast cancels all not-yet-started units once any unit is
	// terminally failed. Otherwise independent units continue and the
	// plan is marked partial.
	FailFast bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithAuditStore sets the audit store execution records are appended to.
func WithAuditStore(store audit.Store) Option {
	return func(d *Dispatcher) { d.store = store }
}

// WithDebugLogger sets the debug logger.
func WithDebugLogger(l *DebugLogger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// Dispatcher executes workflow plans: stages strictly in order, units
// within a stage concurrently under the concurrency cap, with per-unit
// retry and cooperative cancellation. A Dispatcher runs one plan at a time.
type Dispatcher struct {
	cfg     Config
	invoker Invoker
	store   audit.Store
	logger  *DebugLogger

	events  chan Event
	dropped atomic.Uint64

	mu       sync.Mutex
	cancelFn context.CancelFunc
}

// New creates a Dispatcher.
func New(cfg Config, invoker Invoker, opts ...Option) *Dispatcher {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}

	d := &Dispatcher{
		cfg:     cfg,
		invoker: invoker,
		logger:  NopLogger(),
		events:  make(chan Event, 100),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Events returns the channel for receiving dispatcher events.
func (d *Dispatcher) Events() <-chan Event {
	return d.events
}

// DroppedEventCount returns how many events were dropped because the
// events channel was full.
func (d *Dispatcher) DroppedEventCount() uint64 {
	return d.dropped.Load()
}

// Cancel signals cancellation of the currently executing plan. Cancellation
// is cooperative: units not yet terminal become cancelled, and results of
// in-flight invocations are discarded when they arrive.
func (d *Dispatcher) Cancel() {
	d.mu.Lock()
	cancel := d.cancelFn
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// ExecRequest bundles everything the dispatcher needs to run one plan.
type ExecRequest struct {
	// Invocation is the confirmed invocation plan. May be nil for
	// internal plans (consensus vote rounds) that need no audit entry.
	Invocation *models.InvocationPlan
	// Workflow is the staged plan to execute. The dispatcher owns it
	// for the duration of execution.
	Workflow *models.WorkflowPlan
	// Assignments maps unit ID to the agent that runs it.
	Assignments map[string]string
	// CriticalAgents lists IDs whose absence from the invoked set must
	// be flagged in the audit entry.
	CriticalAgents []string
}

// Report is the outcome of executing one workflow plan.
type Report struct {
	// PlanID is the workflow plan that was executed.
	PlanID string
	// Outcome is the overall plan outcome.
	Outcome models.PlanOutcome
	// Results maps unit ID to the last invocation result received.
	Results map[string]*Result
	// Attempts maps unit ID to the number of invocation attempts made.
	Attempts map[string]int
	// InvokedAgents lists agents actually dispatched, in dispatch order.
	InvokedAgents []string
	// Entry is the persisted audit entry, when a store is configured.
	Entry *models.AuditEntry
	// Issues lists human-readable reasons for any shortfall.
	Issues []string
	// StartedAt and FinishedAt bound the execution.
	StartedAt  time.Time
	FinishedAt time.Time
}

// run holds per-execution mutable state, guarded by the dispatcher mutex.
type run struct {
	results    map[string]*Result
	attempts   map[string]int
	invoked    []string
	invokedSet map[string]bool
	outcomes   map[string]models.AgentOutcome
	failed     bool
	cancelled  bool
}

// Execute runs the workflow plan to completion, cancellation, or abort.
// Stage N+1 never starts before every unit of stage N is terminal.
func (d *Dispatcher) Execute(ctx context.Context, req ExecRequest) (*Report, error) {
	if req.Invocation != nil && req.Invocation.PendingConfirmation() {
		return nil, ErrConfirmationRequired
	}
	for _, u := range req.Workflow.Units() {
		if req.Assignments[u.ID] == "" {
			return nil, fmt.Errorf("%w: %s", ErrUnassignedUnit, u.ID)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	d.mu.Lock()
	d.cancelFn = cancel
	d.mu.Unlock()

	r := &run{
		results:    make(map[string]*Result),
		attempts:   make(map[string]int),
		invokedSet: make(map[string]bool),
		outcomes:   make(map[string]models.AgentOutcome),
	}

	report := &Report{
		PlanID:    req.Workflow.ID,
		StartedAt: time.Now(),
	}

	sem := make(chan struct{}, d.cfg.MaxConcurrency)

	for i, stage := range req.Workflow.Stages {
		d.mu.Lock()
		if ctx.Err() != nil {
			r.cancelled = true
		}
		abort := r.cancelled || (d.cfg.FailFast && r.failed)
		d.mu.Unlock()
		if abort {
			d.cancelRemaining(req.Workflow, i, r)
			break
		}

		d.logger.Log("[dispatch] stage %d: %d units", i, len(stage.Units))
		d.emit(Event{Type: EventStageStarted, PlanID: req.Workflow.ID, StageIndex: i})

		for _, u := range stage.Units {
			d.setStatus(u, models.UnitStatusReady)
		}

		var wg sync.WaitGroup
		for _, u := range stage.Units {
			// FIFO admission: acquire a slot in unit order before
			// handing the unit to a worker goroutine.
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				d.markCancelled(req.Workflow, u, r)
				continue
			}

			wg.Add(1)
			go func(unit *models.WorkUnit, agentID string, stageIdx int) {
				defer wg.Done()
				defer func() { <-sem }()
				d.runUnit(ctx, req.Workflow.ID, stageIdx, unit, agentID, r)
			}(u, req.Assignments[u.ID], i)
		}
		wg.Wait()

		d.emit(Event{Type: EventStageCompleted, PlanID: req.Workflow.ID, StageIndex: i})
	}

	report.FinishedAt = time.Now()
	d.finish(req, r, report)
	return report, nil
}

// runUnit drives one unit through its state machine:
// ready -> running -> done | failed (after retries) | cancelled.
func (d *Dispatcher) runUnit(ctx context.Context, planID string, stageIdx int,
	unit *models.WorkUnit, agentID string, r *run) {

	d.mu.Lock()
	unit.Status = models.UnitStatusRunning
	unit.AssignedTo = agentID
	if !r.invokedSet[agentID] {
		r.invokedSet[agentID] = true
		r.invoked = append(r.invoked, agentID)
	}
	d.mu.Unlock()

	for attempt := 1; ; attempt++ {
		d.emit(Event{
			Type: EventUnitStarted, PlanID: planID, StageIndex: stageIdx,
			UnitID: unit.ID, AgentID: agentID, Attempt: attempt,
		})

		ictx := ctx
		var cancelAttempt context.CancelFunc
		if d.cfg.UnitTimeout > 0 {
			ictx, cancelAttempt = context.WithTimeout(ctx, d.cfg.UnitTimeout)
		}
		res, err := d.invoker.Invoke(ictx, agentID, unit)
		if cancelAttempt != nil {
			cancelAttempt()
		}

		d.mu.Lock()
		r.attempts[unit.ID] = attempt
		if res != nil {
			r.results[unit.ID] = res
		}
		d.mu.Unlock()

		if ctx.Err() != nil {
			// Plan was cancelled while this invocation was in flight;
			// the result is discarded.
			d.mu.Lock()
			unit.Status = models.UnitStatusCancelled
			r.cancelled = true
			d.mu.Unlock()
			d.emit(Event{Type: EventUnitCancelled, PlanID: planID, UnitID: unit.ID, AgentID: agentID})
			return
		}

		if err == nil && res != nil && res.Success {
			d.mu.Lock()
			unit.Status = models.UnitStatusDone
			d.recordAgentOutcome(r, agentID, models.AgentInvoked)
			d.mu.Unlock()
			d.logger.Log("[dispatch] unit %s done on agent %s (attempt %d)", unit.ID, agentID, attempt)
			d.emit(Event{Type: EventUnitCompleted, PlanID: planID, UnitID: unit.ID, AgentID: agentID, Attempt: attempt})
			return
		}

		errMsg := invocationError(res, err)
		d.mu.Lock()
		unit.Error = errMsg
		d.mu.Unlock()

		if attempt > d.cfg.MaxRetries {
			d.mu.Lock()
			unit.Status = models.UnitStatusFailed
			r.failed = true
			d.recordAgentOutcome(r, agentID, models.AgentFailed)
			d.mu.Unlock()
			log.Printf("[dispatch] unit %s failed after %d attempts: %s", unit.ID, attempt, errMsg)
			d.emit(Event{
				Type: EventUnitFailed, PlanID: planID, UnitID: unit.ID,
				AgentID: agentID, Attempt: attempt, Message: errMsg,
			})
			return
		}

		d.mu.Lock()
		unit.RetryCount++
		unit.Status = models.UnitStatusReady
		d.mu.Unlock()
		backoff := d.cfg.RetryBackoff << (attempt - 1)
		d.logger.Log("[dispatch] unit %s attempt %d failed, retrying in %s: %s", unit.ID, attempt, backoff, errMsg)
		d.emit(Event{
			Type: EventUnitRetrying, PlanID: planID, UnitID: unit.ID,
			AgentID: agentID, Attempt: attempt, Message: errMsg,
		})

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			d.mu.Lock()
			unit.Status = models.UnitStatusCancelled
			r.cancelled = true
			d.mu.Unlock()
			d.emit(Event{Type: EventUnitCancelled, PlanID: planID, UnitID: unit.ID, AgentID: agentID})
			return
		}

		d.mu.Lock()
		unit.Status = models.UnitStatusRunning
		d.mu.Unlock()
	}
}

// recordAgentOutcome keeps a failed outcome sticky across multiple units
// dispatched to the same agent. Caller must hold d.mu.
func (d *Dispatcher) recordAgentOutcome(r *run, agentID string, outcome models.AgentOutcome) {
	if r.outcomes[agentID] == models.AgentFailed {
		return
	}
	r.outcomes[agentID] = outcome
}

// setStatus sets a unit's status under the dispatcher mutex.
func (d *Dispatcher) setStatus(unit *models.WorkUnit, status models.UnitStatus) {
	d.mu.Lock()
	unit.Status = status
	d.mu.Unlock()
}

// markCancelled flags a single unit as cancelled.
func (d *Dispatcher) markCancelled(plan *models.WorkflowPlan, unit *models.WorkUnit, r *run) {
	d.mu.Lock()
	unit.Status = models.UnitStatusCancelled
	r.cancelled = true
	d.mu.Unlock()
	d.emit(Event{Type: EventUnitCancelled, PlanID: plan.ID, UnitID: unit.ID})
}

// cancelRemaining cancels every non-terminal unit from stage fromIdx on.
func (d *Dispatcher) cancelRemaining(plan *models.WorkflowPlan, fromIdx int, r *run) {
	for _, stage := range plan.Stages[fromIdx:] {
		for _, u := range stage.Units {
			d.mu.Lock()
			terminal := u.Status.Terminal()
			if !terminal {
				u.Status = models.UnitStatusCancelled
			}
			d.mu.Unlock()
			if !terminal {
				d.emit(Event{Type: EventUnitCancelled, PlanID: plan.ID, UnitID: u.ID})
			}
		}
	}
}

// finish computes the overall outcome, records the audit entry, and emits
// the terminal event. An audit write failure is never swallowed: the plan
// is reported as unverified.
func (d *Dispatcher) finish(req ExecRequest, r *run, report *Report) {
	d.mu.Lock()
	report.Results = r.results
	report.Attempts = r.attempts
	report.InvokedAgents = append([]string(nil), r.invoked...)

	switch {
	case r.cancelled:
		report.Outcome = models.PlanCancelled
		report.Issues = append(report.Issues, "plan was cancelled before completion")
	case r.failed && d.cfg.FailFast:
		report.Outcome = models.PlanFailed
	case r.failed:
		report.Outcome = models.PlanPartial
		report.Issues = append(report.Issues, "one or more units failed; independent units continued (best-effort)")
	default:
		report.Outcome = models.PlanCompleted
	}

	outcomes := r.outcomes
	if req.Invocation != nil {
		for _, id := range req.Invocation.AgentIDs {
			if _, ok := outcomes[id]; !ok {
				outcomes[id] = models.AgentSkipped
			}
		}
	}
	d.mu.Unlock()

	if req.Invocation != nil && d.store != nil {
		entry := audit.NewEntry(req.Invocation, report.InvokedAgents, outcomes,
			req.CriticalAgents, report.Outcome)
		if err := d.store.Append(entry); err != nil {
			log.Printf("[dispatch] audit write failed, reporting plan unverified: %v", err)
			report.Outcome = models.PlanUnverified
			report.Issues = append(report.Issues,
				fmt.Sprintf("audit record could not be persisted: %v", err))
			entry.Outcome = models.PlanUnverified
		}
		report.Entry = entry
		report.Issues = append(report.Issues, entry.Issues...)
	}

	d.emit(Event{Type: EventPlanDone, PlanID: report.PlanID, Message: string(report.Outcome)})
}

// emit sends an event without blocking; slow consumers drop events.
func (d *Dispatcher) emit(ev Event) {
	ev.Timestamp = time.Now()
	select {
	case d.events <- ev:
	default:
		d.dropped.Add(1)
	}
}

// invocationError normalizes the failure message from a result or error.
func invocationError(res *Result, err error) string {
	if err != nil {
		return err.Error()
	}
	if res != nil && res.Err != "" {
		return res.Err
	}
	return "worker reported failure"
}
