package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/calvinwilliamsjr/orch/internal/audit"
	"github.com/calvinwilliamsjr/orch/pkg/models"
)

// makePlan builds a workflow plan from stage groups of unit IDs.
func makePlan(groups ...[]string) *models.WorkflowPlan {
	plan := &models.WorkflowPlan{ID: "test-plan", Request: "test", CreatedAt: time.Now()}
	for i, group := range groups {
		stage := &models.Stage{Index: i}
		for _, id := range group {
			stage.Units = append(stage.Units, &models.WorkUnit{
				ID:     id,
				Status: models.UnitStatusPending,
			})
		}
		plan.Stages = append(plan.Stages, stage)
	}
	return plan
}

// selfAssign maps every unit to an agent named after it.
func selfAssign(plan *models.WorkflowPlan) map[string]string {
	assignments := make(map[string]string)
	for _, u := range plan.Units() {
		assignments[u.ID] = "agent-" + u.ID
	}
	return assignments
}

func okInvoker() Invoker {
	return InvokerFunc(func(ctx context.Context, agentID string, unit *models.WorkUnit) (*Result, error) {
		return &Result{Success: true}, nil
	})
}

func testConfig() Config {
	return Config{
		MaxConcurrency: 4,
		MaxRetries:     2,
		RetryBackoff:   time.Millisecond,
	}
}

func TestExecuteSequentialStages(t *testing.T) {
	plan := makePlan([]string{"1.1"}, []string{"1.2"})

	var mu sync.Mutex
	var order []string
	invoker := InvokerFunc(func(ctx context.Context, agentID string, unit *models.WorkUnit) (*Result, error) {
		mu.Lock()
		order = append(order, unit.ID)
		mu.Unlock()
		return &Result{Success: true}, nil
	})

	d := New(testConfig(), invoker)
	report, err := d.Execute(context.Background(), ExecRequest{
		Workflow:    plan,
		Assignments: selfAssign(plan),
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if report.Outcome != models.PlanCompleted {
		t.Errorf("Outcome = %q, want %q", report.Outcome, models.PlanCompleted)
	}
	if len(order) != 2 || order[0] != "1.1" || order[1] != "1.2" {
		t.Errorf("invocation order = %v, want [1.1 1.2]", order)
	}
	for _, u := range plan.Units() {
		if u.Status != models.UnitStatusDone {
			t.Errorf("unit %s status = %q, want done", u.ID, u.Status)
		}
	}
}

func TestExecuteStageBarrier(t *testing.T) {
	// Stage 1 must not start until every unit of stage 0 is terminal,
	// even when stage 0 units finish at different times.
	plan := makePlan([]string{"a", "b"}, []string{"c"})

	var stageZeroDone atomic.Int32
	invoker := InvokerFunc(func(ctx context.Context, agentID string, unit *models.WorkUnit) (*Result, error) {
		switch unit.ID {
		case "a":
			time.Sleep(20 * time.Millisecond)
			stageZeroDone.Add(1)
		case "b":
			stageZeroDone.Add(1)
		case "c":
			if n := stageZeroDone.Load(); n != 2 {
				return nil, fmt.Errorf("unit c started with only %d of stage 0 done", n)
			}
		}
		return &Result{Success: true}, nil
	})

	d := New(testConfig(), invoker)
	report, err := d.Execute(context.Background(), ExecRequest{
		Workflow:    plan,
		Assignments: selfAssign(plan),
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if report.Outcome != models.PlanCompleted {
		t.Errorf("Outcome = %q, want %q (unit error: %s)",
			report.Outcome, models.PlanCompleted, plan.Unit("c").Error)
	}
}

func TestExecuteConcurrencyBound(t *testing.T) {
	plan := makePlan([]string{"u1", "u2", "u3", "u4", "u5", "u6"})

	var inFlight, peak atomic.Int32
	invoker := InvokerFunc(func(ctx context.Context, agentID string, unit *models.WorkUnit) (*Result, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return &Result{Success: true}, nil
	})

	cfg := testConfig()
	cfg.MaxConcurrency = 2
	d := New(cfg, invoker)
	if _, err := d.Execute(context.Background(), ExecRequest{
		Workflow:    plan,
		Assignments: selfAssign(plan),
	}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", p)
	}
}

func TestExecuteRetrySucceedsOnThirdAttempt(t *testing.T) {
	plan := makePlan([]string{"flaky"})

	var calls atomic.Int32
	invoker := InvokerFunc(func(ctx context.Context, agentID string, unit *models.WorkUnit) (*Result, error) {
		if calls.Add(1) <= 2 {
			return nil, errors.New("transient failure")
		}
		return &Result{Success: true}, nil
	})

	d := New(testConfig(), invoker)
	report, err := d.Execute(context.Background(), ExecRequest{
		Workflow:    plan,
		Assignments: selfAssign(plan),
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if report.Outcome != models.PlanCompleted {
		t.Errorf("Outcome = %q, want %q", report.Outcome, models.PlanCompleted)
	}
	if got := report.Attempts["flaky"]; got != 3 {
		t.Errorf("Attempts = %d, want 3", got)
	}
	unit := plan.Unit("flaky")
	if unit.Status != models.UnitStatusDone {
		t.Errorf("unit status = %q, want done", unit.Status)
	}
	if unit.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", unit.RetryCount)
	}
}

func TestExecuteRetryExhausted(t *testing.T) {
	plan := makePlan([]string{"broken", "fine"})

	invoker := InvokerFunc(func(ctx context.Context, agentID string, unit *models.WorkUnit) (*Result, error) {
		if unit.ID == "broken" {
			return &Result{Success: false, Err: "persistent failure"}, nil
		}
		return &Result{Success: true}, nil
	})

	d := New(testConfig(), invoker)
	report, err := d.Execute(context.Background(), ExecRequest{
		Workflow:    plan,
		Assignments: selfAssign(plan),
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// Best-effort: the independent unit still runs, outcome is partial.
	if report.Outcome != models.PlanPartial {
		t.Errorf("Outcome = %q, want %q", report.Outcome, models.PlanPartial)
	}
	broken := plan.Unit("broken")
	if broken.Status != models.UnitStatusFailed {
		t.Errorf("broken status = %q, want failed", broken.Status)
	}
	if broken.Error != "persistent failure" {
		t.Errorf("broken error = %q, want %q", broken.Error, "persistent failure")
	}
	// Initial attempt plus MaxRetries retries, exactly once terminal.
	if got := report.Attempts["broken"]; got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
	if fine := plan.Unit("fine"); fine.Status != models.UnitStatusDone {
		t.Errorf("fine status = %q, want done", fine.Status)
	}
}

func TestExecuteFailFastCancelsLaterStages(t *testing.T) {
	plan := makePlan([]string{"first"}, []string{"second"})

	invoker := InvokerFunc(func(ctx context.Context, agentID string, unit *models.WorkUnit) (*Result, error) {
		return nil, errors.New("boom")
	})

	cfg := testConfig()
	cfg.FailFast = true
	cfg.MaxRetries = 0
	d := New(cfg, invoker)
	report, err := d.Execute(context.Background(), ExecRequest{
		Workflow:    plan,
		Assignments: selfAssign(plan),
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if report.Outcome != models.PlanFailed {
		t.Errorf("Outcome = %q, want %q", report.Outcome, models.PlanFailed)
	}
	if got := plan.Unit("second").Status; got != models.UnitStatusCancelled {
		t.Errorf("second status = %q, want cancelled", got)
	}
	if _, ok := report.Attempts["second"]; ok {
		t.Error("cancelled unit should never be invoked")
	}
}

func TestExecuteCancelMidPlan(t *testing.T) {
	plan := makePlan([]string{"slow"}, []string{"after"})

	started := make(chan struct{})
	invoker := InvokerFunc(func(ctx context.Context, agentID string, unit *models.WorkUnit) (*Result, error) {
		close(started)
		<-ctx.Done()
		// The in-flight result arrives after cancellation and must be
		// discarded, not counted as success.
		return &Result{Success: true}, nil
	})

	d := New(testConfig(), invoker)

	done := make(chan *Report, 1)
	go func() {
		report, err := d.Execute(context.Background(), ExecRequest{
			Workflow:    plan,
			Assignments: selfAssign(plan),
		})
		if err != nil {
			t.Errorf("Execute() error = %v", err)
		}
		done <- report
	}()

	<-started
	d.Cancel()
	report := <-done

	if report.Outcome != models.PlanCancelled {
		t.Errorf("Outcome = %q, want %q", report.Outcome, models.PlanCancelled)
	}
	if got := plan.Unit("slow").Status; got != models.UnitStatusCancelled {
		t.Errorf("slow status = %q, want cancelled", got)
	}
	if got := plan.Unit("after").Status; got != models.UnitStatusCancelled {
		t.Errorf("after status = %q, want cancelled", got)
	}
	if _, ok := report.Attempts["after"]; ok {
		t.Error("unit in a later stage must not be invoked after cancellation")
	}
}

func TestExecuteRejectsUnconfirmedPlan(t *testing.T) {
	plan := makePlan([]string{"u1"})

	var calls atomic.Int32
	invoker := InvokerFunc(func(ctx context.Context, agentID string, unit *models.WorkUnit) (*Result, error) {
		calls.Add(1)
		return &Result{Success: true}, nil
	})

	d := New(testConfig(), invoker)
	_, err := d.Execute(context.Background(), ExecRequest{
		Invocation: &models.InvocationPlan{
			ID:                   "inv-1",
			AgentIDs:             []string{"agent-u1"},
			RequiresConfirmation: true,
		},
		Workflow:    plan,
		Assignments: selfAssign(plan),
	})
	if !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("Execute() error = %v, want ErrConfirmationRequired", err)
	}
	if calls.Load() != 0 {
		t.Error("no unit may be invoked while the plan is unconfirmed")
	}
}

func TestExecuteRejectsUnassignedUnit(t *testing.T) {
	plan := makePlan([]string{"u1", "u2"})

	d := New(testConfig(), okInvoker())
	_, err := d.Execute(context.Background(), ExecRequest{
		Workflow:    plan,
		Assignments: map[string]string{"u1": "agent-u1"},
	})
	if !errors.Is(err, ErrUnassignedUnit) {
		t.Fatalf("Execute() error = %v, want ErrUnassignedUnit", err)
	}
}

func TestExecuteRecordsAuditEntry(t *testing.T) {
	plan := makePlan([]string{"u1", "u2"})
	store := audit.NewMemoryStore()

	invoker := InvokerFunc(func(ctx context.Context, agentID string, unit *models.WorkUnit) (*Result, error) {
		if unit.ID == "u2" {
			return &Result{Success: false, Err: "no good"}, nil
		}
		return &Result{Success: true}, nil
	})

	cfg := testConfig()
	cfg.MaxRetries = 0
	d := New(cfg, invoker, WithAuditStore(store))
	report, err := d.Execute(context.Background(), ExecRequest{
		Invocation: &models.InvocationPlan{
			ID:             "inv-1",
			RequestSummary: "audit test",
			Scope:          models.ScopeNamed,
			AgentIDs:       []string{"agent-u1", "agent-u2", "agent-u3"},
			Confirmed:      true,
		},
		Workflow:    plan,
		Assignments: selfAssign(plan),
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	entries, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	entry := entries[0]
	if entry.Outcomes["agent-u1"] != models.AgentInvoked {
		t.Errorf("agent-u1 outcome = %q, want invoked", entry.Outcomes["agent-u1"])
	}
	if entry.Outcomes["agent-u2"] != models.AgentFailed {
		t.Errorf("agent-u2 outcome = %q, want failed", entry.Outcomes["agent-u2"])
	}
	if entry.Outcomes["agent-u3"] != models.AgentSkipped {
		t.Errorf("agent-u3 outcome = %q, want skipped", entry.Outcomes["agent-u3"])
	}
	if report.Entry == nil {
		t.Error("report should carry the persisted audit entry")
	}
}

type failingStore struct{}

func (failingStore) Append(*models.AuditEntry) error {
	return errors.New("disk full")
}

func (failingStore) List() ([]*models.AuditEntry, error) {
	return nil, nil
}

func TestExecuteAuditFailureMarksUnverified(t *testing.T) {
	plan := makePlan([]string{"u1"})

	d := New(testConfig(), okInvoker(), WithAuditStore(failingStore{}))
	report, err := d.Execute(context.Background(), ExecRequest{
		Invocation: &models.InvocationPlan{
			ID:       "inv-1",
			Scope:    models.ScopeNamed,
			AgentIDs: []string{"agent-u1"},
		},
		Workflow:    plan,
		Assignments: selfAssign(plan),
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if report.Outcome != models.PlanUnverified {
		t.Errorf("Outcome = %q, want %q", report.Outcome, models.PlanUnverified)
	}
	if len(report.Issues) == 0 {
		t.Error("audit failure must be surfaced in report issues")
	}
}

func TestExecuteEmitsEvents(t *testing.T) {
	plan := makePlan([]string{"u1"})

	d := New(testConfig(), okInvoker())
	if _, err := d.Execute(context.Background(), ExecRequest{
		Workflow:    plan,
		Assignments: selfAssign(plan),
	}); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	seen := make(map[EventType]bool)
drain:
	for {
		select {
		case ev := <-d.Events():
			seen[ev.Type] = true
			if ev.Type == EventPlanDone {
				break drain
			}
		case <-time.After(time.Second):
			t.Fatal("timed out draining events")
		}
	}

	for _, want := range []EventType{EventStageStarted, EventUnitStarted,
		EventUnitCompleted, EventStageCompleted, EventPlanDone} {
		if !seen[want] {
			t.Errorf("missing event %q", want)
		}
	}
}
