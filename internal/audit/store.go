// Package audit provides the append-only invocation audit trail.
// The store is an explicit object passed by reference into the dispatcher,
// never a module-level singleton, so tests can inject an in-memory store.
package audit

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/calvinwilliamsjr/orch/pkg/models"
)

// Store is an append-only audit record sink. Entries are immutable once
// appended and are never deleted.
type Store interface {
	// Append persists one audit entry. A failed append must be surfaced:
	// the caller reports the plan as unverified, never swallows the error.
	Append(entry *models.AuditEntry) error
	// List returns all entries in append order.
	List() ([]*models.AuditEntry, error)
}

// MemoryStore is an in-memory Store for tests and dry runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries []*models.AuditEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append implements Store.
func (s *MemoryStore) Append(entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// List implements Store.
func (s *MemoryStore) List() ([]*models.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.AuditEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// NewEntry assembles one immutable audit entry from a plan and its
// execution outcomes. completionRate is invoked/planned; a whole-team
// entry below 1.0 is flagged incomplete and must be surfaced to the
// caller, never suppressed.
func NewEntry(plan *models.InvocationPlan, invoked []string,
	outcomes map[string]models.AgentOutcome, criticalAgents []string,
	outcome models.PlanOutcome) *models.AuditEntry {

	invokedSet := make(map[string]bool, len(invoked))
	for _, id := range invoked {
		invokedSet[id] = true
	}

	entry := &models.AuditEntry{
		ID:             uuid.New().String(),
		Timestamp:      time.Now(),
		RequestSummary: plan.RequestSummary,
		Scope:          plan.Scope,
		PlannedAgents:  append([]string(nil), plan.AgentIDs...),
		InvokedAgents:  append([]string(nil), invoked...),
		Outcomes:       outcomes,
		Outcome:        outcome,
	}

	if len(plan.AgentIDs) > 0 {
		entry.CompletionRate = float64(len(invoked)) / float64(len(plan.AgentIDs))
	}

	entry.CriticalAgentsSatisfied = true
	for _, id := range criticalAgents {
		planned := false
		for _, p := range plan.AgentIDs {
			if p == id {
				planned = true
				break
			}
		}
		if planned && !invokedSet[id] {
			entry.CriticalAgentsSatisfied = false
			entry.Issues = append(entry.Issues,
				fmt.Sprintf("critical agent %s was planned but not invoked", id))
		}
	}

	if plan.Scope == models.ScopeWholeTeam && entry.CompletionRate < 1.0 {
		entry.Incomplete = true
		entry.Issues = append(entry.Issues,
			fmt.Sprintf("whole-team completion rate %.0f%% (%d of %d agents invoked)",
				entry.CompletionRate*100, len(invoked), len(plan.AgentIDs)))
	}

	return entry
}
