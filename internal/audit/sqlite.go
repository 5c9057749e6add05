package audit

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/calvinwilliamsjr/orch/pkg/models"
)

// DefaultDBPath returns the project-local audit database path.
func DefaultDBPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".orch", "audit.db")
}

// SQLiteStore persists audit entries in an SQLite database.
type SQLiteStore struct {
	conn *sql.DB
	mu   sync.Mutex
}

// Open opens (creating if needed) the audit database at the given path.
// WAL mode is enabled for concurrent reads.
func Open(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create audit db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	schema := `CREATE TABLE IF NOT EXISTS audit_entries (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		request_summary TEXT NOT NULL,
		scope TEXT NOT NULL,
		planned_agents TEXT NOT NULL,
		invoked_agents TEXT NOT NULL,
		outcomes TEXT NOT NULL,
		completion_rate REAL NOT NULL,
		critical_satisfied INTEGER NOT NULL,
		incomplete INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		issues TEXT NOT NULL
	)`
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create audit schema: %w", err)
	}

	return &SQLiteStore{conn: conn}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// Append implements Store. Entries are insert-only; there is no update or
// delete path.
func (s *SQLiteStore) Append(entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	planned, err := json.Marshal(entry.PlannedAgents)
	if err != nil {
		return fmt.Errorf("marshal planned agents: %w", err)
	}
	invoked, err := json.Marshal(entry.InvokedAgents)
	if err != nil {
		return fmt.Errorf("marshal invoked agents: %w", err)
	}
	outcomes, err := json.Marshal(entry.Outcomes)
	if err != nil {
		return fmt.Errorf("marshal outcomes: %w", err)
	}
	issues, err := json.Marshal(entry.Issues)
	if err != nil {
		return fmt.Errorf("marshal issues: %w", err)
	}

	_, err = s.conn.Exec(`INSERT INTO audit_entries
		(id, timestamp, request_summary, scope, planned_agents, invoked_agents,
		 outcomes, completion_rate, critical_satisfied, incomplete, outcome, issues)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Timestamp.Format(time.RFC3339Nano),
		entry.RequestSummary,
		string(entry.Scope),
		string(planned),
		string(invoked),
		string(outcomes),
		entry.CompletionRate,
		boolToInt(entry.CriticalAgentsSatisfied),
		boolToInt(entry.Incomplete),
		string(entry.Outcome),
		string(issues),
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// List implements Store, returning entries in append order.
func (s *SQLiteStore) List() ([]*models.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.conn.Query(`SELECT id, timestamp, request_summary, scope,
		planned_agents, invoked_agents, outcomes, completion_rate,
		critical_satisfied, incomplete, outcome, issues
		FROM audit_entries ORDER BY timestamp, id`)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var entry models.AuditEntry
		var ts, scope, outcome string
		var planned, invoked, outcomes, issues string
		var criticalSatisfied, incompleteInt int
		if err := rows.Scan(&entry.ID, &ts, &entry.RequestSummary, &scope,
			&planned, &invoked, &outcomes, &entry.CompletionRate,
			&criticalSatisfied, &incompleteInt, &outcome, &issues); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}

		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse audit timestamp: %w", err)
		}
		entry.Timestamp = parsed
		entry.Scope = models.RequestScope(scope)
		entry.Outcome = models.PlanOutcome(outcome)
		entry.CriticalAgentsSatisfied = criticalSatisfied != 0
		entry.Incomplete = incompleteInt != 0

		if err := json.Unmarshal([]byte(planned), &entry.PlannedAgents); err != nil {
			return nil, fmt.Errorf("unmarshal planned agents: %w", err)
		}
		if err := json.Unmarshal([]byte(invoked), &entry.InvokedAgents); err != nil {
			return nil, fmt.Errorf("unmarshal invoked agents: %w", err)
		}
		if err := json.Unmarshal([]byte(outcomes), &entry.Outcomes); err != nil {
			return nil, fmt.Errorf("unmarshal outcomes: %w", err)
		}
		if err := json.Unmarshal([]byte(issues), &entry.Issues); err != nil {
			return nil, fmt.Errorf("unmarshal issues: %w", err)
		}

		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
