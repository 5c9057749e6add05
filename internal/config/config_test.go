package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromPathAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("registry:\n  path: ./agents\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}

	if cfg.Registry.Path != "./agents" {
		t.Errorf("Registry.Path = %q, want ./agents", cfg.Registry.Path)
	}

	// Untouched sections keep their defaults.
	if cfg.Planner.ConfirmationThreshold != 10 {
		t.Errorf("ConfirmationThreshold = %d, want 10", cfg.Planner.ConfirmationThreshold)
	}
	if cfg.Scheduler.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency = %d, want 4", cfg.Scheduler.MaxConcurrency)
	}
	if cfg.Scheduler.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", cfg.Scheduler.MaxRetries)
	}
	if cfg.Consensus.Quorum != 0.7 {
		t.Errorf("Quorum = %v, want 0.7", cfg.Consensus.Quorum)
	}
	if cfg.Consensus.MinParticipation != 0.8 {
		t.Errorf("MinParticipation = %v, want 0.8", cfg.Consensus.MinParticipation)
	}
	if cfg.Registry.MinTeamFraction != 0.9 {
		t.Errorf("MinTeamFraction = %v, want 0.9", cfg.Registry.MinTeamFraction)
	}
}

func TestLoadFromPathParsesDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `scheduler:
  retry_backoff: 250ms
  unit_timeout: 90s
consensus:
  vote_timeout: 45s
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}

	if cfg.Scheduler.RetryBackoff != 250*time.Millisecond {
		t.Errorf("RetryBackoff = %s, want 250ms", cfg.Scheduler.RetryBackoff)
	}
	if cfg.Scheduler.UnitTimeout != 90*time.Second {
		t.Errorf("UnitTimeout = %s, want 90s", cfg.Scheduler.UnitTimeout)
	}
	if cfg.Consensus.VoteTimeout != 45*time.Second {
		t.Errorf("VoteTimeout = %s, want 45s", cfg.Consensus.VoteTimeout)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("LoadFromPath() should fail for a missing file")
	}
}

func TestDefaultMatchesDocumentedTunables(t *testing.T) {
	cfg := Default()

	if cfg.Planner.ConfirmationThreshold != 10 {
		t.Errorf("ConfirmationThreshold = %d, want 10", cfg.Planner.ConfirmationThreshold)
	}
	if cfg.Scheduler.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", cfg.Scheduler.MaxRetries)
	}
	if cfg.Consensus.Quorum != 0.7 || cfg.Consensus.MinParticipation != 0.8 {
		t.Errorf("consensus defaults = %v/%v, want 0.7/0.8",
			cfg.Consensus.Quorum, cfg.Consensus.MinParticipation)
	}
	if cfg.Registry.MinTeamFraction != 0.9 {
		t.Errorf("MinTeamFraction = %v, want 0.9", cfg.Registry.MinTeamFraction)
	}
}
