package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/calvinwilliamsjr/orch/pkg/models"
)

func writeDescriptor(t *testing.T, dir, name, frontmatter string) {
	t.Helper()
	content := frontmatter + "\n# " + name + "\n\nAgent instructions.\n"
	if err := os.WriteFile(filepath.Join(dir, name+".md"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestDiscoverParsesFrontmatter(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "backend-dev", `---
name: Backend Developer
capabilities: [backend, database]
critical: true
---`)
	writeDescriptor(t, dir, "qa-engineer", `---
capabilities: [testing]
availability: busy
---`)

	reg, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if reg.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", reg.Count())
	}

	backend := reg.Get("backend-dev")
	if backend == nil {
		t.Fatal("backend-dev not discovered")
	}
	if backend.Name != "Backend Developer" {
		t.Errorf("Name = %q, want Backend Developer", backend.Name)
	}
	if !backend.Critical {
		t.Error("backend-dev should be critical")
	}
	if !reflect.DeepEqual(backend.Capabilities, []string{"backend", "database"}) {
		t.Errorf("Capabilities = %v", backend.Capabilities)
	}
	if backend.Availability != models.AvailabilityIdle {
		t.Errorf("Availability = %q, want idle default", backend.Availability)
	}

	qa := reg.Get("qa-engineer")
	if qa.Name != "Qa Engineer" {
		t.Errorf("derived Name = %q, want Qa Engineer", qa.Name)
	}
	if qa.Availability != models.AvailabilityBusy {
		t.Errorf("Availability = %q, want busy", qa.Availability)
	}
}

func TestDiscoverSkipsExcludedFiles(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "real-agent", "")
	for _, name := range []string{"template-agent", "draft-reviewer", "test-fixture", "rca-writeup", "README"} {
		writeDescriptor(t, dir, name, "")
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a descriptor"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "subdir.md"), 0755); err != nil {
		t.Fatal(err)
	}

	reg, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if got := reg.IDs(); !reflect.DeepEqual(got, []string{"real-agent"}) {
		t.Errorf("IDs() = %v, want [real-agent]", got)
	}
}

func TestDiscoverMissingDirectory(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"))

	var discErr *DiscoveryError
	if !errors.As(err, &discErr) {
		t.Fatalf("Discover() error = %v, want *DiscoveryError", err)
	}
}

func TestDiscoverBadFrontmatterIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "broken", "---\n: not yaml [\n---")

	if _, err := Discover(dir); err == nil {
		t.Fatal("Discover() should fail on unparseable frontmatter")
	}
}

func TestDiscoverIsFreshPerScan(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "first", "")

	reg, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if reg.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", reg.Count())
	}

	writeDescriptor(t, dir, "second", "")
	reg2, err := Discover(dir)
	if err != nil {
		t.Fatalf("second Discover() error = %v", err)
	}
	if reg2.Count() != 2 {
		t.Errorf("second scan Count() = %d, want 2", reg2.Count())
	}
	// The first snapshot is immutable.
	if reg.Count() != 1 {
		t.Errorf("first snapshot mutated: Count() = %d", reg.Count())
	}
}

// buildTeam writes n descriptors with the first k marked critical.
func buildTeam(t *testing.T, dir string, n, critical int) {
	t.Helper()
	for i := 0; i < n; i++ {
		fm := "---\ncritical: false\n---"
		if i < critical {
			fm = "---\ncritical: true\n---"
		}
		writeDescriptor(t, dir, fmt.Sprintf("agent-%02d", i), fm)
	}
}

func TestValidateCompleteness(t *testing.T) {
	dir := t.TempDir()
	buildTeam(t, dir, 10, 3)

	reg, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	t.Run("full candidate set is complete", func(t *testing.T) {
		result := reg.ValidateCompleteness(reg.IDs(), 0.9)
		if !result.OK {
			t.Errorf("result = %+v, want OK", result)
		}
	})

	t.Run("missing critical agent blocks", func(t *testing.T) {
		var candidates []string
		for _, id := range reg.IDs() {
			if id != "agent-00" {
				candidates = append(candidates, id)
			}
		}
		result := reg.ValidateCompleteness(candidates, 0.5)
		if result.OK {
			t.Error("candidate set missing a critical agent must not be OK")
		}
		if !reflect.DeepEqual(result.Missing, []string{"agent-00"}) {
			t.Errorf("Missing = %v, want [agent-00]", result.Missing)
		}
	})

	t.Run("coverage below fraction blocks", func(t *testing.T) {
		// All criticals present but only 5 of 10 agents.
		candidates := []string{"agent-00", "agent-01", "agent-02", "agent-03", "agent-04"}
		result := reg.ValidateCompleteness(candidates, 0.9)
		if result.OK {
			t.Error("50% coverage must not satisfy a 0.9 fraction")
		}
		if len(result.Missing) != 0 {
			t.Errorf("Missing = %v, want none", result.Missing)
		}
	})
}

func TestAvailableExcludesUnavailable(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "up", "")
	writeDescriptor(t, dir, "down", "---\navailability: unavailable\n---")
	writeDescriptor(t, dir, "busy-one", "---\navailability: busy\n---")

	reg, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	// Busy agents can still be planned; only unavailable ones drop out.
	if got := reg.Available(); !reflect.DeepEqual(got, []string{"busy-one", "up"}) {
		t.Errorf("Available() = %v, want [busy-one up]", got)
	}
}

func TestWithCapability(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, "sec", "---\ncapabilities: [security, backend]\n---")
	writeDescriptor(t, dir, "fe", "---\ncapabilities: [frontend]\n---")

	reg, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if got := reg.WithCapability("security"); !reflect.DeepEqual(got, []string{"sec"}) {
		t.Errorf("WithCapability(security) = %v, want [sec]", got)
	}
	if got := reg.WithCapability("devops"); got != nil {
		t.Errorf("WithCapability(devops) = %v, want none", got)
	}
}
