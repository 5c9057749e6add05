package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWatcherSignalsDescriptorChange(t *testing.T) {
	dir := t.TempDir()

	w, err := Watch(dir)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer w.Close()

	path := filepath.Join(dir, "new-agent.md")
	if err := os.WriteFile(path, []byte("---\n---\n"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case changed := <-w.Changes():
		if !strings.HasSuffix(changed, "new-agent.md") {
			t.Errorf("changed path = %q, want new-agent.md", changed)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for change signal")
	}
}

func TestWatcherIgnoresNonDescriptorFiles(t *testing.T) {
	dir := t.TempDir()

	w, err := Watch(dir)
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case changed := <-w.Changes():
		t.Errorf("unexpected change signal for %q", changed)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	if _, err := Watch(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("Watch() should fail for a missing directory")
	}
}
