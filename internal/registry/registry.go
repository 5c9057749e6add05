// Package registry discovers worker agents from a directory-backed manifest.
// Discovery is a pure function over the manifest directory: every scan reads
// the descriptor files fresh, so a plan never sees a stale agent count.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/calvinwilliamsjr/orch/pkg/models"
)

// excludedPatterns are filename fragments that mark a file as not being an
// agent descriptor (templates, drafts, docs).
var excludedPatterns = []string{"rca-", "template-", "README", "test-", "draft-"}

// DiscoveryError indicates the manifest source could not be scanned.
// Callers must not fall back to a cached agent set when discovery fails.
type DiscoveryError struct {
	Path string
	Err  error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("agent discovery failed for %s: %v", e.Path, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// Registry is an immutable snapshot of the discovered agent set, ordered by ID.
type Registry struct {
	agents map[string]*models.AgentDescriptor
	ids    []string
	source string
}

// descriptorFrontmatter is the YAML frontmatter of an agent descriptor file.
type descriptorFrontmatter struct {
	Name         string   `yaml:"name"`
	Capabilities []string `yaml:"capabilities"`
	Critical     bool     `yaml:"critical"`
	Availability string   `yaml:"availability"`
}

// Discover scans the manifest directory and returns a fresh Registry.
// One descriptor file (markdown with YAML frontmatter) yields one agent.
// Returns a *DiscoveryError if the directory cannot be read.
func Discover(path string) (*Registry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, &DiscoveryError{Path: path, Err: err}
	}

	reg := &Registry{
		agents: make(map[string]*models.AgentDescriptor),
		source: path,
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".md") {
			continue
		}
		if isExcluded(name) {
			continue
		}

		filePath := filepath.Join(path, name)
		desc, err := parseDescriptor(filePath)
		if err != nil {
			return nil, &DiscoveryError{Path: filePath, Err: err}
		}
		reg.agents[desc.ID] = desc
	}

	reg.ids = make([]string, 0, len(reg.agents))
	for id := range reg.agents {
		reg.ids = append(reg.ids, id)
	}
	sort.Strings(reg.ids)

	return reg, nil
}

// isExcluded returns true if the filename matches an exclusion pattern.
func isExcluded(name string) bool {
	for _, pattern := range excludedPatterns {
		if strings.Contains(name, pattern) {
			return true
		}
	}
	return false
}

// parseDescriptor reads one agent descriptor file. The agent ID is the file
// stem; metadata comes from the YAML frontmatter when present.
func parseDescriptor(path string) (*models.AgentDescriptor, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}

	id := strings.TrimSuffix(filepath.Base(path), ".md")

	desc := &models.AgentDescriptor{
		ID:           id,
		Name:         formatAgentName(id),
		Availability: models.AvailabilityIdle,
		Source:       path,
	}

	fm, err := extractFrontmatter(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse frontmatter of %s: %w", filepath.Base(path), err)
	}
	if fm != nil {
		if fm.Name != "" {
			desc.Name = fm.Name
		}
		desc.Capabilities = fm.Capabilities
		desc.Critical = fm.Critical
		if fm.Availability != "" {
			avail := models.Availability(fm.Availability)
			if !avail.Valid() {
				return nil, fmt.Errorf("descriptor %s: unknown availability %q", id, fm.Availability)
			}
			desc.Availability = avail
		}
	}

	return desc, nil
}

// extractFrontmatter parses the YAML block between leading "---" markers.
// Returns nil when the file has no frontmatter.
func extractFrontmatter(content string) (*descriptorFrontmatter, error) {
	if !strings.HasPrefix(content, "---") {
		return nil, nil
	}

	parts := strings.SplitN(content, "---", 3)
	if len(parts) < 3 {
		return nil, nil
	}

	fm := &descriptorFrontmatter{}
	if err := yaml.Unmarshal([]byte(parts[1]), fm); err != nil {
		return nil, err
	}
	return fm, nil
}

// formatAgentName converts an agent slug to a readable name.
func formatAgentName(slug string) string {
	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Source returns the manifest directory this registry was scanned from.
func (r *Registry) Source() string { return r.source }

// Count returns the number of discovered agents.
func (r *Registry) Count() int { return len(r.ids) }

// IDs returns all discovered agent IDs in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.ids))
	copy(ids, r.ids)
	return ids
}

// Get returns the descriptor for an agent ID, or nil if unknown.
func (r *Registry) Get(id string) *models.AgentDescriptor {
	return r.agents[id]
}

// All returns every discovered descriptor in ID order.
func (r *Registry) All() []*models.AgentDescriptor {
	out := make([]*models.AgentDescriptor, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.agents[id])
	}
	return out
}

// CriticalAgents returns the IDs of agents whose criticality flag is set,
// sourced from descriptor metadata.
func (r *Registry) CriticalAgents() []string {
	var critical []string
	for _, id := range r.ids {
		if r.agents[id].Critical {
			critical = append(critical, id)
		}
	}
	return critical
}

// Available returns the IDs of agents that can currently accept work.
func (r *Registry) Available() []string {
	var out []string
	for _, id := range r.ids {
		if r.agents[id].Availability != models.AvailabilityUnavailable {
			out = append(out, id)
		}
	}
	return out
}

// WithCapability returns the IDs of agents declaring the capability tag.
func (r *Registry) WithCapability(tag string) []string {
	var out []string
	for _, id := range r.ids {
		if r.agents[id].HasCapability(tag) {
			out = append(out, id)
		}
	}
	return out
}

// ValidateCompleteness checks a whole-team candidate list against the
// registry. The list is complete only if it is a superset of the critical
// agent set and covers at least minFraction of the discovered set.
func (r *Registry) ValidateCompleteness(candidateIDs []string, minFraction float64) models.CompletenessResult {
	candidates := make(map[string]bool, len(candidateIDs))
	for _, id := range candidateIDs {
		candidates[id] = true
	}

	var missing []string
	for _, id := range r.CriticalAgents() {
		if !candidates[id] {
			missing = append(missing, id)
		}
	}

	result := models.CompletenessResult{
		Missing:    missing,
		Discovered: r.Count(),
		Candidates: len(candidates),
	}

	if r.Count() == 0 {
		return result
	}

	coverage := float64(len(candidates)) / float64(r.Count())
	result.OK = len(missing) == 0 && coverage >= minFraction
	return result
}
