package workflow

import (
	"fmt"
	"strings"

	"github.com/calvinwilliamsjr/orch/pkg/models"
)

// CapabilityKeywords maps one capability tag to the request keywords that
// imply it. The table is ordered so decomposition stays deterministic.
type CapabilityKeywords struct {
	// Capability is the tag assigned to a matching sub-unit.
	Capability string
	// Keywords trigger the capability when present in the unit text.
	Keywords []string
}

// DefaultCapabilityKeywords is the single source of truth for mapping unit
// text to required capabilities.
var DefaultCapabilityKeywords = []CapabilityKeywords{
	{
		Capability: "security",
		Keywords: []string{
			"security", "auth", "authentication", "authorization",
			"vulnerability", "encryption", "privacy", "compliance",
		},
	},
	{
		Capability: "database",
		Keywords: []string{
			"database", "schema", "migration", "sql", "storage", "query",
		},
	},
	{
		Capability: "frontend",
		Keywords: []string{
			"ui", "frontend", "dashboard", "layout", "css", "render",
		},
	},
	{
		Capability: "backend",
		Keywords: []string{
			"api", "endpoint", "server", "backend", "service", "handler",
		},
	},
	{
		Capability: "testing",
		Keywords: []string{
			"test", "qa", "verify", "validation", "regression",
		},
	},
}

// genericCapability tags sub-units whose text matched no keyword.
const genericCapability = "general"

// Decomposer expands a single unit without sub-structure into capability
// tagged sub-units. Decomposition is advisory: ambiguous input yields one
// generic sub-unit rather than an error.
type Decomposer struct {
	table []CapabilityKeywords
}

// NewDecomposer creates a Decomposer. A nil table selects the defaults.
func NewDecomposer(table []CapabilityKeywords) *Decomposer {
	if table == nil {
		table = DefaultCapabilityKeywords
	}
	return &Decomposer{table: table}
}

// Decompose produces sub-units for a unit with no declared sub-structure.
// One sub-unit is created per matched capability, in table order; each
// sub-unit after the first depends on the one before it so capability work
// lands in a stable sequence. Unknown input produces a single generic
// sub-unit. Deterministic given the same input and table.
func (d *Decomposer) Decompose(unit *models.WorkUnit) []*models.WorkUnit {
	text := strings.ToLower(unit.Title + " " + unit.ID)

	var matched []string
	for _, entry := range d.table {
		for _, kw := range entry.Keywords {
			if strings.Contains(text, kw) {
				matched = append(matched, entry.Capability)
				break
			}
		}
	}

	if len(matched) == 0 {
		matched = []string{genericCapability}
	}

	base := strings.TrimSpace(unit.Title)
	if base == "" {
		base = unit.ID
	}

	subs := make([]*models.WorkUnit, 0, len(matched))
	for i, capability := range matched {
		sub := &models.WorkUnit{
			ID:           fmt.Sprintf("%s.%d", unit.ID, i+1),
			Title:        fmt.Sprintf("%s (%s)", base, capability),
			Capabilities: []string{capability},
			Status:       models.UnitStatusPending,
		}
		if i > 0 {
			sub.DependsOn = []string{subs[i-1].ID}
		}
		subs = append(subs, sub)
	}

	return subs
}

// ExpandUnits applies decomposition to every unit that carries no declared
// capabilities. A single-capability match tags the unit in place; a
// multi-capability match replaces it with the chained sub-units. Units that
// depended on a replaced unit are re-pointed at its final sub-unit so the
// plan's ordering survives expansion. Units that already declare
// capabilities pass through untouched.
func (d *Decomposer) ExpandUnits(units []*models.WorkUnit) []*models.WorkUnit {
	replaced := make(map[string]string)
	out := make([]*models.WorkUnit, 0, len(units))

	for _, u := range units {
		if len(u.Capabilities) > 0 {
			out = append(out, u)
			continue
		}
		subs := d.Decompose(u)
		if len(subs) == 1 {
			u.Capabilities = subs[0].Capabilities
			out = append(out, u)
			continue
		}
		subs[0].DependsOn = append([]string(nil), u.DependsOn...)
		out = append(out, subs...)
		replaced[u.ID] = subs[len(subs)-1].ID
	}

	for _, u := range out {
		for i, dep := range u.DependsOn {
			if last, ok := replaced[dep]; ok {
				u.DependsOn[i] = last
			}
		}
	}
	return out
}
