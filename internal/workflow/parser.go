package workflow

import (
	"sort"
	"strings"

	"github.com/calvinwilliamsjr/orch/pkg/models"
)

// Edge is a dependency edge between two units: To depends on From.
type Edge struct {
	From string
	To   string
}

// EdgeExtractor converts free-form request text into unit identifiers and
// dependency edges. The matching strategy is swappable without touching
// the dispatcher.
type EdgeExtractor interface {
	// Extract returns the unit IDs in first-appearance order and the
	// dependency edges implied by the request phrasing.
	Extract(text string) (units []string, edges []Edge, err error)
}

// PhraseTable is the fixed-table EdgeExtractor. Sequential phrases create a
// dependency edge between consecutive groups; parallel phrases keep units
// in the same group. Phrases match whole words only, so a unit name that
// happens to contain a phrase as a substring is left intact.
type PhraseTable struct {
	// Sequential phrases split the request into ordered groups.
	Sequential []string
	// Parallel phrases separate units within one group.
	Parallel []string
}

// DefaultPhraseTable returns the built-in phrase table.
func DefaultPhraseTable() *PhraseTable {
	return &PhraseTable{
		Sequential: []string{"after that", "then"},
		Parallel:   []string{"at the same time", "in parallel", "concurrently", "together"},
	}
}

// stopwords are filler tokens that never name a work unit.
var stopwords = map[string]bool{
	"run": true, "execute": true, "do": true, "start": true,
	"the": true, "and": true, "with": true,
	"task": true, "tasks": true, "unit": true, "units": true,
	"please": true,
}

// Extract implements EdgeExtractor using the fixed phrase table. The text
// is tokenized first and phrases are matched against whole-token windows,
// so "then" inside a unit name never splits it.
func (t *PhraseTable) Extract(text string) ([]string, []Edge, error) {
	lower := strings.ToLower(strings.ReplaceAll(text, ",", " "))
	var tokens []string
	for _, tok := range strings.Fields(lower) {
		tok = strings.Trim(tok, ".,;:!?")
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}

	sequential := splitPhrases(t.Sequential)
	parallel := splitPhrases(t.Parallel)

	var units []string
	seen := make(map[string]bool)
	var edges []Edge
	var prevGroup, group []string

	// Every unit in a group depends on every unit in the previous
	// non-empty group.
	flush := func() {
		if len(group) == 0 {
			return
		}
		for _, to := range group {
			for _, from := range prevGroup {
				edges = append(edges, Edge{From: from, To: to})
			}
		}
		prevGroup = group
		group = nil
	}

	for i := 0; i < len(tokens); {
		if n := matchPhrase(tokens[i:], sequential); n > 0 {
			flush()
			i += n
			continue
		}
		if n := matchPhrase(tokens[i:], parallel); n > 0 {
			i += n
			continue
		}
		tok := tokens[i]
		i++
		if stopwords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		units = append(units, tok)
		group = append(group, tok)
	}
	flush()

	if len(units) == 0 {
		return nil, nil, ErrEmptyRequest
	}
	return units, edges, nil
}

// splitPhrases pre-splits each phrase into its word sequence, longest
// first so multi-word phrases win over their prefixes.
func splitPhrases(phrases []string) [][]string {
	out := make([][]string, 0, len(phrases))
	for _, p := range phrases {
		out = append(out, strings.Fields(p))
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// matchPhrase reports how many tokens the first matching phrase consumes
// at the start of tokens, or 0 when none match.
func matchPhrase(tokens []string, phrases [][]string) int {
	for _, words := range phrases {
		if len(words) == 0 || len(words) > len(tokens) {
			continue
		}
		matched := true
		for i, w := range words {
			if tokens[i] != w {
				matched = false
				break
			}
		}
		if matched {
			return len(words)
		}
	}
	return 0
}

// Parser builds workflow plans from requests.
type Parser struct {
	extractor EdgeExtractor
}

// NewParser creates a Parser. A nil extractor selects the default phrase table.
func NewParser(extractor EdgeExtractor) *Parser {
	if extractor == nil {
		extractor = DefaultPhraseTable()
	}
	return &Parser{extractor: extractor}
}

// Parse converts free-form request text into a staged workflow plan.
// Dependency hints (unit ID -> predecessor IDs) are merged with the edges
// the phrase table extracts. Phrasing is resolved into dependency edges
// before the topological step runs.
func (p *Parser) Parse(text string, hints map[string][]string) (*models.WorkflowPlan, error) {
	ids, edges, err := p.extractor.Extract(text)
	if err != nil {
		return nil, err
	}

	deps := make(map[string][]string)
	for _, e := range edges {
		deps[e.To] = appendUnique(deps[e.To], e.From)
	}
	for id, hintDeps := range hints {
		for _, dep := range hintDeps {
			deps[id] = appendUnique(deps[id], dep)
		}
	}

	units := make([]*models.WorkUnit, 0, len(ids))
	for _, id := range ids {
		units = append(units, &models.WorkUnit{
			ID:        id,
			DependsOn: deps[id],
			Status:    models.UnitStatusPending,
		})
	}
	// Hints may reference units that never appeared in the text; those
	// surface as UnresolvedDependencyError during staging.
	return NewPlan(text, units)
}

// ParseGroups converts structured input into a staged workflow plan.
// Each group holds unit IDs that run in parallel; groups run sequentially,
// so every unit depends on all units of the preceding group.
func (p *Parser) ParseGroups(request string, groups [][]string) (*models.WorkflowPlan, error) {
	var units []*models.WorkUnit
	var prev []string

	for _, group := range groups {
		for _, id := range group {
			deps := make([]string, len(prev))
			copy(deps, prev)
			units = append(units, &models.WorkUnit{
				ID:        id,
				DependsOn: deps,
				Status:    models.UnitStatusPending,
			})
		}
		if len(group) > 0 {
			prev = group
		}
	}

	return NewPlan(request, units)
}

// ParseUnits builds a staged workflow plan from units that already carry
// explicit DependsOn lists.
func (p *Parser) ParseUnits(request string, units []*models.WorkUnit) (*models.WorkflowPlan, error) {
	return NewPlan(request, units)
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
