package workflow

import (
	"errors"
	"reflect"
	"testing"

	"github.com/calvinwilliamsjr/orch/pkg/models"
)

func unit(id string, deps ...string) *models.WorkUnit {
	return &models.WorkUnit{ID: id, DependsOn: deps, Status: models.UnitStatusPending}
}

func stageIDs(stages []*models.Stage) [][]string {
	out := make([][]string, 0, len(stages))
	for _, s := range stages {
		out = append(out, s.UnitIDs())
	}
	return out
}

func TestBuildStagesLayering(t *testing.T) {
	tests := []struct {
		name  string
		units []*models.WorkUnit
		want  [][]string
	}{
		{
			name:  "single unit",
			units: []*models.WorkUnit{unit("a")},
			want:  [][]string{{"a"}},
		},
		{
			name:  "chain",
			units: []*models.WorkUnit{unit("a"), unit("b", "a"), unit("c", "b")},
			want:  [][]string{{"a"}, {"b"}, {"c"}},
		},
		{
			name:  "diamond",
			units: []*models.WorkUnit{unit("a"), unit("b", "a"), unit("c", "a"), unit("d", "b", "c")},
			want:  [][]string{{"a"}, {"b", "c"}, {"d"}},
		},
		{
			name:  "independent units share a stage",
			units: []*models.WorkUnit{unit("a"), unit("b"), unit("c")},
			want:  [][]string{{"a", "b", "c"}},
		},
		{
			name: "stable first-appearance order within a stage",
			units: []*models.WorkUnit{
				unit("z"), unit("m"), unit("a"),
			},
			want: [][]string{{"z", "m", "a"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stages, err := BuildStages(tt.units)
			if err != nil {
				t.Fatalf("BuildStages() error = %v", err)
			}
			if got := stageIDs(stages); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("stages = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildStagesCycle(t *testing.T) {
	units := []*models.WorkUnit{
		unit("a", "c"), unit("b", "a"), unit("c", "b"),
	}
	stages, err := BuildStages(units)
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("BuildStages() error = %v, want ErrCycleDetected", err)
	}
	if stages != nil {
		t.Error("no partial plan may be returned for a cyclic graph")
	}
}

func TestBuildStagesSelfCycle(t *testing.T) {
	if _, err := BuildStages([]*models.WorkUnit{unit("a", "a")}); !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("BuildStages() error = %v, want ErrCycleDetected", err)
	}
}

func TestBuildStagesUnresolvedDependency(t *testing.T) {
	units := []*models.WorkUnit{unit("a"), unit("b", "ghost")}
	_, err := BuildStages(units)

	var unresolved *UnresolvedDependencyError
	if !errors.As(err, &unresolved) {
		t.Fatalf("BuildStages() error = %v, want *UnresolvedDependencyError", err)
	}
	if unresolved.UnitID != "b" || unresolved.DepID != "ghost" {
		t.Errorf("error fields = %q/%q, want b/ghost", unresolved.UnitID, unresolved.DepID)
	}
}

func TestBuildStagesEmpty(t *testing.T) {
	if _, err := BuildStages(nil); !errors.Is(err, ErrEmptyRequest) {
		t.Fatalf("BuildStages() error = %v, want ErrEmptyRequest", err)
	}
}

func TestBuildStagesIdempotent(t *testing.T) {
	// Staging an already-staged plan's units reproduces the same layering.
	units := []*models.WorkUnit{
		unit("a"), unit("b", "a"), unit("c", "a"), unit("d", "b", "c"),
	}
	first, err := BuildStages(units)
	if err != nil {
		t.Fatalf("BuildStages() error = %v", err)
	}

	var flattened []*models.WorkUnit
	for _, s := range first {
		flattened = append(flattened, s.Units...)
	}
	second, err := BuildStages(flattened)
	if err != nil {
		t.Fatalf("BuildStages() second pass error = %v", err)
	}

	if !reflect.DeepEqual(stageIDs(first), stageIDs(second)) {
		t.Errorf("second pass = %v, want %v", stageIDs(second), stageIDs(first))
	}
}
