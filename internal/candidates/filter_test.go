package candidates

import (
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lamim/programforge/internal/failure"
	"github.com/lamim/programforge/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testCatalog() []models.Exercise {
	return []models.Exercise{
		{ID: "pushup", Name: "Push-Up", Category: "strength", Equipment: "bodyweight", Difficulty: models.LevelBeginner, Movement: "push", BodyRegions: []string{"chest", "shoulder", "wrist"}},
		{ID: "squat", Name: "Air Squat", Category: "strength", Equipment: "", Difficulty: models.LevelBeginner, Movement: "squat", BodyRegions: []string{"knee", "hip"}},
		{ID: "db-row", Name: "Dumbbell Row", Category: "strength", Equipment: "dumbbells", Difficulty: models.LevelBeginner, Movement: "pull", BodyRegions: []string{"back"}},
		{ID: "bb-squat", Name: "Back Squat", Category: "strength", Equipment: "barbell, rack", Difficulty: models.LevelIntermediate, Movement: "squat", BodyRegions: []string{"knee", "lower back"}},
		{ID: "kb-swing", Name: "Kettlebell Swing", Category: "power", Equipment: "kettlebell", Difficulty: models.LevelIntermediate, Movement: "hinge", BodyRegions: []string{"lower back", "hip"}},
		{ID: "pistol", Name: "Pistol Squat", Category: "strength", Equipment: "none", Difficulty: models.LevelAdvanced, Movement: "squat", BodyRegions: []string{"knee"}},
		{ID: "burpee", Name: "Burpee", Category: "conditioning", Equipment: "bodyweight", Difficulty: models.LevelBeginner, Movement: "plyo", BodyRegions: []string{"full body"}},
		{ID: "plank", Name: "Plank", Category: "core", Equipment: "bodyweight", Difficulty: models.LevelBeginner, Movement: "core", BodyRegions: []string{"core"}},
		{ID: "pullup", Name: "Pull-Up", Category: "strength", Equipment: "pull-up bar", Difficulty: models.LevelIntermediate, Movement: "pull", BodyRegions: []string{"shoulder", "elbow"}},
	}
}

func TestApply_StageAttribution(t *testing.T) {
	f := New(Options{}, testLogger())

	pool := f.Apply(testCatalog(), models.Constraints{
		Equipment:  []string{"DB", "chin-up bar"},
		Level:      models.LevelIntermediate,
		Exclusions: []string{"knee"},
		Aversions:  []string{"burpee"},
	})

	want := FilterStats{
		TotalAvailable:      9,
		RejectedByEquipment: 2, // bb-squat, kb-swing
		RejectedByLevel:     1, // pistol
		RejectedByConflict:  1, // squat (knee); pistol already gone
		RejectedByAversion:  1, // burpee
		Final:               4,
	}
	if diff := cmp.Diff(want, pool.Stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	var ids []string
	for _, e := range pool.Exercises {
		ids = append(ids, e.ID)
	}
	if diff := cmp.Diff([]string{"pushup", "db-row", "plank", "pullup"}, ids); diff != "" {
		t.Errorf("pool mismatch (-want +got):\n%s", diff)
	}
	if !pool.Contains("db-row") || pool.Contains("burpee") {
		t.Error("Contains() disagrees with the pool contents")
	}
}

func TestApply_StatsAlwaysReconcile(t *testing.T) {
	f := New(Options{}, testLogger())
	constraintSets := []models.Constraints{
		{},
		{Level: models.LevelAdvanced},
		{Equipment: []string{"barbell", "rack", "kettlebell", "dumbbell", "pullup bar"}, Level: models.LevelAdvanced},
		{Exclusions: []string{"shoulder", "lower back"}, Level: models.LevelAdvanced},
		{Aversions: []string{"squat", "pull"}, Level: models.LevelIntermediate},
		{Equipment: []string{"bands"}, Exclusions: []string{"wrist"}, Aversions: []string{"core"}},
		{Exclusions: []string{"", "  "}},
	}

	for i, c := range constraintSets {
		t.Run(fmt.Sprintf("set_%d", i), func(t *testing.T) {
			pool := f.Apply(testCatalog(), c)
			if !pool.Stats.Reconciles() {
				t.Errorf("stats do not reconcile: %+v", pool.Stats)
			}
			if pool.Stats.Final != pool.Len() {
				t.Errorf("Final = %d, pool has %d", pool.Stats.Final, pool.Len())
			}
		})
	}
}

func TestApply_NoConstraintsKeepsBodyweight(t *testing.T) {
	var catalog []models.Exercise
	for i := 0; i < 20; i++ {
		catalog = append(catalog, models.Exercise{ID: fmt.Sprintf("bw-%d", i), Name: fmt.Sprintf("Move %d", i), Equipment: "bodyweight", Difficulty: models.LevelBeginner})
	}

	pool := New(Options{}, testLogger()).Apply(catalog, models.Constraints{})
	if pool.Stats.Rejected() != 0 || pool.Len() != 20 {
		t.Errorf("expected all 20 exercises kept, got stats %+v", pool.Stats)
	}
}

func TestApply_UnknownLevelIsBeginner(t *testing.T) {
	pool := New(Options{}, testLogger()).Apply(testCatalog(), models.Constraints{Level: "elite"})
	for _, e := range pool.Exercises {
		if e.Difficulty.Rank() > models.LevelBeginner.Rank() {
			t.Errorf("exercise %s above beginner survived", e.ID)
		}
	}
}

func TestBuild_InsufficientCandidates(t *testing.T) {
	f := New(Options{MinimumPerSession: 4}, testLogger())

	pool, err := f.Build(testCatalog(), models.Constraints{Level: models.LevelBeginner}, 3)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !failure.Is(err, failure.KindInsufficientCandidates) {
		t.Errorf("expected insufficient candidates, got %v", err)
	}
	if pool == nil || !pool.Stats.Reconciles() {
		t.Error("stats should still be returned for auditing")
	}
}

func TestTagSetMatcherIsStricter(t *testing.T) {
	c := models.Constraints{
		Equipment:  []string{"dumbbell", "barbell", "rack", "kettlebell", "pullup bar"},
		Level:      models.LevelAdvanced,
		Exclusions: []string{"back"},
	}

	loose := New(Options{Matcher: Substring}, testLogger()).Apply(testCatalog(), c)
	strict := New(Options{Matcher: TagSet}, testLogger()).Apply(testCatalog(), c)

	if loose.Stats.RejectedByConflict <= strict.Stats.RejectedByConflict {
		t.Errorf("substring rejected %d, tag set rejected %d; substring should over-exclude",
			loose.Stats.RejectedByConflict, strict.Stats.RejectedByConflict)
	}
	if strict.Contains("db-row") {
		t.Error("tag set matcher should still exclude an exact body region match")
	}
}

func TestSubstringRule_BothDirections(t *testing.T) {
	tags := TagsFor(models.Exercise{Name: "Overhead Press", BodyRegions: []string{"shoulder"}})

	tests := []struct {
		keyword string
		want    bool
	}{
		{"shoulder", true},
		{"shoulder impingement", true}, // field inside keyword
		{"overhead", true},             // keyword inside field
		{"knee", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := Substring(tt.keyword, ScopeConflict).Matches(tags); got != tt.want {
			t.Errorf("Substring(%q).Matches = %v, want %v", tt.keyword, got, tt.want)
		}
	}
}

func TestAversionScopeIgnoresBodyRegions(t *testing.T) {
	tags := TagsFor(models.Exercise{Name: "Goblet Squat", Category: "strength", Movement: "squat", BodyRegions: []string{"knee"}})
	if Substring("knee", ScopeAversion).Matches(tags) {
		t.Error("aversions should not inspect body regions")
	}
	if !Substring("squat", ScopeAversion).Matches(tags) {
		t.Error("aversions should inspect the name")
	}
}

func TestEquipmentSynonyms(t *testing.T) {
	set := newEquipmentSet([]string{"Resistance Bands", "KB", "cable machine"})

	tests := []struct {
		required string
		want     bool
	}{
		{"band", true},
		{"kettlebells", true},
		{"cable", true},
		{"barbell", false},
		{"barbell, kettlebell", true},
	}
	for _, tt := range tests {
		if got := set.allows(tt.required); got != tt.want {
			t.Errorf("allows(%q) = %v, want %v", tt.required, got, tt.want)
		}
	}
}
