package sampler

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCoarseRegularGrid(t *testing.T) {
	got := Coarse(35, 10)
	want := []float64{0, 10, 20, 30, 34.9}
	if len(got) != len(want) {
		t.Fatalf("timestamps = %v, want %v", got, want)
	}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Fatalf("timestamps = %v, want %v", got, want)
		}
	}
}

func TestCoarseNoTrailingSampleWhenGridReachesEnd(t *testing.T) {
	// Last grid point at 30 with duration 30.5: within 1s of the end,
	// so no tail sample is added.
	got := Coarse(30.5, 10)
	want := []float64{0, 10, 20, 30}
	if len(got) != len(want) {
		t.Fatalf("timestamps = %v, want %v", got, want)
	}
}

func TestCoarseTailClampedToDuration(t *testing.T) {
	got := Coarse(12, 10)
	// Grid is 0, 10; tail would be 20 but is clamped to 11.9.
	if len(got) != 3 || !almostEqual(got[2], 11.9) {
		t.Fatalf("timestamps = %v, want tail 11.9", got)
	}
}

func TestCoarseCostBound(t *testing.T) {
	duration, interval := 3600.0, 10.0
	got := Coarse(duration, interval)
	bound := int(math.Ceil(duration/interval)) + 1
	if len(got) > bound {
		t.Fatalf("coarse samples = %d, exceeds bound %d", len(got), bound)
	}
}

func TestCoarseDegenerateInputs(t *testing.T) {
	if got := Coarse(0, 10); got != nil {
		t.Fatalf("zero duration should yield nil, got %v", got)
	}
	if got := Coarse(10, 0); got != nil {
		t.Fatalf("zero interval should yield nil, got %v", got)
	}
}

func TestRefinementOnlyAroundTransitions(t *testing.T) {
	samples := []Sample{
		{Timestamp: 0, Category: "ground"},
		{Timestamp: 10, Category: "ground"},
		{Timestamp: 20, Category: "freefall"},
		{Timestamp: 30, Category: "freefall"},
	}
	got := Refinement(samples, 1)
	// Only the 10..20 window is refined, endpoints excluded.
	if len(got) != 9 {
		t.Fatalf("refinement = %v, want 9 samples", got)
	}
	if !almostEqual(got[0], 11) || !almostEqual(got[8], 19) {
		t.Fatalf("refinement = %v, want 11..19", got)
	}
}

func TestRefinementNoTransitions(t *testing.T) {
	samples := []Sample{
		{Timestamp: 0, Category: "freefall"},
		{Timestamp: 10, Category: "freefall"},
	}
	if got := Refinement(samples, 1); got != nil {
		t.Fatalf("expected no refinement, got %v", got)
	}
}

func TestRefinementSorted(t *testing.T) {
	samples := []Sample{
		{Timestamp: 0, Category: "ground"},
		{Timestamp: 10, Category: "freefall"},
		{Timestamp: 20, Category: "canopy"},
	}
	got := Refinement(samples, 1)
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("refinement not sorted: %v", got)
		}
	}
}

func TestMergeDedupesAndSorts(t *testing.T) {
	coarse := []Sample{
		{Timestamp: 0, Category: "ground"},
		{Timestamp: 10, Category: "freefall"},
	}
	fine := []Sample{
		{Timestamp: 5, Category: "ground"},
		{Timestamp: 10, Category: "canopy"}, // duplicate timestamp, primary wins
		{Timestamp: 7, Category: "freefall"},
	}
	got := Merge(coarse, fine)
	if len(got) != 4 {
		t.Fatalf("merged = %v, want 4 samples", got)
	}
	wantTs := []float64{0, 5, 7, 10}
	for i := range wantTs {
		if !almostEqual(got[i].Timestamp, wantTs[i]) {
			t.Fatalf("merged order = %v", got)
		}
	}
	if got[3].Category != "freefall" {
		t.Fatalf("duplicate resolution wrong: %+v", got[3])
	}
}
