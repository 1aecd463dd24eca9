package segment

import (
	"math"
	"math/rand"
	"testing"

	"skysort/internal/catalog"
	"skysort/internal/sampler"
)

// perSecond builds one sample per second with the given label spans.
func perSecond(spans ...struct {
	label string
	from  int
	to    int
}) []sampler.Sample {
	var samples []sampler.Sample
	for _, span := range spans {
		for ts := span.from; ts < span.to; ts++ {
			samples = append(samples, sampler.Sample{
				Timestamp:  float64(ts),
				Category:   span.label,
				Confidence: 0.9,
			})
		}
	}
	return samples
}

func span(label string, from, to int) struct {
	label string
	from  int
	to    int
} {
	return struct {
		label string
		from  int
		to    int
	}{label, from, to}
}

func TestDetectFullJump(t *testing.T) {
	samples := perSecond(
		span("ground", 0, 5),
		span("in_plane", 5, 15),
		span("freefall", 15, 25),
		span("canopy", 25, 35),
		span("ground", 35, 40),
	)
	detector := NewDetector(Config{})
	segments, dominantCategory := detector.Detect(samples, 4.0)

	want := []catalog.Segment{
		{Category: CategoryMarker, StartSeconds: 0, EndSeconds: 4},
		{Category: CategoryGroundBefore, StartSeconds: 4, EndSeconds: 5},
		{Category: CategoryFlight, StartSeconds: 5, EndSeconds: 15},
		{Category: CategoryFreefall, StartSeconds: 15, EndSeconds: 25},
		{Category: CategoryCanopy, StartSeconds: 25, EndSeconds: 35},
		{Category: CategoryGroundAfter, StartSeconds: 35, EndSeconds: 40},
	}
	if len(segments) != len(want) {
		t.Fatalf("segments = %d, want %d: %+v", len(segments), len(want), segments)
	}
	for i, expected := range want {
		got := segments[i]
		if got.Category != expected.Category {
			t.Errorf("segment %d category = %q, want %q", i, got.Category, expected.Category)
		}
		if math.Abs(got.StartSeconds-expected.StartSeconds) > 1e-9 || math.Abs(got.EndSeconds-expected.EndSeconds) > 1e-9 {
			t.Errorf("segment %d span = [%v,%v), want [%v,%v)", i, got.StartSeconds, got.EndSeconds, expected.StartSeconds, expected.EndSeconds)
		}
		if got.Sequence != i {
			t.Errorf("segment %d sequence = %d, want zero-based %d", i, got.Sequence, i)
		}
	}
	if dominantCategory != CategoryFreefall {
		t.Fatalf("dominant = %q, want freefall", dominantCategory)
	}
}

func TestDetectCoverageInvariant(t *testing.T) {
	samples := perSecond(
		span("ground", 0, 7),
		span("freefall", 7, 9), // short noisy burst
		span("ground", 9, 12),
		span("in_plane", 12, 30),
		span("freefall", 30, 60),
		span("canopy", 60, 90),
	)
	detector := NewDetector(Config{})
	segments, _ := detector.Detect(samples, 0)

	if segments[0].StartSeconds != 0 {
		t.Fatalf("first segment starts at %v, want 0", segments[0].StartSeconds)
	}
	last := samples[len(samples)-1].Timestamp + 1.0
	if math.Abs(segments[len(segments)-1].EndSeconds-last) > 1e-9 {
		t.Fatalf("last segment ends at %v, want %v", segments[len(segments)-1].EndSeconds, last)
	}
	for i := 1; i < len(segments); i++ {
		if math.Abs(segments[i].StartSeconds-segments[i-1].EndSeconds) > 1e-9 {
			t.Fatalf("gap between segments %d and %d: %v != %v", i-1, i, segments[i-1].EndSeconds, segments[i].StartSeconds)
		}
	}
}

func TestSmoothingSuppressesSingleMisclassification(t *testing.T) {
	samples := perSecond(span("freefall", 0, 10))
	samples[5].Category = "boden_glitch"

	detector := NewDetector(Config{SmoothingWindow: 3})
	segments, dominantCategory := detector.Detect(samples, 0)

	if len(segments) != 1 {
		t.Fatalf("segments = %+v, want single freefall span", segments)
	}
	if dominantCategory != CategoryFreefall {
		t.Fatalf("dominant = %q", dominantCategory)
	}
}

func TestMergeShortIdempotent(t *testing.T) {
	detector := NewDetector(Config{MinSegmentSeconds: 3})
	segments := []catalog.Segment{
		{Category: CategoryGround, StartSeconds: 0, EndSeconds: 10, Confidence: 0.9},
		{Category: CategoryFlight, StartSeconds: 10, EndSeconds: 11.5, Confidence: 0.8},
		{Category: CategoryFreefall, StartSeconds: 11.5, EndSeconds: 40, Confidence: 0.95},
		{Category: CategoryCanopy, StartSeconds: 40, EndSeconds: 41, Confidence: 0.7},
	}

	once := detector.mergeShort(append([]catalog.Segment(nil), segments...))
	twice := detector.mergeShort(append([]catalog.Segment(nil), once...))

	if len(once) != len(twice) {
		t.Fatalf("merge not idempotent: %d vs %d segments", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("merge not idempotent at %d: %+v vs %+v", i, once[i], twice[i])
		}
	}
	// Trailing short segment survives.
	if once[len(once)-1].Category != CategoryCanopy {
		t.Fatalf("last segment dropped: %+v", once)
	}
}

func TestDominantDeterministicUnderReordering(t *testing.T) {
	segments := []catalog.Segment{
		{Category: CategoryGroundBefore, StartSeconds: 0, EndSeconds: 30},
		{Category: CategoryCanopy, StartSeconds: 90, EndSeconds: 200},
		{Category: CategoryFreefall, StartSeconds: 30, EndSeconds: 90},
		{Category: CategoryGroundAfter, StartSeconds: 200, EndSeconds: 400},
	}
	want := dominant(segments)
	if want != CategoryFreefall {
		t.Fatalf("dominant = %q, want freefall", want)
	}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		rng.Shuffle(len(segments), func(a, b int) { segments[a], segments[b] = segments[b], segments[a] })
		if got := dominant(segments); got != want {
			t.Fatalf("dominant changed under reordering: %q vs %q", got, want)
		}
	}
}

func TestMarkerSegmentReplacesShortFirstSegment(t *testing.T) {
	segments := []catalog.Segment{
		{Category: CategoryGroundBefore, StartSeconds: 0, EndSeconds: 3},
		{Category: CategoryFlight, StartSeconds: 3, EndSeconds: 20},
	}
	got := addMarkerSegment(segments, 3.5)
	if got[0].Category != CategoryMarker || got[0].StartSeconds != 0 {
		t.Fatalf("first segment = %+v, want marker from 0", got[0])
	}
	if got[1].StartSeconds != 3.5 {
		t.Fatalf("overlap not truncated: %+v", got[1])
	}
}

func TestMarkerSegmentOnEmptyTimeline(t *testing.T) {
	got := addMarkerSegment(nil, 2.0)
	if len(got) != 1 || got[0].Category != CategoryMarker || got[0].EndSeconds != 2.0 {
		t.Fatalf("unexpected segments: %+v", got)
	}
}

func TestDetectEmptySamples(t *testing.T) {
	detector := NewDetector(Config{})
	segments, dominantCategory := detector.Detect(nil, 0)
	if segments != nil || dominantCategory != CategoryUnknown {
		t.Fatalf("empty input should yield unknown, got %v %q", segments, dominantCategory)
	}
}

func TestUnknownLabelMapsToUnknown(t *testing.T) {
	samples := perSecond(span("weird_label", 0, 10))
	detector := NewDetector(Config{})
	segments, dominantCategory := detector.Detect(samples, 0)
	if len(segments) != 1 || segments[0].Category != CategoryUnknown {
		t.Fatalf("segments = %+v", segments)
	}
	if dominantCategory != CategoryUnknown {
		t.Fatalf("dominant = %q", dominantCategory)
	}
}
