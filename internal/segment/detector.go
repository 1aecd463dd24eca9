// Package segment turns a classified sample timeline into labeled spans and
// a per-file dominant category.
package segment

import (
	"skysort/internal/catalog"
	"skysort/internal/classifier"
	"skysort/internal/sampler"
)

// Categories assigned to detected spans.
const (
	CategoryFreefall     = "freefall"
	CategoryCanopy       = "canopy"
	CategoryFlight       = "flight"
	CategoryGround       = "ground"
	CategoryGroundBefore = "ground_before"
	CategoryGroundAfter  = "ground_after"
	CategoryMarker       = "identity_marker"
	CategoryUnknown      = "unknown"
)

// categoryMap translates classifier labels into span categories. Ground is
// split into before/after once the whole timeline is known.
var categoryMap = map[string]string{
	classifier.LabelFreefall: CategoryFreefall,
	classifier.LabelCanopy:   CategoryCanopy,
	classifier.LabelInPlane:  CategoryFlight,
	classifier.LabelGround:   CategoryGround,
}

// categoryPriority ranks categories when picking a file's dominant one.
var categoryPriority = map[string]int{
	CategoryFreefall:     6,
	CategoryCanopy:       5,
	CategoryFlight:       4,
	CategoryGroundBefore: 3,
	CategoryGroundAfter:  2,
	CategoryMarker:       1,
	CategoryUnknown:      0,
}

// Config controls detection behavior.
type Config struct {
	// SmoothingWindow is the sample count for majority-vote smoothing.
	SmoothingWindow int
	// MinSegmentSeconds is the length below which interior spans are
	// merged into a neighbor.
	MinSegmentSeconds float64
}

// Detector derives segments from a classified sample timeline.
type Detector struct {
	smoothingWindow   int
	minSegmentSeconds float64
}

// NewDetector builds a detector, applying defaults for zero values.
func NewDetector(cfg Config) *Detector {
	window := cfg.SmoothingWindow
	if window <= 0 {
		window = 3
	}
	minSeconds := cfg.MinSegmentSeconds
	if minSeconds <= 0 {
		minSeconds = 3.0
	}
	return &Detector{smoothingWindow: window, minSegmentSeconds: minSeconds}
}

// Detect converts samples (sorted by timestamp) into contiguous segments and
// returns them with the dominant category. markerEndSeconds, when positive,
// carves out an identifier-code span at the start of the file.
func (d *Detector) Detect(samples []sampler.Sample, markerEndSeconds float64) ([]catalog.Segment, string) {
	if len(samples) == 0 {
		return nil, CategoryUnknown
	}

	smoothed := d.smooth(samples)
	mapped := mapCategories(smoothed)
	segments := detectBoundaries(mapped)
	segments = d.mergeShort(segments)
	segments = refineGround(segments)
	if markerEndSeconds > 0 {
		segments = addMarkerSegment(segments, markerEndSeconds)
	}
	for i := range segments {
		segments[i].Sequence = i
	}
	return segments, dominant(segments)
}

// smooth replaces each sample's category with the majority vote over a
// centered window, keeping the sample's own confidence.
func (d *Detector) smooth(samples []sampler.Sample) []sampler.Sample {
	if len(samples) <= d.smoothingWindow {
		return samples
	}
	half := d.smoothingWindow / 2
	smoothed := make([]sampler.Sample, len(samples))
	for i, sample := range samples {
		start := i - half
		if start < 0 {
			start = 0
		}
		end := i + half + 1
		if end > len(samples) {
			end = len(samples)
		}

		counts := make(map[string]int, 4)
		for _, neighbor := range samples[start:end] {
			counts[neighbor.Category]++
		}
		winner := sample.Category
		best := counts[sample.Category]
		for _, neighbor := range samples[start:end] {
			if counts[neighbor.Category] > best {
				winner = neighbor.Category
				best = counts[neighbor.Category]
			}
		}

		smoothed[i] = sample
		smoothed[i].Category = winner
	}
	return smoothed
}

func mapCategories(samples []sampler.Sample) []sampler.Sample {
	mapped := make([]sampler.Sample, len(samples))
	for i, sample := range samples {
		mapped[i] = sample
		if category, ok := categoryMap[sample.Category]; ok {
			mapped[i].Category = category
		} else {
			mapped[i].Category = CategoryUnknown
		}
	}
	return mapped
}

// detectBoundaries collapses runs of equal categories into segments. Each
// segment ends where the next begins; the last extends one second past the
// final sample to cover the frame it represents.
func detectBoundaries(mapped []sampler.Sample) []catalog.Segment {
	var segments []catalog.Segment

	start := mapped[0].Timestamp
	category := mapped[0].Category
	confidences := []float64{mapped[0].Confidence}

	for _, sample := range mapped[1:] {
		if sample.Category != category {
			segments = append(segments, catalog.Segment{
				StartSeconds: start,
				EndSeconds:   sample.Timestamp,
				Category:     category,
				Confidence:   mean(confidences),
			})
			start = sample.Timestamp
			category = sample.Category
			confidences = confidences[:0]
		}
		confidences = append(confidences, sample.Confidence)
	}

	segments = append(segments, catalog.Segment{
		StartSeconds: start,
		EndSeconds:   mapped[len(mapped)-1].Timestamp + 1.0,
		Category:     category,
		Confidence:   mean(confidences),
	})
	return segments
}

// mergeShort absorbs interior segments shorter than the minimum into a
// neighbor, preferring one with the same category. The first and last
// segments are kept regardless of length. Adjacent equal categories are
// coalesced along the way.
func (d *Detector) mergeShort(segments []catalog.Segment) []catalog.Segment {
	if len(segments) <= 1 {
		return segments
	}

	var merged []catalog.Segment
	for i := 0; i < len(segments); i++ {
		seg := segments[i]
		interior := i > 0 && i < len(segments)-1

		if interior && seg.Duration() < d.minSegmentSeconds {
			var prev *catalog.Segment
			if len(merged) > 0 {
				prev = &merged[len(merged)-1]
			}
			next := &segments[i+1]

			switch {
			case prev != nil && prev.Category == seg.Category:
				prev.EndSeconds = seg.EndSeconds
			case next.Category == seg.Category:
				next.StartSeconds = seg.StartSeconds
				next.Confidence = (seg.Confidence + next.Confidence) / 2
			case prev != nil:
				prev.EndSeconds = seg.EndSeconds
			default:
				merged = append(merged, seg)
			}
			continue
		}

		if len(merged) > 0 && merged[len(merged)-1].Category == seg.Category {
			last := &merged[len(merged)-1]
			last.EndSeconds = seg.EndSeconds
			last.Confidence = (last.Confidence + seg.Confidence) / 2
			continue
		}
		merged = append(merged, seg)
	}
	return merged
}

// refineGround splits ground into before/after the jump: any ground span
// following a freefall or canopy span happened after landing.
func refineGround(segments []catalog.Segment) []catalog.Segment {
	jumpSeen := false
	for i := range segments {
		switch segments[i].Category {
		case CategoryFreefall, CategoryCanopy:
			jumpSeen = true
		case CategoryGround:
			if jumpSeen {
				segments[i].Category = CategoryGroundAfter
			} else {
				segments[i].Category = CategoryGroundBefore
			}
		}
	}
	return segments
}

// addMarkerSegment injects an identifier-code span covering [0, end),
// truncating or replacing whatever the classifier saw there.
func addMarkerSegment(segments []catalog.Segment, endSeconds float64) []catalog.Segment {
	marker := catalog.Segment{
		StartSeconds: 0,
		EndSeconds:   endSeconds,
		Category:     CategoryMarker,
		Confidence:   1.0,
	}
	if len(segments) == 0 {
		return []catalog.Segment{marker}
	}

	first := &segments[0]
	if first.StartSeconds < endSeconds {
		if first.EndSeconds <= endSeconds {
			// Entirely inside the code window.
			first.Category = CategoryMarker
			first.StartSeconds = 0
			return segments
		}
		first.StartSeconds = endSeconds
	}
	return append([]catalog.Segment{marker}, segments...)
}

// dominant picks the file's overall category: highest priority wins, and
// within equal priority the larger total duration wins.
func dominant(segments []catalog.Segment) string {
	if len(segments) == 0 {
		return CategoryUnknown
	}

	durations := make(map[string]float64, len(segments))
	for _, seg := range segments {
		durations[seg.Category] += seg.Duration()
	}

	best := CategoryUnknown
	bestDuration := 0.0
	for category, duration := range durations {
		switch {
		case categoryPriority[category] > categoryPriority[best]:
			best = category
			bestDuration = duration
		case categoryPriority[category] == categoryPriority[best] && duration > bestDuration:
			best = category
			bestDuration = duration
		}
	}
	return best
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}
