// Package sampler plans which frame timestamps get classified. A coarse
// pass covers the whole clip cheaply; a fine pass adds samples only around
// detected activity changes, so classification cost stays near one frame
// per coarse interval for clips with few transitions.
package sampler

import (
	"math"
	"sort"
)

// timestampEpsilon treats two timestamps this close as the same frame.
const timestampEpsilon = 1e-6

// Sample pairs a timestamp with the category the classifier assigned to
// the frame at that point.
type Sample struct {
	Timestamp  float64
	Category   string
	Confidence float64
}

// Coarse returns the first-pass timestamps for a clip: one every interval
// seconds from zero, plus a sample near the end when the regular grid
// stops short of it. Without that trailing sample a category change in the
// final partial interval would go unseen.
func Coarse(durationSeconds, intervalSeconds float64) []float64 {
	if durationSeconds <= 0 || intervalSeconds <= 0 {
		return nil
	}

	var out []float64
	for ts := 0.0; ts < durationSeconds; ts += intervalSeconds {
		out = append(out, ts)
	}

	last := out[len(out)-1]
	if last < durationSeconds-1 {
		tail := math.Min(durationSeconds-0.1, last+intervalSeconds)
		if tail-last > timestampEpsilon {
			out = append(out, tail)
		}
	}
	return out
}

// Refinement returns the extra timestamps to classify between each pair of
// adjacent samples whose categories differ. Returned timestamps are strictly
// inside the open interval, deduplicated, and sorted.
func Refinement(samples []Sample, fineIntervalSeconds float64) []float64 {
	if fineIntervalSeconds <= 0 || len(samples) < 2 {
		return nil
	}

	seen := make(map[int64]struct{}, len(samples))
	for _, sample := range samples {
		seen[quantize(sample.Timestamp)] = struct{}{}
	}

	var out []float64
	for i := 0; i < len(samples)-1; i++ {
		left, right := samples[i], samples[i+1]
		if left.Category == right.Category {
			continue
		}
		for ts := left.Timestamp + fineIntervalSeconds; ts < right.Timestamp-timestampEpsilon; ts += fineIntervalSeconds {
			key := quantize(ts)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, ts)
		}
	}
	sort.Float64s(out)
	return out
}

// Merge combines two sample sets into one timeline sorted by timestamp.
// When both sets carry a sample at the same timestamp the first set wins.
func Merge(primary, secondary []Sample) []Sample {
	merged := make([]Sample, 0, len(primary)+len(secondary))
	seen := make(map[int64]struct{}, len(primary))
	for _, sample := range primary {
		key := quantize(sample.Timestamp)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, sample)
	}
	for _, sample := range secondary {
		key := quantize(sample.Timestamp)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, sample)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp < merged[j].Timestamp })
	return merged
}

func quantize(ts float64) int64 {
	return int64(math.Round(ts / timestampEpsilon))
}
