package stats

import (
	"math"
	"sync"
)

// Histogram is the bounded-range, log-linear bucketed histogram spec §3
// calls for, supplemented with the original g3bench's bucket-boundary
// formula (SUPPLEMENTED FEATURES #8): within each power-of-two decade
// [2^d, 2^(d+1)) the range is divided into BucketsPerDecade linear
// sub-buckets, giving fine resolution at small values and coarse
// resolution at large ones without unbounded bucket counts.
type Histogram struct {
	mu sync.Mutex

	min, max         float64
	bucketsPerDecade int
	edges            []float64
	counts           []uint64
	underflow        uint64
	overflow         uint64

	lastEmit []uint64
}

// NewHistogram builds a log-linear histogram covering [min, max] with
// bucketsPerDecade sub-buckets per power-of-two decade.
func NewHistogram(min, max float64, bucketsPerDecade int) *Histogram {
	if min <= 0 {
		min = 1
	}
	if max < min {
		max = min * 2
	}
	if bucketsPerDecade < 1 {
		bucketsPerDecade = 1
	}

	var edges []float64
	decadeStart := min
	for decadeStart < max {
		decadeEnd := decadeStart * 2
		for i := 0; i < bucketsPerDecade; i++ {
			frac := float64(i) / float64(bucketsPerDecade)
			edges = append(edges, decadeStart+(decadeEnd-decadeStart)*frac)
		}
		decadeStart = decadeEnd
	}
	edges = append(edges, decadeStart)

	h := &Histogram{
		min:              min,
		max:              decadeStart,
		bucketsPerDecade: bucketsPerDecade,
		edges:            edges,
		counts:           make([]uint64, len(edges)),
	}
	h.lastEmit = make([]uint64, len(h.counts)+2)
	return h
}

// Record places v into its log-linear bucket, or the under/overflow
// counters if v falls outside [min, max].
func (h *Histogram) Record(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if v < h.min {
		h.underflow++
		return
	}
	if v >= h.max {
		h.overflow++
		return
	}

	idx := 0
	for idx < len(h.edges)-1 && h.edges[idx+1] <= v {
		idx++
	}
	h.counts[idx]++
}

// Snapshot returns the current cumulative counts, shaped
// [underflow, bucket0, bucket1, ..., overflow].
func (h *Histogram) Snapshot() []uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]uint64, 0, len(h.counts)+2)
	out = append(out, h.underflow)
	out = append(out, h.counts...)
	out = append(out, h.overflow)
	return out
}

// SnapshotDiff returns the delta since the previous call to
// SnapshotDiff, per spec §4.12's "snapshots counters (delta-since-last)"
// emit-tick contract, and updates the stored baseline.
func (h *Histogram) SnapshotDiff() []uint64 {
	cur := h.Snapshot()

	h.mu.Lock()
	defer h.mu.Unlock()

	diff := make([]uint64, len(cur))
	for i := range cur {
		if i < len(h.lastEmit) && cur[i] >= h.lastEmit[i] {
			diff[i] = cur[i] - h.lastEmit[i]
		} else {
			diff[i] = cur[i]
		}
	}
	h.lastEmit = cur
	return diff
}

// Quantile estimates the value at quantile q (0..1) as the lower edge of
// the bucket holding it (min for underflow, max for overflow), with no
// interpolation inside a bucket; sufficient for dashboards since the
// external sink, not this struct, owns precise percentile math.
func (h *Histogram) Quantile(q float64) float64 {
	snap := h.Snapshot()
	var total uint64
	for _, c := range snap {
		total += c
	}
	if total == 0 {
		return 0
	}

	target := uint64(math.Ceil(q * float64(total)))
	var cum uint64
	for i, c := range snap {
		cum += c
		if cum >= target {
			if i == 0 {
				return h.min
			}
			if i == len(snap)-1 {
				return h.max
			}
			return h.edges[i-1]
		}
	}
	return h.max
}
