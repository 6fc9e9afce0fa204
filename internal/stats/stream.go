// Package stats implements Streaming Statistics:
// online Welford mean/variance plus Algorithm-R reservoir sampling, with two
// distinct merge rules for latency vs. throughput/count streams. This is a
// deliberate upgrade over original_source/core/src/stats.rs and
// original_source/bencher/src/stats.rs, which sort a fully materialized
// Vec<u32> of every observation; this package keeps only
// count/mean/M2/min/max plus a fixed-size reservoir, bounding memory
// regardless of run length.
package stats

import (
	"math"
	"math/rand"
	"sort"
	"sync"
)

// DefaultReservoirSize is the reservoir capacity used when a caller doesn't
// specify one: large enough for stable p99 estimates without materializing
// every observation.
const DefaultReservoirSize = 10_000

// Kind selects which merge rule Merge applies.
type Kind int

const (
	// KindLatency merges min-of-mins/max-of-maxes and averages the other
	// fields (delivery, signature, and account-confirmation latencies).
	KindLatency Kind = iota
	// KindThroughput merges sum-of-mins/sum-of-maxes and sums the other
	// fields (observed-rate, transfer-count style streams).
	KindThroughput
)

// Stream accumulates observations online in O(1) memory per call.
type Stream struct {
	kind Kind
	rng  *rand.Rand

	mu    sync.Mutex
	count uint64
	mean  float64
	m2    float64
	min   float64
	max   float64

	reservoir []float64
	capacity  int
}

// NewStream constructs an empty stream with the default reservoir size.
func NewStream(kind Kind) *Stream {
	return NewStreamWithCapacity(kind, DefaultReservoirSize)
}

// NewStreamWithCapacity allows overriding the reservoir size (used by tests
// that want to exercise Algorithm R at small scale).
func NewStreamWithCapacity(kind Kind, capacity int) *Stream {
	return &Stream{
		kind:      kind,
		rng:       rand.New(rand.NewSource(1)),
		min:       math.Inf(1),
		max:       math.Inf(-1),
		reservoir: make([]float64, 0, capacity),
		capacity:  capacity,
	}
}

// Observe folds one sample into the stream: Welford's online update for
// mean/M2, running min/max, and Algorithm-R reservoir replacement.
func (s *Stream) Observe(x float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	delta := x - s.mean
	s.mean += delta / float64(s.count)
	delta2 := x - s.mean
	s.m2 += delta * delta2

	if x < s.min {
		s.min = x
	}
	if x > s.max {
		s.max = x
	}

	if len(s.reservoir) < s.capacity {
		s.reservoir = append(s.reservoir, x)
		return
	}
	// Algorithm R: replace a uniformly chosen slot with probability R/n.
	j := s.rng.Int63n(int64(s.count))
	if j < int64(s.capacity) {
		s.reservoir[j] = x
	}
}

// ObservationsStats is the finalized record defines.
type ObservationsStats struct {
	Count      uint64  `json:"count"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	Avg        float64 `json:"avg"`
	Median     float64 `json:"median"`
	Quantile95 float64 `json:"quantile95"`
	StdDev     float64 `json:"stddev"`

	kind Kind
}

// Finalize produces an ObservationsStats snapshot. invertedQuantile selects
// the "higher is better" quantile convention used for throughput-like
// series.
func (s *Stream) Finalize(invertedQuantile bool) ObservationsStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == 0 {
		return ObservationsStats{kind: s.kind}
	}

	sorted := append([]float64(nil), s.reservoir...)
	sort.Float64s(sorted)
	r := len(sorted)

	median := percentileAt(sorted, r/2)
	var q95Index int
	if invertedQuantile {
		q95Index = r - ceilDiv(r*95, 100) - 1
	} else {
		q95Index = ceilDiv(r*95, 100) - 1
	}
	q95 := percentileAt(sorted, q95Index)

	variance := 0.0
	if s.count > 0 {
		variance = s.m2 / float64(s.count)
	}

	return ObservationsStats{
		Count:      s.count,
		Min:        s.min,
		Max:        s.max,
		Avg:        math.Round(s.mean),
		Median:     median,
		Quantile95: q95,
		StdDev:     math.Round(math.Sqrt(variance)),
		kind:       s.kind,
	}
}

func percentileAt(sorted []float64, idx int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func ceilDiv(numerator, denominator int) int {
	return (numerator + denominator - 1) / denominator
}

// Merge combines two ObservationsStats using the rule their Kind implies
//. Kinds must match; Merge is associative and
// commutative for count/min/max and commutative for the averaged fields
//.
func Merge(a, b ObservationsStats) ObservationsStats {
	if a.Count == 0 {
		return b
	}
	if b.Count == 0 {
		return a
	}
	out := ObservationsStats{Count: a.Count + b.Count, kind: a.kind}
	switch a.kind {
	case KindThroughput:
		out.Min = a.Min + b.Min
		out.Max = a.Max + b.Max
		out.Avg = a.Avg + b.Avg
		out.Median = a.Median + b.Median
		out.Quantile95 = a.Quantile95 + b.Quantile95
		out.StdDev = a.StdDev + b.StdDev
	default: // KindLatency
		out.Min = math.Min(a.Min, b.Min)
		out.Max = math.Max(a.Max, b.Max)
		out.Avg = (a.Avg + b.Avg) / 2
		out.Median = (a.Median + b.Median) / 2
		out.Quantile95 = (a.Quantile95 + b.Quantile95) / 2
		out.StdDev = (a.StdDev + b.StdDev) / 2
	}
	return out
}

// MergeAll folds Merge across a slice, returning the zero-valued
// ObservationsStats for an empty slice.
func MergeAll(kind Kind, all []ObservationsStats) ObservationsStats {
	out := ObservationsStats{kind: kind}
	for _, s := range all {
		out = Merge(out, s)
	}
	return out
}
