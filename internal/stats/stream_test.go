package stats

import (
	"math"
	"testing"
)

func TestStreamWelfordMeanAndVariance(t *testing.T) {
	s := NewStreamWithCapacity(KindLatency, 100)
	samples := []float64{10, 20, 30, 40, 50}
	for _, v := range samples {
		s.Observe(v)
	}
	got := s.Finalize(false)
	if got.Count != uint64(len(samples)) {
		t.Fatalf("count = %d, want %d", got.Count, len(samples))
	}
	if got.Avg != 30 {
		t.Fatalf("avg = %v, want 30", got.Avg)
	}
	if got.Min != 10 || got.Max != 50 {
		t.Fatalf("min/max = %v/%v, want 10/50", got.Min, got.Max)
	}
	// population variance of {10,20,30,40,50} is 200, stddev ~14.14 -> rounds to 14.
	if got.StdDev != 14 {
		t.Fatalf("stddev = %v, want 14", got.StdDev)
	}
}

func TestStreamEmptyFinalize(t *testing.T) {
	s := NewStream(KindLatency)
	got := s.Finalize(false)
	if got.Count != 0 || got.Min != 0 || got.Max != 0 {
		t.Fatalf("empty stream finalize = %+v, want all zero", got)
	}
}

func TestReservoirBoundedMemory(t *testing.T) {
	const capacity = 50
	s := NewStreamWithCapacity(KindLatency, capacity)
	for i := 0; i < 100_000; i++ {
		s.Observe(float64(i))
	}
	if len(s.reservoir) != capacity {
		t.Fatalf("reservoir grew to %d, want bounded at %d", len(s.reservoir), capacity)
	}
	if s.count != 100_000 {
		t.Fatalf("count = %d, want 100000", s.count)
	}
}

func TestReservoirQuantileConvergesOnUniform(t *testing.T) {
	// Uniform(0, 1000) via a deterministic LCG so the test is hermetic.
	const n = 200_000
	s := NewStream(KindLatency)
	state := uint64(12345)
	for i := 0; i < n; i++ {
		state = state*6364136223846793005 + 1442695040888963407
		x := float64(state>>33) / float64(1<<31) * 1000
		s.Observe(x)
	}
	got := s.Finalize(false)
	if math.Abs(got.Median-500) > 30 {
		t.Fatalf("median = %v, want close to 500", got.Median)
	}
	if math.Abs(got.Quantile95-950) > 30 {
		t.Fatalf("quantile95 = %v, want close to 950", got.Quantile95)
	}
}

func TestFinalizeInvertedQuantileForThroughput(t *testing.T) {
	s := NewStreamWithCapacity(KindThroughput, 10)
	for i := 1; i <= 10; i++ {
		s.Observe(float64(i * 10))
	}
	normal := s.Finalize(false)
	inverted := s.Finalize(true)
	if normal.Quantile95 == inverted.Quantile95 {
		t.Fatalf("expected inverted quantile to differ from normal one for a monotonic series")
	}
	// Normal q95 should sit near the top of the distribution, inverted near the bottom.
	if normal.Quantile95 < inverted.Quantile95 {
		t.Fatalf("normal q95 (%v) should be >= inverted q95 (%v) for an ascending series", normal.Quantile95, inverted.Quantile95)
	}
}

func TestMergeLatencyRule(t *testing.T) {
	a := ObservationsStats{Count: 10, Min: 5, Max: 100, Avg: 20, Median: 18, Quantile95: 80, StdDev: 4, kind: KindLatency}
	b := ObservationsStats{Count: 10, Min: 1, Max: 120, Avg: 30, Median: 22, Quantile95: 90, StdDev: 6, kind: KindLatency}
	merged := Merge(a, b)

	if merged.Count != 20 {
		t.Fatalf("count = %d, want 20", merged.Count)
	}
	if merged.Min != 1 {
		t.Fatalf("min = %v, want min-of-mins 1", merged.Min)
	}
	if merged.Max != 120 {
		t.Fatalf("max = %v, want max-of-maxes 120", merged.Max)
	}
	if merged.Avg != 25 {
		t.Fatalf("avg = %v, want average of averages 25", merged.Avg)
	}
}

func TestMergeThroughputRule(t *testing.T) {
	a := ObservationsStats{Count: 5, Min: 90, Max: 110, Avg: 100, kind: KindThroughput}
	b := ObservationsStats{Count: 5, Min: 95, Max: 105, Avg: 100, kind: KindThroughput}
	merged := Merge(a, b)

	if merged.Count != 10 {
		t.Fatalf("count = %d, want 10", merged.Count)
	}
	if merged.Min != 185 {
		t.Fatalf("min = %v, want sum-of-mins 185", merged.Min)
	}
	if merged.Max != 215 {
		t.Fatalf("max = %v, want sum-of-maxes 215", merged.Max)
	}
	if merged.Avg != 200 {
		t.Fatalf("avg = %v, want summed average 200", merged.Avg)
	}
}

func TestMergeIsAssociativeAndCommutativeForCountMinMax(t *testing.T) {
	a := ObservationsStats{Count: 3, Min: 1, Max: 9, kind: KindLatency}
	b := ObservationsStats{Count: 5, Min: 2, Max: 20, kind: KindLatency}
	c := ObservationsStats{Count: 7, Min: 0, Max: 15, kind: KindLatency}

	left := Merge(Merge(a, b), c)
	right := Merge(a, Merge(b, c))
	if left.Count != right.Count || left.Min != right.Min || left.Max != right.Max {
		t.Fatalf("merge not associative for count/min/max: left=%+v right=%+v", left, right)
	}

	swapped := Merge(b, a)
	direct := Merge(a, b)
	if swapped.Count != direct.Count || swapped.Min != direct.Min || swapped.Max != direct.Max {
		t.Fatalf("merge not commutative for count/min/max: swapped=%+v direct=%+v", swapped, direct)
	}
}

func TestMergeAllEmpty(t *testing.T) {
	got := MergeAll(KindLatency, nil)
	if got.Count != 0 {
		t.Fatalf("MergeAll(nil) count = %d, want 0", got.Count)
	}
}

func TestMergeWithEmptySideReturnsOther(t *testing.T) {
	a := ObservationsStats{Count: 4, Min: 1, Max: 5, Avg: 3, kind: KindLatency}
	empty := ObservationsStats{kind: KindLatency}
	if got := Merge(empty, a); got.Count != a.Count {
		t.Fatalf("Merge(empty, a) = %+v, want a", got)
	}
	if got := Merge(a, empty); got.Count != a.Count {
		t.Fatalf("Merge(a, empty) = %+v, want a", got)
	}
}
