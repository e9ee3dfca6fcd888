package parallel_test

import (
	"sync/atomic"
	"testing"

	"github.com/airsift/airsift/core/parallel"
)

// Every index in [0, n) must be visited exactly once regardless of how the
// range is split.
func TestParallelizeCoversRangeExactlyOnce(t *testing.T) {
	const n = 10007 // prime, so chunks never divide evenly

	visits := make([]int32, n)
	parallel.Parallelize(n, func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&visits[i], 1)
		}
	})

	for i, v := range visits {
		if v != 1 {
			t.Fatalf("index %d visited %d times", i, v)
		}
	}
}

func TestParallelizeWithThresholdSequentialBelow(t *testing.T) {
	var calls int32
	parallel.ParallelizeWithThreshold(10, 100, func(start, end int) {
		atomic.AddInt32(&calls, 1)
		if start != 0 || end != 10 {
			t.Errorf("expected single [0,10) range, got [%d,%d)", start, end)
		}
	})
	if calls != 1 {
		t.Errorf("expected exactly one sequential call, got %d", calls)
	}
}

func TestParallelizeWorkersMatchesSequentialSum(t *testing.T) {
	const n = 5000
	data := make([]float64, n)
	for i := range data {
		data[i] = float64(i % 13)
	}

	var want float64
	for _, v := range data {
		want += v
	}

	var got int64 // sum scaled to int to allow atomic accumulation
	parallel.ParallelizeWorkers(n, 7, func(start, end int) {
		var local float64
		for i := start; i < end; i++ {
			local += data[i]
		}
		atomic.AddInt64(&got, int64(local))
	})

	if float64(got) != want {
		t.Errorf("parallel sum %v, sequential sum %v", got, want)
	}
}

func TestParallelizeZeroAndNegative(t *testing.T) {
	called := false
	parallel.Parallelize(0, func(int, int) { called = true })
	parallel.Parallelize(-3, func(int, int) { called = true })
	if called {
		t.Error("fn must not run for n <= 0")
	}
}
