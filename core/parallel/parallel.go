// Package parallel provides chunked data-parallel execution helpers used
// inside estimators for row-wise work (design-matrix assembly, per-tree
// fitting, batch prediction).
//
// Work is split into contiguous [start, end) index ranges, one per worker,
// so callers can iterate cache-friendly slices without coordinating access:
// ranges never overlap and together cover [0, n).
package parallel

import (
	"runtime"
	"sync"
)

// Parallelize runs fn over [0, n) split across GOMAXPROCS workers.
// fn receives a half-open [start, end) range and must not panic.
// Blocks until all workers finish. n <= 0 is a no-op.
func Parallelize(n int, fn func(start, end int)) {
	ParallelizeWorkers(n, runtime.GOMAXPROCS(0), fn)
}

// ParallelizeWithThreshold runs fn sequentially when n is below threshold,
// otherwise like Parallelize. Small inputs stay on the calling goroutine
// where spawn overhead would dominate.
func ParallelizeWithThreshold(n, threshold int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if n < threshold {
		fn(0, n)
		return
	}
	Parallelize(n, fn)
}

// ParallelizeWorkers runs fn over [0, n) split across at most workers
// goroutines. workers <= 0 means GOMAXPROCS.
func ParallelizeWorkers(n, workers int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > n {
		workers = n
	}
	if workers == 1 {
		fn(0, n)
		return
	}

	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}
