// Package workpool bounds the per-cell stencil loops (differential
// operators, Jacobi iteration) to a configured thread count. It replaces
// the teacher's GOMAXPROCS-sized sync.WaitGroup pool
// (pkg/fluid/parallel.go's parallelRange) with a caller-specified
// concurrency limit, using golang.org/x/sync/semaphore to bound the
// number of in-flight goroutines to Grid.Params.NThreads.
package workpool

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Range runs fn(i) for every i in [lo, hi] (inclusive), using up to
// nThreads goroutines at once. Each call to fn owns a disjoint i and
// must not write to any cell another call could read — the Jacobi
// contract of spec 4.4, which is why this carries no per-iteration
// synchronization beyond the final join.
func Range(nThreads, lo, hi int, fn func(i int)) {
	if nThreads <= 0 {
		nThreads = 1
	}
	n := hi - lo + 1
	if n <= 0 {
		return
	}
	sem := semaphore.NewWeighted(int64(nThreads))
	ctx := context.Background()
	done := make(chan struct{}, n)
	for i := lo; i <= hi; i++ {
		i := i
		_ = sem.Acquire(ctx, 1)
		go func() {
			defer sem.Release(1)
			fn(i)
			done <- struct{}{}
		}()
	}
	for c := 0; c < n; c++ {
		<-done
	}
}
