package compute

import "golang.org/x/sync/errgroup"

// executor fans the work-items of one dispatch out over a bounded set of
// goroutines and returns when all of them finished.
type executor struct {
	workers  int
	minChunk int
}

func (e *executor) run(n int, fn func(gid int)) {
	if n <= 0 {
		return
	}
	if n <= e.minChunk || e.workers <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	workers := e.workers
	if n/e.minChunk < workers {
		workers = n / e.minChunk
	}
	if workers < 1 {
		workers = 1
	}
	chunkSize := (n + workers - 1) / workers

	var g errgroup.Group
	g.SetLimit(workers)
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		g.Go(func() error {
			for i := start; i < end; i++ {
				fn(i)
			}
			return nil
		})
	}
	_ = g.Wait()
}
