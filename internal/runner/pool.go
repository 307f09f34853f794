package runner

import (
	"sync"
	"time"
)

type Job func() error

// RunPool executes jobs with at most maxWorkers concurrently and returns all
// errors. A failing job never stops its siblings. When running in parallel,
// consecutive submissions are staggered by the given delay so the tracking
// backend is not hit with a burst of session creations; the delay is a
// rate-limit heuristic, not a correctness mechanism.
func RunPool(maxWorkers int, stagger time.Duration, jobs []Job) []error {
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	sem := make(chan struct{}, maxWorkers)

	for i, job := range jobs {
		if maxWorkers > 1 && stagger > 0 && i > 0 {
			time.Sleep(stagger)
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(j Job) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := j(); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(job)
	}
	wg.Wait()
	return errs
}
