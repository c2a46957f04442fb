package stats

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Job is one scan of a batch or scheduler submission.
type Job struct {
	Raster  Raster
	Region  Region
	Options Options
}

// ComputeAll runs every job with at most limit scans in flight and returns
// the results in job order. The first error cancels the remaining scans.
func ComputeAll(ctx context.Context, jobs []Job, limit int) ([]*Result, error) {
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	results := make([]*Result, len(jobs))
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			res, err := Compute(ctx, job.Raster, job.Region, job.Options)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Outcome is a finished scheduled scan.
type Outcome struct {
	Key        string
	Generation uint64
	Result     *Result
	Err        error
}

// Scheduler runs scans in the background keyed by owner. A newer submission
// for a key cancels the running one, and only the outcome of the latest
// submission is delivered.
type Scheduler struct {
	pool *WorkerPool

	// life guards pool submission against Close.
	life sync.RWMutex

	mu      sync.Mutex
	gen     map[string]uint64
	cancels map[string]context.CancelFunc
	closed  bool
}

// NewScheduler starts a scheduler on pool.
func NewScheduler(pool *WorkerPool) *Scheduler {
	pool.Start()
	return &Scheduler{
		pool:    pool,
		gen:     make(map[string]uint64),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Submit schedules a scan for key and returns its generation. done is called
// from a worker goroutine, and only if no newer submission for key was made.
// The caller must not mutate the region after submitting; pass a clone.
func (s *Scheduler) Submit(ctx context.Context, key string, job Job, done func(Outcome)) uint64 {
	s.life.RLock()
	defer s.life.RUnlock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	if cancel, ok := s.cancels[key]; ok {
		cancel()
	}
	s.gen[key]++
	gen := s.gen[key]
	jobCtx, cancel := context.WithCancel(ctx)
	s.cancels[key] = cancel
	s.mu.Unlock()

	s.pool.Submit(func() {
		defer cancel()
		res, err := Compute(jobCtx, job.Raster, job.Region, job.Options)
		if !s.finish(key, gen) {
			return
		}
		done(Outcome{Key: key, Generation: gen, Result: res, Err: err})
	})
	return gen
}

// finish reports whether gen is still the latest submission for key and, if
// so, retires it.
func (s *Scheduler) finish(key string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen[key] != gen {
		return false
	}
	delete(s.cancels, key)
	return true
}

// Cancel aborts the pending scan for key. Its outcome is dropped.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.cancels[key]; ok {
		cancel()
		delete(s.cancels, key)
	}
	s.gen[key]++
}

// Wait blocks until every submitted scan has finished.
func (s *Scheduler) Wait() {
	s.pool.Wait()
}

// Close cancels pending scans and stops the pool.
func (s *Scheduler) Close() {
	s.life.Lock()
	defer s.life.Unlock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for key, cancel := range s.cancels {
		cancel()
		delete(s.cancels, key)
	}
	s.mu.Unlock()
	s.pool.Close()
}
