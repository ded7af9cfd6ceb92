package core

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"minisciath/internal/suite"
)

// TestRunner runs a single test. *Runner is the production implementation.
type TestRunner interface {
	Run(ctx context.Context, t suite.Test) (Result, error)
}

// Scheduler runs a list of tests with bounded concurrency.
//
// Results are delivered to the emit callback strictly in input order: a
// result that finishes early is held back until every test before it has
// been delivered. Console output is therefore the same for any Jobs value.
type Scheduler struct {
	Runner TestRunner

	// Jobs is the maximum number of tests running at once. Values below 1 mean 1.
	Jobs int

	Logger *zap.Logger
}

// NewScheduler creates a Scheduler running up to jobs tests at once.
func NewScheduler(runner TestRunner, jobs int) *Scheduler {
	return &Scheduler{Runner: runner, Jobs: jobs, Logger: zap.NewNop()}
}

// Run executes tests and returns their results in input order.
//
// emit may be nil. It is never called concurrently. The first error returned
// by the runner cancels the remaining tests and is returned.
func (s *Scheduler) Run(ctx context.Context, tests []suite.Test, emit func(Result)) ([]Result, error) {
	if s.Runner == nil {
		return nil, fmt.Errorf("nil runner")
	}
	jobs := s.Jobs
	if jobs < 1 {
		jobs = 1
	}
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log.Debug("scheduling tests", zap.Int("tests", len(tests)), zap.Int("jobs", jobs))

	results := make([]Result, len(tests))
	ordered := newOrderedEmitter(len(tests), func(i int, r Result) {
		results[i] = r
		if emit != nil {
			emit(r)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, t := range tests {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("test %s: panic: %v", t.Name, p)
				}
			}()
			res, err := s.Runner.Run(gctx, t)
			if err != nil {
				return err
			}
			ordered.deliver(i, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// orderedEmitter releases indexed values in index order.
type orderedEmitter struct {
	mu      sync.Mutex
	next    int
	pending map[int]Result
	fn      func(int, Result)
}

func newOrderedEmitter(size int, fn func(int, Result)) *orderedEmitter {
	return &orderedEmitter{pending: make(map[int]Result, size), fn: fn}
}

func (o *orderedEmitter) deliver(i int, r Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending[i] = r
	for {
		next, ok := o.pending[o.next]
		if !ok {
			return
		}
		delete(o.pending, o.next)
		o.fn(o.next, next)
		o.next++
	}
}
