// Package scheduler fans tasks out to a bounded worker pool. Tasks
// whose tool must run alone (video encoders that saturate the machine
// by themselves) go through a dedicated serial lane; everything else
// shares an ants pool. With one worker the pool is skipped entirely
// and tasks run strictly in submission order.
package scheduler

import (
	"context"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jaco00/media-transcode/core/task"
)

// RunFunc executes one task and reports its outcome. The executor's
// Run method satisfies it.
type RunFunc func(ctx context.Context, t task.Task) task.Result

// Options configures a Scheduler.
type Options struct {
	// Parallel is the worker count. Values below 2 select the
	// sequential path. Callers resolve "auto" before getting here.
	Parallel int

	// OnResult observes each result as it completes. It is always
	// called from a single goroutine, in completion order.
	OnResult func(task.Result)
}

// Scheduler distributes tasks across workers and gathers results.
type Scheduler struct {
	opts   Options
	run    RunFunc
	logger *zap.Logger
}

func New(opts Options, run RunFunc, logger *zap.Logger) *Scheduler {
	return &Scheduler{opts: opts, run: run, logger: logger}
}

// Run processes all tasks and returns the results of those that ran.
// On cancellation, running tasks finish (or are killed by their own
// context handling) and unstarted tasks are dropped without a result.
func (s *Scheduler) Run(ctx context.Context, tasks []task.Task) []task.Result {
	if len(tasks) == 0 {
		return nil
	}
	if s.opts.Parallel <= 1 {
		return s.runSequential(ctx, tasks)
	}

	pool, err := ants.NewPool(s.opts.Parallel, ants.WithPreAlloc(true))
	if err != nil {
		s.logger.Warn("worker pool unavailable, falling back to sequential run", zap.Error(err))
		return s.runSequential(ctx, tasks)
	}
	defer pool.Release()

	var pooled, serial []task.Task
	for _, t := range tasks {
		if t.AllowParallel {
			pooled = append(pooled, t)
		} else {
			serial = append(serial, t)
		}
	}

	// Buffered for the full batch so neither lane ever blocks on the
	// collector.
	results := make(chan task.Result, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for _, t := range serial {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			results <- s.run(gctx, t)
		}
		return nil
	})
	g.Go(func() error {
		var wg sync.WaitGroup
		for _, t := range pooled {
			if gctx.Err() != nil {
				break
			}
			t := t
			wg.Add(1)
			if err := pool.Submit(func() {
				defer wg.Done()
				if gctx.Err() != nil {
					return
				}
				results <- s.run(gctx, t)
			}); err != nil {
				// Pool rejected the closure; run inline rather than
				// losing the task.
				wg.Done()
				s.logger.Warn("pool submission failed, running task inline",
					zap.String("file", t.RelPath), zap.Error(err))
				results <- s.run(gctx, t)
			}
		}
		wg.Wait()
		return gctx.Err()
	})

	go func() {
		if err := g.Wait(); err != nil {
			s.logger.Info("run interrupted, pending tasks dropped", zap.Error(err))
		}
		close(results)
	}()

	collected := make([]task.Result, 0, len(tasks))
	for r := range results {
		collected = append(collected, r)
		if s.opts.OnResult != nil {
			s.opts.OnResult(r)
		}
	}
	return collected
}

func (s *Scheduler) runSequential(ctx context.Context, tasks []task.Task) []task.Result {
	results := make([]task.Result, 0, len(tasks))
	for _, t := range tasks {
		if ctx.Err() != nil {
			s.logger.Info("run interrupted, pending tasks dropped", zap.Error(ctx.Err()))
			break
		}
		r := s.run(ctx, t)
		results = append(results, r)
		if s.opts.OnResult != nil {
			s.opts.OnResult(r)
		}
	}
	return results
}
