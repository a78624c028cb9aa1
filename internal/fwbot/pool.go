package fwbot

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool runs submitted tasks with at most size of them in flight.
// Submit never blocks the caller; tasks beyond the bound wait their turn.
type Pool struct {
	name string
	size int
	sem  *semaphore.Weighted
	wg   sync.WaitGroup
}

// NewPool creates a pool. A non-positive size is treated as 1.
func NewPool(name string, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{name: name, size: size, sem: semaphore.NewWeighted(int64(size))}
}

// Name returns the pool name used in log lines.
func (p *Pool) Name() string { return p.name }

// Size returns the concurrency bound.
func (p *Pool) Size() int { return p.size }

// Submit schedules task. If ctx is canceled before a slot frees up the
// task is dropped.
func (p *Pool) Submit(ctx context.Context, task func(ctx context.Context)) {
	p.SubmitOr(ctx, task, nil)
}

// SubmitOr is Submit with a callback for the drop case. dropped runs on
// the pool goroutine, before Wait returns, with the cancellation error.
func (p *Pool) SubmitOr(ctx context.Context, task func(ctx context.Context), dropped func(err error)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.sem.Acquire(ctx, 1); err != nil {
			if dropped != nil {
				dropped(err)
			}
			return
		}
		defer p.sem.Release(1)
		task(ctx)
	}()
}

// Wait blocks until every submitted task has finished or been dropped.
func (p *Pool) Wait() {
	p.wg.Wait()
}
