package executor

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/Ananthavalli1991/ananthi-tdsproj1/internal/metrics"
)

// ErrPoolClosed is returned by Do after Drain.
var ErrPoolClosed = errors.New("worker pool closed")

// Pool bounds the number of tasks running at once.
type Pool struct {
	sem     *semaphore.Weighted
	size    int64
	closed  atomic.Bool
	metrics *metrics.Metrics
}

func NewPool(size int, m *metrics.Metrics) *Pool {
	if size < 1 {
		size = 1
	}
	if m == nil {
		m = metrics.New()
	}
	return &Pool{
		sem:     semaphore.NewWeighted(int64(size)),
		size:    int64(size),
		metrics: m,
	}
}

// Size is the number of worker slots.
func (p *Pool) Size() int { return int(p.size) }

// Do waits for a free slot and runs fn in the calling goroutine. Waiting
// honors ctx; fn receives a context that is not cancelled with ctx.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context)) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	if p.closed.Load() {
		return ErrPoolClosed
	}

	p.metrics.InFlight.Add(1)
	defer p.metrics.InFlight.Add(-1)
	fn(context.WithoutCancel(ctx))
	return nil
}

// Drain stops admitting work and waits for running tasks to finish.
func (p *Pool) Drain(ctx context.Context) error {
	p.closed.Store(true)
	if err := p.sem.Acquire(ctx, p.size); err != nil {
		return err
	}
	p.sem.Release(p.size)
	return nil
}
