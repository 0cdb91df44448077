// Package jobs provides the bounded worker pool that runs provisioning and
// deprovisioning work outside the request/response cycle.
package jobs

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Job is a unit of background work. It receives a fresh context detached
// from the submitting request, so request cancellation never aborts an
// in-flight provisioning step.
type Job func(ctx context.Context)

// ErrQueueFull is returned by Submit when the pending queue is at capacity.
// Queueing is the backpressure mechanism: callers surface the error rather
// than spawning unbounded work.
var ErrQueueFull = errors.New("jobs: queue is full")

// ErrStopped is returned by Submit after Stop has begun.
var ErrStopped = errors.New("jobs: pool is stopped")

type task struct {
	name string
	run  Job
}

// Pool is a fixed-size worker pool with a bounded pending queue.
type Pool struct {
	mu      sync.RWMutex
	tasks   chan task
	wg      sync.WaitGroup
	stopped bool
	logger  *zap.Logger
}

// NewPool returns a started pool with the given worker count and queue
// capacity. Both must be positive (validated by config at startup).
func NewPool(workers, queueSize int, logger *zap.Logger) *Pool {
	p := &Pool{
		tasks:  make(chan task, queueSize),
		logger: logger,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for t := range p.tasks {
		p.logger.Debug("job started", zap.Int("worker", id), zap.String("job", t.name))
		p.runTask(id, t)
		p.logger.Debug("job finished", zap.Int("worker", id), zap.String("job", t.name))
	}
}

// runTask runs one job and contains any panic, so a faulty job never takes
// down the process or its worker.
func (p *Pool) runTask(id int, t task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic in job",
				zap.Int("worker", id),
				zap.String("job", t.name),
				zap.Any("panic", r))
		}
	}()
	t.run(context.Background())
}

// Submit enqueues a job. Returns ErrQueueFull when the queue is at capacity
// and ErrStopped after Stop. The lock orders Submit against Stop's channel
// close, so a send can never hit a closed channel.
func (p *Pool) Submit(name string, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.tasks <- task{name: name, run: job}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop rejects new submissions, drains queued jobs, and waits for in-flight
// work to finish or ctx to expire. Safe to call more than once.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		p.logger.Warn("shutdown timeout reached before workers drained")
		return ctx.Err()
	}
}
