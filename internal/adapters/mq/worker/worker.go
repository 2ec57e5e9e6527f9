// Package worker runs independent simulation jobs on a bounded pool.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/laddersim/internal/adapters/mq/queue"
	"github.com/okian/laddersim/pkg/logger"
	"github.com/okian/laddersim/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Job is what workers read off the queue.
type Job = queue.Job

// Queue defines how workers receive jobs.
type Queue interface {
	Enqueue(ctx context.Context, j Job) bool
	Dequeue(ctx context.Context) <-chan Job
	Len(ctx context.Context) int
	Close() error
}

// Result reports a finished job.
type Result struct {
	JobID    string
	Name     string
	Worker   string
	Err      error
	Duration time.Duration
}

// Worker executes jobs until its queue is drained.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker pulls jobs from a queue and reports their results.
type InMemoryWorker struct {
	queue   Queue
	results chan<- Result
	active  *atomic.Int64
	name    string

	shutdown chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	logger logger.Logger
}

// NewInMemoryWorker creates a worker that sends results on results.
func NewInMemoryWorker(q Queue, results chan<- Result, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		results:  results,
		active:   &atomic.Int64{},
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run processes jobs until the queue closes, ctx is cancelled or Shutdown is called.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			w.queue.Len(ctx)
			res := w.process(ctx, j)
			select {
			case w.results <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Shutdown stops the worker after its current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, j Job) (res Result) {
	start := time.Now()
	res = Result{JobID: j.ID, Name: j.Name, Worker: w.name}

	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%w: %s: %v", ErrJobPanicked, j.Name, r)
		}
		res.Duration = time.Since(start)
		if res.Err != nil {
			w.logger.Error(ctx, "job failed",
				logger.String("job", j.Name),
				logger.String("job_id", j.ID),
				logger.Error(res.Err),
			)
		}
	}()

	res.Err = j.Run(ctx)
	return res
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	results chan Result
	active  atomic.Int64

	startOnce sync.Once
	waitOnce  sync.Once
	wg        sync.WaitGroup

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers. A non-positive count uses
// one worker per CPU.
func NewPool(workerCount int, q Queue, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		results: make(chan Result, workerCount),
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		w := NewInMemoryWorker(q, p.results, append(opts, WithName("worker-"+strconv.Itoa(i)))...)
		w.active = &p.active
		p.workers[i] = w
	}

	metrics.UpdateWorkerActiveCount(0)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Submit queues a job without blocking.
func (p *Pool) Submit(ctx context.Context, j Job) error {
	if closer, ok := p.queue.(interface{ IsClosed() bool }); ok && closer.IsClosed() {
		return fmt.Errorf("submit %s: %w", j.Name, ErrPoolStopped)
	}
	if !p.queue.Enqueue(ctx, j) {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("submit %s: %w", j.Name, err)
		}
		return fmt.Errorf("submit %s: %w", j.Name, ErrQueueFull)
	}
	return nil
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		for _, w := range p.workers {
			p.wg.Add(1)
			go func(w *InMemoryWorker) {
				defer p.wg.Done()
				w.Run(ctx)
			}(w)
		}
		p.logger.Debug(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
	})
}

// Results delivers one Result per finished job. It is closed by Wait.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Wait closes the queue, lets the workers drain it and closes Results.
// Results must be consumed concurrently.
func (p *Pool) Wait() {
	p.waitOnce.Do(func() {
		if err := p.queue.Close(); err != nil {
			p.logger.Error(context.Background(), "error closing queue", logger.Error(err))
		}
		p.wg.Wait()
		close(p.results)
	})
}

// Shutdown stops the workers after their current job, dropping queued jobs.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "error closing queue", logger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
