// Package workqueue runs jobs on a fixed set of workers draining a single
// FIFO queue.
package workqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AlexGustafsson/metube/internal/metrics"
	"golang.org/x/sync/errgroup"
)

var (
	ErrStarted = errors.New("pool already started")
	ErrStopped = errors.New("pool stopped")
)

// Job is a unit of work run by a single worker.
type Job interface {
	// Kind names the job for logs and metrics, such as "search".
	Kind() string
	Run(ctx context.Context)
}

type jobFunc struct {
	kind string
	run  func(ctx context.Context)
}

func (j *jobFunc) Kind() string {
	return j.kind
}

func (j *jobFunc) Run(ctx context.Context) {
	j.run(ctx)
}

// NewJob wraps a function as a job.
func NewJob(kind string, run func(ctx context.Context)) Job {
	return &jobFunc{kind: kind, run: run}
}

// Pool is a fixed set of workers draining a single, unbounded FIFO queue.
// Jobs are dequeued in the order they were enqueued, but may complete in any
// order.
type Pool struct {
	workers int

	mutex   sync.Mutex
	queue   []Job
	started bool
	stopped bool

	// wake holds at most one pending signal. A worker taking a job while more
	// jobs are queued passes the signal on.
	wake chan struct{}
	done chan struct{}
	wg   errgroup.Group

	metrics *metrics.Metrics
}

func New(workers int, m *metrics.Metrics) *Pool {
	if workers < 1 {
		workers = 1
	}
	if m == nil {
		m = metrics.New()
	}

	return &Pool{
		workers: workers,
		queue:   make([]Job, 0),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		metrics: m,
	}
}

// Start starts the workers. Jobs are run with ctx, so cancelling ctx is the
// way to abort jobs that are already running.
func (p *Pool) Start(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.stopped {
		return ErrStopped
	}
	if p.started {
		return ErrStarted
	}
	p.started = true

	for worker := range p.workers {
		p.wg.Go(func() error {
			p.work(ctx, worker)
			return nil
		})
	}

	// Jobs may have been enqueued before the pool was started
	if len(p.queue) > 0 {
		p.signal()
	}

	slog.Debug("Started worker pool", slog.Int("workers", p.workers))
	return nil
}

// Enqueue appends job to the queue. It returns false if the pool has been
// stopped, in which case the job is never run.
func (p *Pool) Enqueue(job Job) bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.stopped {
		return false
	}

	p.queue = append(p.queue, job)
	p.metrics.Jobs.WithLabelValues(job.Kind()).Inc()
	p.metrics.QueuedJobs.Set(float64(len(p.queue)))
	p.signal()
	return true
}

// Len returns the number of jobs waiting for a worker.
func (p *Pool) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.queue)
}

// Stop drops all queued jobs and waits for running jobs to finish. It is
// safe to call Stop more than once.
func (p *Pool) Stop() {
	p.mutex.Lock()
	if p.stopped {
		p.mutex.Unlock()
		p.wg.Wait()
		return
	}
	p.stopped = true
	dropped := len(p.queue)
	p.queue = nil
	p.metrics.QueuedJobs.Set(0)
	close(p.done)
	p.mutex.Unlock()

	if dropped > 0 {
		slog.Debug("Dropped queued jobs", slog.Int("jobs", dropped))
	}

	p.wg.Wait()
}

// signal wakes a waiting worker. Must be called with the mutex held.
func (p *Pool) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Pool) next() (Job, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.stopped || len(p.queue) == 0 {
		return nil, false
	}

	job := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	p.metrics.QueuedJobs.Set(float64(len(p.queue)))

	if len(p.queue) > 0 {
		p.signal()
	}

	return job, true
}

func (p *Pool) work(ctx context.Context, worker int) {
	for {
		select {
		case <-p.done:
			return
		case <-p.wake:
		}

		job, ok := p.next()
		if !ok {
			continue
		}

		p.run(ctx, worker, job)
	}
}

func (p *Pool) run(ctx context.Context, worker int, job Job) {
	p.metrics.ActiveJobs.Inc()
	defer p.metrics.ActiveJobs.Dec()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Job panicked", slog.String("kind", job.Kind()), slog.Int("worker", worker), slog.Any("error", fmt.Errorf("%v", r)))
		}
	}()

	job.Run(ctx)
}
