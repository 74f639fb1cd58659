package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vk/gridmake/internal/ctxlog"
	"golang.org/x/sync/errgroup"
)

// Handle is the caller's view of a submitted job.
type Handle struct {
	job     Job
	done    chan struct{}
	err     error
	awaited atomic.Bool
}

func newHandle(job Job) *Handle {
	return &Handle{job: job, done: make(chan struct{})}
}

// Job returns the job behind the handle.
func (h *Handle) Job() Job { return h.job }

// Done is closed once the job has finished.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the job finishes and returns its error.
func (h *Handle) Wait() error {
	h.awaited.Store(true)
	<-h.done
	return h.err
}

func (h *Handle) finish(err error) {
	h.err = err
	close(h.done)
}

type task struct {
	ctx    context.Context
	handle *Handle
}

// Pool runs job bodies on a fixed number of worker goroutines. Submitting
// never runs a job on the caller's goroutine, so a coordinator blocked on
// handles never holds a worker.
type Pool struct {
	ctx     context.Context
	runner  *Runner
	workers int
	queue   chan task
	group   errgroup.Group

	mu      sync.Mutex
	closed  bool
	handles []*Handle
}

// NewPool starts workers goroutines executing jobs with runner.
func NewPool(ctx context.Context, workers int, runner *Runner) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		ctx:     ctx,
		runner:  runner,
		workers: workers,
		queue:   make(chan task),
	}

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting worker pool.", "workers", workers)
	for i := 0; i < workers; i++ {
		workerID := i
		p.group.Go(func() error {
			p.worker(workerID)
			return nil
		})
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.workers }

// Submit queues job and returns its handle. It blocks while every worker is
// busy. After Close, the returned handle fails with ErrPoolClosed.
func (p *Pool) Submit(ctx context.Context, job Job) *Handle {
	h := newHandle(job)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		h.finish(fmt.Errorf("%w: cannot run rule %s", ErrPoolClosed, job.Rule.Name()))
		return h
	}
	p.handles = append(p.handles, h)
	// The lock is held across the send so Close cannot close the queue under us.
	p.queue <- task{ctx: ctx, handle: h}
	p.mu.Unlock()

	return h
}

func (p *Pool) worker(workerID int) {
	logger := ctxlog.FromContext(p.ctx).With("workerID", workerID)
	logger.Debug("Worker started.")

	for t := range p.queue {
		ctx := ctxlog.WithLogger(t.ctx, ctxlog.FromContext(t.ctx).With("workerID", workerID))
		logger.Debug("Worker picked up job.", "rule", t.handle.job.Rule.Name())
		t.handle.finish(p.runner.Run(ctx, t.handle.job))
	}

	logger.Debug("Worker finished.")
}

// Close stops accepting work and waits for every dispatched job, including
// ones nobody waits for anymore because their run already failed. Failures
// of such jobs are logged and returned joined.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	_ = p.group.Wait()

	logger := ctxlog.FromContext(p.ctx)
	var errs []error
	for _, h := range p.handles {
		if h.awaited.Load() || h.err == nil {
			continue
		}
		logger.Warn("Job failed after its result was no longer awaited.", "rule", h.job.Rule.Name(), "error", h.err)
		errs = append(errs, h.err)
	}
	logger.Debug("Worker pool drained.", "jobs", len(p.handles))
	return errors.Join(errs...)
}
