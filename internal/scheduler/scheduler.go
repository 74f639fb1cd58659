package scheduler

import (
	"context"
	"time"

	"github.com/vk/gridmake/internal/ctxlog"
	"github.com/vk/gridmake/internal/dag"
	"github.com/vk/gridmake/internal/events"
	"github.com/vk/gridmake/internal/executor"
	"github.com/vk/gridmake/internal/rule"
	"github.com/vk/gridmake/internal/storage"
)

// Options controls forced execution.
type Options struct {
	// ForceThis runs the directly requested rule even when it is up to date.
	ForceThis bool
	// ForceProducers runs the rules that directly produce the inputs of the
	// requested rule. It applies one level down only.
	ForceProducers bool
	// ForceAll runs every rule in the subtree.
	ForceAll bool
}

// child returns the options passed down to producers.
func (o Options) child() Options {
	return Options{ForceThis: o.ForceProducers, ForceAll: o.ForceAll}
}

// Scheduler runs one top-level invocation.
type Scheduler struct {
	resolver *dag.Resolver
	store    storage.Storage
	pool     *executor.Pool
	observer events.Observer

	jobs    map[string]*executor.Handle
	planned map[string]bool
}

// New creates a scheduler. pool may be nil when only DryRun is used.
func New(resolver *dag.Resolver, pool *executor.Pool, observer events.Observer) *Scheduler {
	if observer == nil {
		observer = events.Nop{}
	}
	return &Scheduler{
		resolver: resolver,
		store:    resolver.Storage(),
		pool:     pool,
		observer: observer,
		jobs:     make(map[string]*executor.Handle),
		planned:  make(map[string]bool),
	}
}

// Run schedules r for the requested outputs after everything upstream. It
// returns the handle of the job that builds them, or nil when r has nothing
// to do. The first failing upstream handle aborts the call; jobs already
// handed to the pool keep running.
func (s *Scheduler) Run(ctx context.Context, r *rule.Rule, requested []string, opts Options) (*executor.Handle, error) {
	logger := ctxlog.FromContext(ctx).With("rule", r.Name())

	req, err := r.ExpandFor(requested)
	if err != nil {
		return nil, err
	}
	job := executor.Job{Rule: r, Request: req}
	key := job.Key()
	if h, seen := s.jobs[key]; seen {
		logger.Debug("Reusing job for identical outputs.", "output", req.Output)
		return h, nil
	}

	needs, err := s.resolver.Frontier(ctx, r, req.Input)
	if err != nil {
		return nil, err
	}

	var pending []*executor.Handle
	for _, n := range needs {
		h, err := s.Run(ctx, n.Rule, n.Files, opts.child())
		if err != nil {
			return nil, err
		}
		if h != nil {
			pending = append(pending, h)
		}
	}
	if len(pending) > 0 {
		logger.Debug("Waiting for upstream jobs.", "count", len(pending))
	}
	for _, h := range pending {
		if err := h.Wait(); err != nil {
			return nil, err
		}
	}

	var handle *executor.Handle
	if r.HasAction() {
		run := opts.ForceThis || opts.ForceAll
		if !run {
			run, err = s.NeedsRun(req)
			if err != nil {
				return nil, err
			}
		}
		if run {
			logger.Debug("Submitting job.", "output", req.Output)
			handle = s.pool.Submit(ctx, job)
		} else {
			logger.Debug("Outputs are up to date.", "output", req.Output)
		}
	}
	s.jobs[key] = handle
	return handle, nil
}

// DryRun walks the same graph as Run without executing anything. It reports
// every job that would run as a JobPlanned event and returns whether r would
// run.
func (s *Scheduler) DryRun(ctx context.Context, r *rule.Rule, requested []string, opts Options) (bool, error) {
	req, err := r.ExpandFor(requested)
	if err != nil {
		return false, err
	}
	job := executor.Job{Rule: r, Request: req}
	key := job.Key()
	if ran, seen := s.planned[key]; seen {
		return ran, nil
	}

	needs, err := s.resolver.Frontier(ctx, r, req.Input)
	if err != nil {
		return false, err
	}

	upstream := false
	for _, n := range needs {
		ran, err := s.DryRun(ctx, n.Rule, n.Files, opts.child())
		if err != nil {
			return false, err
		}
		upstream = upstream || ran
	}

	run := false
	if r.HasAction() {
		run = opts.ForceThis || opts.ForceAll || upstream
		if !run {
			run, err = s.NeedsRun(req)
			if err != nil {
				return false, err
			}
		}
		if run {
			s.observer.Notify(ctx, job.Event(events.JobPlanned))
		}
	}
	s.planned[key] = run
	return run, nil
}

// NeedsRun applies the staleness policy to an expanded request.
func (s *Scheduler) NeedsRun(req rule.Request) (bool, error) {
	if len(req.Output) == 0 {
		return false, nil
	}

	var oldest time.Time
	for i, out := range req.Output {
		if !s.store.Exists(out) {
			return true, nil
		}
		mtime, err := s.store.ModTime(out)
		if err != nil {
			return false, err
		}
		if i == 0 || mtime.Before(oldest) {
			oldest = mtime
		}
	}

	for _, in := range req.Input {
		if !s.store.Exists(in) {
			continue
		}
		mtime, err := s.store.ModTime(in)
		if err != nil {
			return false, err
		}
		if !mtime.Before(oldest) {
			return true, nil
		}
	}
	return false, nil
}
