package engine

import (
	"context"
	"errors"

	"github.com/vk/gridmake/internal/ctxlog"
	"github.com/vk/gridmake/internal/dag"
	"github.com/vk/gridmake/internal/events"
	"github.com/vk/gridmake/internal/executor"
	"github.com/vk/gridmake/internal/rule"
	"github.com/vk/gridmake/internal/scheduler"
	"github.com/vk/gridmake/internal/storage"
	"github.com/vk/gridmake/internal/workflow"
)

// targetsRule names the synthetic rule that requests concrete files.
const targetsRule = "targets"

// Options selects the run mode.
type Options struct {
	DryRun    bool
	ForceThis bool
	ForceAll  bool
}

// Engine runs targets of a frozen workflow.
type Engine struct {
	wf       *workflow.Workflow
	resolver *dag.Resolver
	pool     *executor.Pool
	observer events.Observer
}

// New creates an engine. pool may be nil if the engine is only used for dry
// runs.
func New(wf *workflow.Workflow, store storage.Storage, pool *executor.Pool, observer events.Observer) *Engine {
	if observer == nil {
		observer = events.Nop{}
	}
	return &Engine{
		wf:       wf,
		resolver: dag.NewResolver(wf, store),
		pool:     pool,
		observer: observer,
	}
}

// RunDefault runs the first registered rule. An empty workflow has nothing to
// do.
func (e *Engine) RunDefault(ctx context.Context, opts Options) error {
	r, ok := e.wf.First()
	if !ok {
		ctxlog.FromContext(ctx).Warn("No rules defined, nothing to do.")
		return nil
	}
	return e.runRule(ctx, r, opts)
}

// RunNamed runs the rule registered as name.
func (e *Engine) RunNamed(ctx context.Context, name string, opts Options) error {
	r, err := e.wf.Lookup(name)
	if err != nil {
		return err
	}
	return e.runRule(ctx, r, opts)
}

// RunTargets builds the given files through an unregistered rule that needs
// exactly them.
func (e *Engine) RunTargets(ctx context.Context, files []string, opts Options) error {
	r := rule.New(targetsRule)
	if err := r.AddInput(files); err != nil {
		return err
	}
	// The aggregator has no action of its own, so forcing it means forcing
	// the producers of the requested files.
	return e.run(ctx, r, opts.DryRun, scheduler.Options{
		ForceProducers: opts.ForceThis,
		ForceAll:       opts.ForceAll,
	})
}

func (e *Engine) runRule(ctx context.Context, r *rule.Rule, opts Options) error {
	if r.HasWildcards() {
		return &WildcardedTargetError{Rule: r.Name(), Names: r.WildcardNames()}
	}
	return e.run(ctx, r, opts.DryRun, scheduler.Options{
		ForceThis: opts.ForceThis,
		ForceAll:  opts.ForceAll,
	})
}

func (e *Engine) run(ctx context.Context, r *rule.Rule, dryRun bool, sopts scheduler.Options) error {
	logger := ctxlog.FromContext(ctx).With("target", r.Name())
	ctx = ctxlog.WithLogger(ctx, logger)

	n, err := dag.NewValidator(e.resolver).Check(ctx, r, nil)
	if err != nil {
		return err
	}
	logger.Info("Dependency graph validated.", "invocations", n)

	sched := scheduler.New(e.resolver, e.pool, e.observer)

	if dryRun {
		runs, err := sched.DryRun(ctx, r, nil, sopts)
		if err != nil {
			return err
		}
		logger.Info("Dry run complete.", "target_runs", runs)
		return nil
	}

	if e.pool == nil {
		return errors.New("engine has no worker pool for a real run")
	}
	h, err := sched.Run(ctx, r, nil, sopts)
	if err != nil {
		return err
	}
	if h != nil {
		if err := h.Wait(); err != nil {
			return err
		}
	}
	logger.Info("Target is up to date.")
	return nil
}
