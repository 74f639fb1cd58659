package executor

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/vk/gridmake/internal/ctxlog"
	"github.com/vk/gridmake/internal/events"
	"github.com/vk/gridmake/internal/rule"
	"github.com/vk/gridmake/internal/storage"
)

// Job is one concrete invocation of a rule.
type Job struct {
	Rule    *rule.Rule
	Request rule.Request
}

// Key identifies the job by its exact output tuple. Jobs without outputs are
// keyed by rule name.
func (j Job) Key() string {
	if len(j.Request.Output) == 0 {
		return "rule:" + j.Rule.Name()
	}
	return strings.Join(j.Request.Output, "\x00")
}

// Event builds a build event describing the job.
func (j Job) Event(t events.Type) events.Event {
	return events.Event{
		Type:      t,
		Rule:      j.Rule.Name(),
		Input:     j.Request.Input,
		Output:    j.Request.Output,
		Wildcards: j.Request.Wildcards,
		Message:   j.Rule.Describe(j.Request),
		Time:      time.Now(),
	}
}

// Runner executes a job body: report, prepare directories, run the action,
// clean up after failure and verify outputs.
type Runner struct {
	store    storage.Storage
	observer events.Observer
}

// NewRunner creates a runner. A nil observer drops events.
func NewRunner(store storage.Storage, observer events.Observer) *Runner {
	if observer == nil {
		observer = events.Nop{}
	}
	return &Runner{store: store, observer: observer}
}

// Run executes job and returns *ActionFailedError or *OutputNotProducedError
// on failure.
func (r *Runner) Run(ctx context.Context, job Job) error {
	logger := ctxlog.FromContext(ctx).With("rule", job.Rule.Name(), "output", job.Request.Output)
	r.observer.Notify(ctx, job.Event(events.JobStarted))
	logger.Info("▶️ Job started.")

	err := r.run(ctx, job)
	if err != nil {
		ev := job.Event(events.JobFailed)
		ev.Error = err.Error()
		r.observer.Notify(ctx, ev)
		logger.Error("Job failed.", "error", err)
		return err
	}

	r.observer.Notify(ctx, job.Event(events.JobFinished))
	logger.Info("✅ Job finished.")
	return nil
}

func (r *Runner) run(ctx context.Context, job Job) error {
	logger := ctxlog.FromContext(ctx)
	name := job.Rule.Name()
	req := job.Request

	for _, out := range req.Output {
		if err := r.store.MkdirAll(filepath.Dir(out)); err != nil {
			return &ActionFailedError{Rule: name, Kind: kindOf(err), Message: err.Error(), Err: err}
		}
	}

	if err := invoke(ctx, job); err != nil {
		for _, out := range req.Output {
			if !r.store.Exists(out) {
				continue
			}
			if rmErr := r.store.Remove(out); rmErr != nil {
				logger.Warn("Could not remove output of failed job.", "path", out, "error", rmErr)
				continue
			}
			logger.Debug("Removed output of failed job.", "path", out)
		}
		return &ActionFailedError{Rule: name, Kind: kindOf(err), Message: err.Error(), Err: err}
	}

	for _, out := range req.Output {
		if !r.store.Exists(out) {
			return &OutputNotProducedError{Rule: name, Path: out}
		}
	}
	return nil
}

// invoke runs the action, turning a panic into an error.
func invoke(ctx context.Context, job Job) (err error) {
	action := job.Rule.Action()
	if action == nil {
		return nil
	}
	defer func() {
		if p := recover(); p != nil {
			err = &panicError{value: p}
		}
	}()
	return action(ctx, job.Request.Input, job.Request.Output, job.Request.Wildcards)
}
