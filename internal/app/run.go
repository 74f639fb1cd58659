package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/vk/gridmake/internal/ctxlog"
	"github.com/vk/gridmake/internal/engine"
	"github.com/vk/gridmake/internal/events"
	"github.com/vk/gridmake/internal/executor"
)

// Run builds the configured targets.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if err := a.enterWorkdir(); err != nil {
		return err
	}

	if a.config.HealthcheckPort > 0 {
		if err := a.startHealthcheckServer(ctx, a.config.HealthcheckPort); err != nil {
			return err
		}
		defer func() { _ = a.closeHealthcheckServer(ctx) }()
	}

	observer := events.Multi{events.NewPrinter(a.outW)}
	if a.config.EventsURL != "" {
		notifier, err := events.DialSocketIO(ctx, events.SocketIOOptions{
			URL:       a.config.EventsURL,
			Namespace: a.config.EventsNamespace,
			RunID:     a.runID,
		})
		if err != nil {
			return fmt.Errorf("failed to connect event notifier: %w", err)
		}
		defer func() { _ = notifier.Close(ctx) }()
		observer = append(observer, notifier)
	}

	pool := executor.NewPool(ctx, a.config.WorkerCount, executor.NewRunner(a.store, observer))
	eng := engine.New(a.workflow, a.store, pool, observer)

	a.logger.Info("🚀 Starting build.", "targets", a.config.Targets, "dry_run", a.config.DryRun, "workers", pool.Size())
	runErr := a.dispatch(ctx, eng)
	if closeErr := pool.Close(); closeErr != nil && runErr == nil {
		runErr = closeErr
	}

	finished := events.Event{Type: events.RunFinished, Time: time.Now()}
	if runErr != nil {
		finished.Error = runErr.Error()
	}
	observer.Notify(ctx, finished)

	if runErr != nil {
		a.logger.Error("Build failed.", "error", runErr)
		return runErr
	}
	a.logger.Info("🏁 Build finished.")
	return nil
}

// dispatch runs named rules one after another, then all file targets in a
// single invocation. Without targets the first rule runs.
func (a *App) dispatch(ctx context.Context, eng *engine.Engine) error {
	opts := engine.Options{
		DryRun:    a.config.DryRun,
		ForceThis: a.config.ForceThis,
		ForceAll:  a.config.ForceAll,
	}
	if len(a.config.Targets) == 0 {
		return eng.RunDefault(ctx, opts)
	}

	var files []string
	for _, target := range a.config.Targets {
		if _, ok := a.workflow.Rule(target); !ok {
			files = append(files, target)
			continue
		}
		if err := eng.RunNamed(ctx, target, opts); err != nil {
			return err
		}
	}
	if len(files) > 0 {
		return eng.RunTargets(ctx, files, opts)
	}
	return nil
}

// enterWorkdir creates and changes into the declared working directory.
func (a *App) enterWorkdir() error {
	wd := a.workflow.Workdir()
	if wd == "" {
		return nil
	}
	if err := a.store.MkdirAll(wd); err != nil {
		return err
	}
	if err := os.Chdir(wd); err != nil {
		return fmt.Errorf("failed to change into workdir %s: %w", wd, err)
	}
	a.logger.Info("Changed working directory.", "workdir", wd)
	return nil
}
