package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/vk/gridmake/internal/config"
	"github.com/vk/gridmake/internal/ctxlog"
	"github.com/vk/gridmake/internal/registry"
	"github.com/vk/gridmake/internal/storage"
	"github.com/vk/gridmake/internal/workflow"
	"github.com/vk/gridmake/modules/shell"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	runID    string
	store    storage.Storage
	registry *registry.Registry
	workflow *workflow.Workflow

	httpServer *http.Server
}

// NewApp is the constructor for the main application. It loads and freezes
// the workflow described by the configured rule files. Rule files that cannot
// be loaded are fatal startup errors and panic.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) *App {
	runID := uuid.NewString()
	// Jobs run in parallel and share the output with the logger.
	format := resolveFormat(cfg.LogFormat, outW)
	outW = newSyncWriter(outW)
	logger := newLogger(cfg.LogLevel, format, outW).With("run_id", runID)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	fs := afero.NewOsFs()
	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules(fs)
	}
	reg.Load(modules...)
	logger.Debug("All action modules registered.", "actions", reg.Names())

	model, err := config.LoadAll(ctx, fs, ruleLoaders(fs), cfg.RulePaths...)
	if err != nil {
		panic(fmt.Errorf("failed to load rule files: %w", err))
	}

	wf := workflow.New()
	shellOpts := shell.Options{Stdout: outW, Stderr: outW}
	if err := config.Build(ctx, model, wf, reg, shellOpts); err != nil {
		panic(fmt.Errorf("failed to register rules: %w", err))
	}
	if err := wf.Validate(); err != nil {
		panic(fmt.Errorf("invalid workflow: %w", err))
	}
	wf.Freeze()
	logger.Info("Rules loaded.", "count", wf.Len())

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		runID:    runID,
		store:    storage.New(fs),
		registry: reg,
		workflow: wf,
	}
}

// Workflow returns the loaded workflow. This is primarily for testing.
func (a *App) Workflow() *workflow.Workflow {
	return a.workflow
}

// RunID identifies this run in logs and build events.
func (a *App) RunID() string {
	return a.runID
}
