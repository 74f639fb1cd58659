package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/gridmake/internal/ctxlog"
	"github.com/vk/gridmake/internal/registry"
	"github.com/vk/gridmake/internal/rule"
	"github.com/vk/gridmake/internal/workflow"
	"github.com/vk/gridmake/modules/shell"
)

// Build registers every rule of m in wf. Actions are bound here: a shell
// command becomes a shell action, an action name is looked up in reg.
func Build(ctx context.Context, m *Model, wf *workflow.Workflow, reg *registry.Registry, shellOpts shell.Options) error {
	logger := ctxlog.FromContext(ctx)

	if m.Workdir != "" && !wf.SetWorkdir(m.Workdir) {
		logger.Warn("Working directory already set, ignoring.", "workdir", m.Workdir)
	}

	for _, def := range m.Rules {
		if err := buildRule(wf, reg, def, shellOpts); err != nil {
			if def.Source != "" {
				return fmt.Errorf("%s: %w", def.Source, err)
			}
			return err
		}
		logger.Debug("Registered rule.", "rule", def.Name, "source", def.Source)
	}
	return nil
}

func buildRule(wf *workflow.Workflow, reg *registry.Registry, def *RuleDefinition, shellOpts shell.Options) error {
	r, err := wf.RegisterRule(def.Name)
	if err != nil {
		return err
	}
	if err := r.AddInput(def.Input...); err != nil {
		return err
	}
	if err := r.AddOutput(def.Output...); err != nil {
		return err
	}
	r.SetMessage(def.Message)

	switch {
	case def.Shell != "" && def.Action != "":
		return &rule.DefinitionError{Rule: def.Name, Msg: "shell and action are mutually exclusive"}
	case def.Shell != "":
		r.BindAction(shell.Action(r, def.Shell, shellOpts))
	case def.Action != "":
		action, ok := reg.Action(def.Action)
		if !ok {
			return &rule.DefinitionError{
				Rule: def.Name,
				Msg:  fmt.Sprintf("unknown action %q (available: %s)", def.Action, strings.Join(reg.Names(), ", ")),
			}
		}
		r.BindAction(action)
	}
	return nil
}
