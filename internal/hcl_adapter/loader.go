// Package hcl_adapter reads rule files written in HCL.
//
//	workdir = "build"
//
//	rule "copy" {
//	  input   = "data/{sample}.csv"
//	  output  = ["out/{sample}.csv"]
//	  message = "copying {sample}"
//	  action  = "copy"
//	}
//
// input and output accept a string or a nested list of strings, and may use
// the functions of newEvalContext. A rule runs either a shell command or a
// named action.
package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/spf13/afero"
	"github.com/vk/gridmake/internal/config"
	"github.com/vk/gridmake/internal/ctxlog"
)

// Loader is the HCL implementation of config.Loader.
type Loader struct {
	fs afero.Fs
}

// NewLoader creates a loader reading files from fs.
func NewLoader(fs afero.Fs) *Loader {
	return &Loader{fs: fs}
}

// fileRoot is the top level of a rule file.
type fileRoot struct {
	Workdir string       `hcl:"workdir,optional"`
	Rules   []*ruleBlock `hcl:"rule,block"`
}

type ruleBlock struct {
	Name    string         `hcl:"name,label"`
	Input   hcl.Expression `hcl:"input,optional"`
	Output  hcl.Expression `hcl:"output,optional"`
	Message string         `hcl:"message,optional"`
	Shell   string         `hcl:"shell,optional"`
	Action  string         `hcl:"action,optional"`
}

// LoadFile parses path and translates its rule blocks into a config.Model.
func (l *Loader) LoadFile(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx).With("file", path)
	logger.Debug("HCL loader started.")

	src, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read HCL file %s: %w", path, err)
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}

	evalCtx := newEvalContext()
	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, evalCtx, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}

	model := &config.Model{Workdir: root.Workdir}
	for _, block := range root.Rules {
		def, err := l.translateRule(ctx, block, evalCtx)
		if err != nil {
			return nil, fmt.Errorf("%s: rule %q: %w", path, block.Name, err)
		}
		def.Source = path
		model.Rules = append(model.Rules, def)
	}

	logger.Debug("HCL loading complete.", "rules", len(model.Rules))
	return model, nil
}

func (l *Loader) translateRule(ctx context.Context, b *ruleBlock, evalCtx *hcl.EvalContext) (*config.RuleDefinition, error) {
	def := &config.RuleDefinition{
		Name:    b.Name,
		Message: b.Message,
		Shell:   b.Shell,
		Action:  b.Action,
	}
	var err error
	if def.Input, err = l.evalPaths(ctx, b.Input, evalCtx, "input"); err != nil {
		return nil, err
	}
	if def.Output, err = l.evalPaths(ctx, b.Output, evalCtx, "output"); err != nil {
		return nil, err
	}
	return def, nil
}

func (l *Loader) evalPaths(ctx context.Context, expr hcl.Expression, evalCtx *hcl.EvalContext, attr string) ([]any, error) {
	if !isExprDefined(ctx, expr, attr) {
		return nil, nil
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid %s: %w", attr, diags)
	}
	paths, err := pathsFromValue(val)
	if err != nil {
		return nil, fmt.Errorf("invalid %s at %s: %w", attr, expr.Range(), err)
	}
	return paths, nil
}
