// Package yaml_adapter reads rule files written in YAML.
//
//	workdir: build
//	rules:
//	  - name: copy
//	    input: data/{sample}.csv
//	    output: ["out/{sample}.csv"]
//	    action: copy
package yaml_adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/vk/gridmake/internal/config"
	"github.com/vk/gridmake/internal/ctxlog"
	"gopkg.in/yaml.v3"
)

// Loader is the YAML implementation of config.Loader.
type Loader struct {
	fs afero.Fs
}

// NewLoader creates a loader reading files from fs.
func NewLoader(fs afero.Fs) *Loader {
	return &Loader{fs: fs}
}

type fileRoot struct {
	Workdir string      `yaml:"workdir"`
	Rules   []ruleEntry `yaml:"rules"`
}

type ruleEntry struct {
	Name    string `yaml:"name"`
	Input   any    `yaml:"input"`
	Output  any    `yaml:"output"`
	Message string `yaml:"message"`
	Shell   string `yaml:"shell"`
	Action  string `yaml:"action"`
}

// LoadFile parses path into a config.Model. Unknown keys are rejected.
func (l *Loader) LoadFile(ctx context.Context, path string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx).With("file", path)
	logger.Debug("YAML loader started.")

	src, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read YAML file %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)
	var root fileRoot
	if err := dec.Decode(&root); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode YAML file %s: %w", path, err)
	}

	model := &config.Model{Workdir: root.Workdir}
	for i, entry := range root.Rules {
		if entry.Name == "" {
			return nil, fmt.Errorf("%s: rule #%d has no name", path, i+1)
		}
		in, err := paths(entry.Input)
		if err != nil {
			return nil, fmt.Errorf("%s: rule %q: invalid input: %w", path, entry.Name, err)
		}
		out, err := paths(entry.Output)
		if err != nil {
			return nil, fmt.Errorf("%s: rule %q: invalid output: %w", path, entry.Name, err)
		}
		model.Rules = append(model.Rules, &config.RuleDefinition{
			Name:    entry.Name,
			Input:   in,
			Output:  out,
			Message: entry.Message,
			Shell:   entry.Shell,
			Action:  entry.Action,
			Source:  path,
		})
	}

	logger.Debug("YAML loading complete.", "rules", len(model.Rules))
	return model, nil
}

// paths flattens a scalar or a nested sequence of scalars.
func paths(v any) ([]any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []any{t}, nil
	case int, int64, uint64, float64, bool:
		return []any{fmt.Sprint(t)}, nil
	case []any:
		var out []any
		for _, item := range t {
			nested, err := paths(item)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("must be a string or a list of strings, got %T", v)
	}
}
