// Package rule defines the production unit of a build: a named transformation
// from input path templates to output path templates with a bound action.
package rule

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/gridmake/internal/wildcard"
)

// Action performs the work of one rule invocation.
type Action func(ctx context.Context, input, output []string, wildcards wildcard.Binding) error

// Request is a rule's templates with one binding substituted in.
type Request struct {
	Input     []string
	Output    []string
	Wildcards wildcard.Binding
}

// Group is a set of concrete outputs that share one binding, so a single
// expansion produces all of them.
type Group struct {
	Binding wildcard.Binding
	Paths   []string
}

// Rule is built incrementally by a definition loader and is read-only once
// the workflow is frozen.
type Rule struct {
	name      string
	inputs    []string
	outputs   []string
	templates []*wildcard.Template
	wildcards []string
	message   string
	action    Action
}

// New returns an empty rule.
func New(name string) *Rule {
	return &Rule{name: name}
}

func (r *Rule) Name() string              { return r.name }
func (r *Rule) Inputs() []string          { return r.inputs }
func (r *Rule) Outputs() []string         { return r.outputs }
func (r *Rule) Message() string           { return r.message }
func (r *Rule) Action() Action            { return r.action }
func (r *Rule) HasAction() bool           { return r.action != nil }
func (r *Rule) WildcardNames() []string   { return r.wildcards }
func (r *Rule) HasWildcards() bool        { return len(r.wildcards) > 0 }
func (r *Rule) SetMessage(message string) { r.message = message }
func (r *Rule) BindAction(action Action)  { r.action = action }
func (r *Rule) String() string            { return r.name }

// AddInput appends input templates. Nested lists are flattened in order.
func (r *Rule) AddInput(paths ...any) error {
	flat, err := flatten(r.name, paths)
	if err != nil {
		return err
	}
	r.inputs = append(r.inputs, flat...)
	return nil
}

// AddOutput appends output templates. Every output must declare the same
// wildcard names as the first one.
func (r *Rule) AddOutput(paths ...any) error {
	flat, err := flatten(r.name, paths)
	if err != nil {
		return err
	}
	for _, p := range flat {
		tmpl, err := wildcard.Compile(p)
		if err != nil {
			return definitionf(r.name, "%v", err)
		}
		if len(r.outputs) == 0 {
			r.wildcards = tmpl.Names()
		} else if !wildcard.SameNames(r.wildcards, tmpl.Names()) {
			return definitionf(r.name, "not all output files contain the same wildcards: %q declares %v, expected %v",
				p, tmpl.Names(), r.wildcards)
		}
		r.outputs = append(r.outputs, p)
		r.templates = append(r.templates, tmpl)
	}
	return nil
}

// IsProducerOf reports whether path fully matches one of the outputs.
func (r *Rule) IsProducerOf(path string) bool {
	for _, t := range r.templates {
		if _, ok := t.Match(path); ok {
			return true
		}
	}
	return false
}

// BindingsFor returns the binding of the most specific output template that
// matches path: the one with the smallest total wildcard length. Exact ties
// go to the output declared first.
func (r *Rule) BindingsFor(path string) (wildcard.Binding, bool) {
	var best wildcard.Binding
	bestWeight := -1
	for _, t := range r.templates {
		b, ok := t.Match(path)
		if !ok {
			continue
		}
		if w := wildcard.Weight(b); bestWeight < 0 || w < bestWeight {
			best, bestWeight = b, w
		}
	}
	return best, bestWeight >= 0
}

// Unexpanded is the request used when nothing specific was asked of the rule.
func (r *Rule) Unexpanded() Request {
	return Request{Input: r.inputs, Output: r.outputs, Wildcards: wildcard.Binding{}}
}

// Expand substitutes b into every input and output template.
func (r *Rule) Expand(b wildcard.Binding) (Request, error) {
	in, err := r.expandAll(r.inputs, b)
	if err != nil {
		return Request{}, err
	}
	out, err := r.expandAll(r.outputs, b)
	if err != nil {
		return Request{}, err
	}
	return Request{Input: in, Output: out, Wildcards: b}, nil
}

// ExpandFor expands the rule against concrete outputs requested of it. The
// first requested path decides the binding; an empty request gives the
// unexpanded templates.
func (r *Rule) ExpandFor(requested []string) (Request, error) {
	if len(requested) == 0 {
		return r.Unexpanded(), nil
	}
	b, ok := r.BindingsFor(requested[0])
	if !ok {
		return Request{}, definitionf(r.name, "cannot produce requested file %s", requested[0])
	}
	return r.Expand(b)
}

func (r *Rule) expandAll(templates []string, b wildcard.Binding) ([]string, error) {
	out := make([]string, 0, len(templates))
	for _, t := range templates {
		s, err := wildcard.Format(t, wildcard.FromBinding(b))
		if err != nil {
			name := err.Error()
			if mk, ok := err.(*wildcard.MissingKeyError); ok {
				name = mk.Key
			}
			return nil, &UnresolvedWildcardError{Rule: r.name, Template: t, Name: name}
		}
		out = append(out, s)
	}
	return out, nil
}

// GroupByBinding partitions paths this rule produces by the binding each one
// resolves to. Groups keep first-seen order. Paths the rule cannot produce are
// ignored.
func (r *Rule) GroupByBinding(paths []string) []Group {
	var groups []Group
	index := make(map[string]int)
	for _, p := range paths {
		b, ok := r.BindingsFor(p)
		if !ok {
			continue
		}
		key := b.Key()
		i, seen := index[key]
		if !seen {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Binding: b})
		}
		groups[i].Paths = append(groups[i].Paths, p)
	}
	return groups
}

// Validate rejects a rule that declares outputs it has no way to produce.
func (r *Rule) Validate() error {
	if len(r.outputs) > 0 && r.action == nil {
		return definitionf(r.name, "defines output but has no action")
	}
	return nil
}

// Describe expands the message template for req. Without a template it
// returns the default summary of the rule's files. Unknown placeholders are
// kept as written.
func (r *Rule) Describe(req Request) string {
	if r.message == "" {
		return fmt.Sprintf("rule %s:\n\tinput: %s\n\toutput: %s\n",
			r.name, strings.Join(req.Input, ", "), strings.Join(req.Output, ", "))
	}
	return wildcard.FormatLenient(r.message, r.Placeholders(req))
}

// Placeholders resolves the keys available to messages and shell commands:
// rule, input, output, wildcards.NAME and bare wildcard names.
func (r *Rule) Placeholders(req Request) wildcard.Lookup {
	return func(key string) (string, bool) {
		switch key {
		case "rule":
			return r.name, true
		case "input":
			return strings.Join(req.Input, " "), true
		case "output":
			return strings.Join(req.Output, " "), true
		}
		if name, ok := strings.CutPrefix(key, "wildcards."); ok {
			v, ok := req.Wildcards[name]
			return v, ok
		}
		v, ok := req.Wildcards[key]
		return v, ok
	}
}

func flatten(rule string, items []any) ([]string, error) {
	var out []string
	for _, item := range items {
		switch v := item.(type) {
		case string:
			out = append(out, v)
		case []string:
			out = append(out, v...)
		case []any:
			nested, err := flatten(rule, v)
			if err != nil {
				return nil, err
			}
			out = append(out, nested...)
		default:
			return nil, definitionf(rule, "path must be a string or a list of strings, got %T", item)
		}
	}
	return out, nil
}
