// Package workflow holds the rule registry for one build: every rule by name
// in registration order, the default target, and the working directory.
//
// A Workflow is populated by a definition loader, validated, frozen, and then
// shared read-only by the resolver and scheduler.
package workflow

import (
	"errors"
	"fmt"

	"github.com/vk/gridmake/internal/rule"
)

// ErrUnknownRule is returned when a rule is looked up by a name nobody registered.
var ErrUnknownRule = errors.New("unknown rule")

// reserved names are placeholders available to messages and shell commands.
var reserved = map[string]struct{}{
	"input":     {},
	"output":    {},
	"wildcards": {},
	"rule":      {},
}

// Workflow owns all rules of one build.
type Workflow struct {
	rules   map[string]*rule.Rule
	order   []*rule.Rule
	workdir string
	frozen  bool
}

// New returns an empty workflow.
func New() *Workflow {
	return &Workflow{rules: make(map[string]*rule.Rule)}
}

// RegisterRule creates a rule and makes it the target of subsequent
// AddInput/AddOutput/SetMessage/BindAction calls.
func (w *Workflow) RegisterRule(name string) (*rule.Rule, error) {
	if w.frozen {
		return nil, &rule.DefinitionError{Rule: name, Msg: "workflow is frozen"}
	}
	if name == "" {
		return nil, &rule.DefinitionError{Msg: "rule name must not be empty"}
	}
	if _, ok := reserved[name]; ok {
		return nil, &rule.DefinitionError{Rule: name, Msg: "name is reserved"}
	}
	if _, ok := w.rules[name]; ok {
		return nil, &rule.DefinitionError{Rule: name, Msg: "name is already used by another rule"}
	}
	r := rule.New(name)
	w.rules[name] = r
	w.order = append(w.order, r)
	return r, nil
}

// Rule looks a rule up by name.
func (w *Workflow) Rule(name string) (*rule.Rule, bool) {
	r, ok := w.rules[name]
	return r, ok
}

// Rules returns all rules in registration order.
func (w *Workflow) Rules() []*rule.Rule { return w.order }

// Len returns the number of registered rules.
func (w *Workflow) Len() int { return len(w.order) }

// First returns the first registered rule, the default target.
func (w *Workflow) First() (*rule.Rule, bool) {
	if len(w.order) == 0 {
		return nil, false
	}
	return w.order[0], true
}

// Last returns the most recently registered rule.
func (w *Workflow) Last() (*rule.Rule, bool) {
	if len(w.order) == 0 {
		return nil, false
	}
	return w.order[len(w.order)-1], true
}

func (w *Workflow) last() (*rule.Rule, error) {
	if w.frozen {
		return nil, &rule.DefinitionError{Msg: "workflow is frozen"}
	}
	r, ok := w.Last()
	if !ok {
		return nil, &rule.DefinitionError{Msg: "no rule has been registered yet"}
	}
	return r, nil
}

// AddInput appends inputs to the last registered rule.
func (w *Workflow) AddInput(paths ...any) error {
	r, err := w.last()
	if err != nil {
		return err
	}
	return r.AddInput(paths...)
}

// AddOutput appends outputs to the last registered rule.
func (w *Workflow) AddOutput(paths ...any) error {
	r, err := w.last()
	if err != nil {
		return err
	}
	return r.AddOutput(paths...)
}

// SetMessage sets the message template of the last registered rule.
func (w *Workflow) SetMessage(template string) error {
	r, err := w.last()
	if err != nil {
		return err
	}
	r.SetMessage(template)
	return nil
}

// BindAction binds the action of the last registered rule.
func (w *Workflow) BindAction(action rule.Action) error {
	r, err := w.last()
	if err != nil {
		return err
	}
	r.BindAction(action)
	return nil
}

// SetWorkdir records the working directory. Only the first call has an
// effect; it reports whether this call was the one applied.
func (w *Workflow) SetWorkdir(path string) bool {
	if w.workdir != "" || path == "" {
		return false
	}
	w.workdir = path
	return true
}

// Workdir returns the recorded working directory, or "".
func (w *Workflow) Workdir() string { return w.workdir }

// Validate checks every rule and reports all failures together.
func (w *Workflow) Validate() error {
	var errs []error
	for _, r := range w.order {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Freeze ends the registration phase.
func (w *Workflow) Freeze() { w.frozen = true }

// Lookup is Rule with an error for unknown names.
func (w *Workflow) Lookup(name string) (*rule.Rule, error) {
	r, ok := w.rules[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRule, name)
	}
	return r, nil
}
