package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/vk/gridmake/internal/rule"
)

// Module is the interface that all built-in action modules implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the named actions available to rule files.
type Registry struct {
	actions map[string]rule.Action
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{actions: make(map[string]rule.Action)}
}

// Load registers every module.
func (r *Registry) Load(modules ...Module) *Registry {
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// RegisterAction adds a named action. Registering a name twice is a
// programming error and panics.
func (r *Registry) RegisterAction(name string, action rule.Action) {
	if _, exists := r.actions[name]; exists {
		panic(fmt.Sprintf("action with name '%s' already registered", name))
	}
	if action == nil {
		panic(fmt.Sprintf("action '%s' registered without a function", name))
	}
	slog.Debug("Registering action.", "name", name)
	r.actions[name] = action
}

// Action looks an action up by name.
func (r *Registry) Action(name string) (rule.Action, bool) {
	a, ok := r.actions[name]
	return a, ok
}

// Names returns the registered action names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
