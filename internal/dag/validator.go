package dag

import (
	"context"

	"github.com/vk/gridmake/internal/ctxlog"
	"github.com/vk/gridmake/internal/rule"
)

// Validator walks producer relationships to reject cycles before anything
// runs.
type Validator struct {
	resolver *Resolver
}

// NewValidator creates a validator sharing the resolver's view of the workflow.
func NewValidator(resolver *Resolver) *Validator {
	return &Validator{resolver: resolver}
}

// Check validates the graph below r for the requested outputs (nil for a
// top-level target) and returns the number of rule invocations reachable.
func (v *Validator) Check(ctx context.Context, r *rule.Rule, requested []string) (int, error) {
	nodes, err := v.check(ctx, r, requested, nil)
	if err != nil {
		return 0, err
	}
	ctxlog.FromContext(ctx).Debug("DAG check passed.", "rule", r.Name(), "nodes", nodes)
	return nodes, nil
}

// check threads the rules on the current path down one branch. Each call
// copies the set so siblings do not see each other.
func (v *Validator) check(ctx context.Context, r *rule.Rule, requested []string, path map[*rule.Rule]struct{}) (int, error) {
	visited := make(map[*rule.Rule]struct{}, len(path)+1)
	for k := range path {
		visited[k] = struct{}{}
	}
	visited[r] = struct{}{}

	req, err := r.ExpandFor(requested)
	if err != nil {
		return 0, err
	}
	needs, err := v.resolver.Frontier(ctx, r, req.Input)
	if err != nil {
		return 0, err
	}

	for _, n := range needs {
		if _, ok := visited[n.Rule]; ok {
			return 0, &CircularDependencyError{Rule: r.Name(), Producer: n.Rule.Name()}
		}
	}

	nodes := 1
	for _, n := range needs {
		count, err := v.check(ctx, n.Rule, n.Files, visited)
		if err != nil {
			return 0, err
		}
		nodes += count
	}
	return nodes, nil
}
