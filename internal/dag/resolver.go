package dag

import (
	"context"

	"github.com/vk/gridmake/internal/ctxlog"
	"github.com/vk/gridmake/internal/rule"
	"github.com/vk/gridmake/internal/storage"
	"github.com/vk/gridmake/internal/workflow"
)

// Need is one entry of a frontier: a producing rule and the concrete files
// it must produce, all sharing a single binding.
type Need struct {
	Rule  *rule.Rule
	Files []string
}

// Resolver finds the producers of a rule's inputs.
type Resolver struct {
	wf    *workflow.Workflow
	store storage.Storage
}

// NewResolver creates a resolver over a frozen workflow.
func NewResolver(wf *workflow.Workflow, store storage.Storage) *Resolver {
	return &Resolver{wf: wf, store: store}
}

// Storage returns the storage the resolver checks inputs against.
func (r *Resolver) Storage() storage.Storage { return r.store }

// Frontier resolves inputs needed by consumer into producer requests. Every
// registered rule other than consumer is a candidate. A file claimed by two
// rules is an error; a file claimed by none must already exist.
func (r *Resolver) Frontier(ctx context.Context, consumer *rule.Rule, inputs []string) ([]Need, error) {
	logger := ctxlog.FromContext(ctx).With("rule", consumer.Name())

	files := unique(inputs)
	producerOf := make(map[string]*rule.Rule, len(files))
	claimed := make(map[*rule.Rule][]string)
	var producers []*rule.Rule

	for _, candidate := range r.wf.Rules() {
		if candidate == consumer {
			continue
		}
		for _, f := range files {
			if !candidate.IsProducerOf(f) {
				continue
			}
			if prev, ok := producerOf[f]; ok {
				return nil, &AmbiguousProducerError{Path: f, First: prev.Name(), Second: candidate.Name()}
			}
			producerOf[f] = candidate
			if _, ok := claimed[candidate]; !ok {
				producers = append(producers, candidate)
			}
			claimed[candidate] = append(claimed[candidate], f)
		}
	}

	var missing []string
	for _, f := range files {
		if _, ok := producerOf[f]; ok {
			continue
		}
		if !r.store.Exists(f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingInputError{Rule: consumer.Name(), Paths: missing}
	}

	var needs []Need
	for _, p := range producers {
		for _, g := range p.GroupByBinding(claimed[p]) {
			needs = append(needs, Need{Rule: p, Files: g.Paths})
		}
	}

	logger.Debug("Resolved frontier.", "inputs", len(files), "producers", len(producers), "requests", len(needs))
	return needs, nil
}

func unique(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
