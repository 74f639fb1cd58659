package config

import "context"

// Loader reads one rule file into a Model.
type Loader interface {
	LoadFile(ctx context.Context, path string) (*Model, error)
}

// Model is the content of one or more rule files.
type Model struct {
	// Workdir is the first working directory declared, if any.
	Workdir string
	Rules   []*RuleDefinition
}

// Merge appends other's rules. The first declared workdir is kept.
func (m *Model) Merge(other *Model) {
	if m.Workdir == "" {
		m.Workdir = other.Workdir
	}
	m.Rules = append(m.Rules, other.Rules...)
}

// RuleDefinition is one rule as written in a file.
type RuleDefinition struct {
	Name string
	// Input and Output hold strings and nested lists of strings.
	Input   []any
	Output  []any
	Message string
	Shell   string
	Action  string
	// Source is the file the rule was declared in.
	Source string
}
