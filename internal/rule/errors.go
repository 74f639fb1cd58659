package rule

import (
	"errors"
	"fmt"
)

var (
	ErrRuleDefinition     = errors.New("invalid rule definition")
	ErrUnresolvedWildcard = errors.New("unresolved wildcard")
)

// DefinitionError reports a rule that cannot be used as declared.
type DefinitionError struct {
	Rule string
	Msg  string
}

func (e *DefinitionError) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("%s: %s", ErrRuleDefinition, e.Msg)
	}
	return fmt.Sprintf("%s: rule %s: %s", ErrRuleDefinition, e.Rule, e.Msg)
}

func (e *DefinitionError) Unwrap() error { return ErrRuleDefinition }

func definitionf(rule, format string, args ...any) error {
	return &DefinitionError{Rule: rule, Msg: fmt.Sprintf(format, args...)}
}

// UnresolvedWildcardError reports a template placeholder absent from the
// binding it was expanded with.
type UnresolvedWildcardError struct {
	Rule     string
	Template string
	Name     string
}

func (e *UnresolvedWildcardError) Error() string {
	return fmt.Sprintf("%s: rule %s: {%s} in %q", ErrUnresolvedWildcard, e.Rule, e.Name, e.Template)
}

func (e *UnresolvedWildcardError) Unwrap() error { return ErrUnresolvedWildcard }
