package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrWildcardedTarget is returned when a rule with wildcards is used as a target.
var ErrWildcardedTarget = errors.New("target rule contains wildcards")

// WildcardedTargetError reports a rule that cannot be run without concrete
// outputs to bind its wildcards.
type WildcardedTargetError struct {
	Rule  string
	Names []string
}

func (e *WildcardedTargetError) Error() string {
	return fmt.Sprintf("%s: rule %s has wildcards {%s}; request one of its output files instead",
		ErrWildcardedTarget, e.Rule, strings.Join(e.Names, "}, {"))
}

func (e *WildcardedTargetError) Unwrap() error { return ErrWildcardedTarget }
