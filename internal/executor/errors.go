package executor

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	ErrActionFailed      = errors.New("action failed")
	ErrOutputNotProduced = errors.New("output not produced")
	ErrPoolClosed        = errors.New("worker pool is closed")
)

// ActionFailedError wraps a failure raised by a rule's action. Kind is the
// type name of the underlying failure.
type ActionFailedError struct {
	Rule    string
	Kind    string
	Message string
	Err     error
}

func (e *ActionFailedError) Error() string {
	return fmt.Sprintf("%s: rule %s: %s: %s", ErrActionFailed, e.Rule, e.Kind, e.Message)
}

func (e *ActionFailedError) Unwrap() []error { return []error{ErrActionFailed, e.Err} }

// OutputNotProducedError reports a declared output missing after the action
// returned successfully.
type OutputNotProducedError struct {
	Rule string
	Path string
}

func (e *OutputNotProducedError) Error() string {
	return fmt.Sprintf("%s: output file %s not produced by rule %s", ErrOutputNotProduced, e.Path, e.Rule)
}

func (e *OutputNotProducedError) Unwrap() error { return ErrOutputNotProduced }

// kindOf names the first error in the chain that is not a plain wrapper from
// the errors or fmt packages.
func kindOf(err error) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if k, ok := e.(interface{ kind() string }); ok {
			return k.kind()
		}
		t := reflect.TypeOf(e)
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if pkg := t.PkgPath(); pkg != "errors" && pkg != "fmt" && t.Name() != "" {
			return t.Name()
		}
	}
	return "Error"
}

// panicError carries a recovered panic out of an action.
type panicError struct {
	value any
}

func (e *panicError) Error() string { return fmt.Sprint(e.value) }

func (e *panicError) kind() string { return "Panic" }
