package dag

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAmbiguousProducer  = errors.New("ambiguous producer")
	ErrMissingInput       = errors.New("missing input files")
	ErrCircularDependency = errors.New("circular dependency")
)

// AmbiguousProducerError reports two rules that can both produce Path.
type AmbiguousProducerError struct {
	Path   string
	First  string
	Second string
}

func (e *AmbiguousProducerError) Error() string {
	return fmt.Sprintf("%s: rules %s and %s can both produce %s", ErrAmbiguousProducer, e.First, e.Second, e.Path)
}

func (e *AmbiguousProducerError) Unwrap() error { return ErrAmbiguousProducer }

// MissingInputError lists inputs of Rule that nothing produces and that do
// not exist.
type MissingInputError struct {
	Rule  string
	Paths []string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s in rule %s:\n%s", ErrMissingInput, e.Rule, strings.Join(e.Paths, "\n"))
}

func (e *MissingInputError) Unwrap() error { return ErrMissingInput }

// CircularDependencyError reports that Producer, needed by Rule, is already
// on the path leading to Rule.
type CircularDependencyError struct {
	Rule     string
	Producer string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("%s between %s and %s", ErrCircularDependency, e.Rule, e.Producer)
}

func (e *CircularDependencyError) Unwrap() error { return ErrCircularDependency }
