// Package engine is the entry point for builds. It picks the target (the
// default rule, a named rule, or a set of concrete files), validates the
// dependency graph below it, and hands it to a fresh scheduler in dry or real
// mode.
package engine
