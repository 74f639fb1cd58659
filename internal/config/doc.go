// Package config defines the format-agnostic model of rule files and the
// Loader interface implemented by the HCL and YAML adapters.
//
// A Model is only a description. Build turns it into rules of a
// workflow.Workflow, resolving action names against the action registry, so
// both file formats share the same semantics.
package config
