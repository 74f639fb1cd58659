// Package registry maps the action names used in rule files (for example
// `action = "copy"`) to the compiled Go functions that implement them.
//
// Built-in modules add their actions through the Module interface during
// application startup, before any rule file is loaded. Loaders then resolve a
// rule's action name once, at definition time, and bind the function directly
// to the rule.
package registry
