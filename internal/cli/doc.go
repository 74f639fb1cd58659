// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes. It
// translates flags, the settings file and GRIDMAKE_* variables into the
// application's configuration.
package cli
