package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/gridmake/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config, a
// boolean indicating if the program should exit cleanly, or an ExitError.
//
// Values are layered: built-in defaults, then gridmake.toml (or --config),
// then GRIDMAKE_* environment variables, then flags given on the command line.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("gridmake", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
gridmake - A file-based build engine driven by wildcard rules.

Usage:
  gridmake [options] [TARGET ...]

Arguments:
  TARGET
    A rule name or a file to build. Without targets the first rule runs.

Options:
`)
		flagSet.PrintDefaults()
	}

	defaults := app.DefaultSettings()
	flagSet.String("file", defaults.File, "Rule file or directory of .hcl/.yaml/.yml files.")
	flagSet.String("f", defaults.File, "Rule file or directory (shorthand).")
	configFlag := flagSet.String("config", "", "Settings file. Defaults to ./"+app.SettingsFile+" if present.")
	dryRunFlag := flagSet.Bool("dry-run", false, "Print the jobs that would run without running them.")
	nFlag := flagSet.Bool("n", false, "Dry run (shorthand).")
	forceFlag := flagSet.Bool("force", false, "Run the requested rule, or the producers of requested files, even if up to date.")
	forceAllFlag := flagSet.Bool("force-all", false, "Run every rule needed by the target.")
	flagSet.Int("workers", defaults.Workers, "Number of concurrent workers.")
	flagSet.Int("j", defaults.Workers, "Number of concurrent workers (shorthand).")
	flagSet.String("log-level", defaults.LogLevel, "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flagSet.String("log-format", defaults.LogFormat, "Log output format. Options: 'text', 'json' or 'auto'.")
	flagSet.Int("healthcheck-port", defaults.HealthcheckPort, "Port for the HTTP health check server. 0 is disabled.")
	flagSet.String("events-url", defaults.EventsURL, "socket.io server receiving build events. Empty is disabled.")
	flagSet.String("events-namespace", defaults.EventsNamespace, "socket.io namespace for build events.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	settingsPath, required := app.SettingsFile, false
	if *configFlag != "" {
		settingsPath, required = *configFlag, true
	}
	settings, err := app.LoadSettings(defaults, settingsPath, required)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	flagSet.Visit(func(f *flag.Flag) { applyFlag(&settings, f) })
	slog.Debug("Settings resolved.", "settings", settings)

	config, err := app.NewConfig(app.Config{
		RulePaths:       []string{settings.File},
		Targets:         flagSet.Args(),
		DryRun:          *dryRunFlag || *nFlag,
		ForceThis:       *forceFlag,
		ForceAll:        *forceAllFlag,
		WorkerCount:     settings.Workers,
		LogFormat:       strings.ToLower(settings.LogFormat),
		LogLevel:        strings.ToLower(settings.LogLevel),
		HealthcheckPort: settings.HealthcheckPort,
		EventsURL:       settings.EventsURL,
		EventsNamespace: settings.EventsNamespace,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}

// applyFlag copies an explicitly set flag into settings.
func applyFlag(s *app.Settings, f *flag.Flag) {
	getter, ok := f.Value.(flag.Getter)
	if !ok {
		return
	}
	switch f.Name {
	case "file", "f":
		s.File = getter.Get().(string)
	case "workers", "j":
		s.Workers = getter.Get().(int)
	case "log-level":
		s.LogLevel = getter.Get().(string)
	case "log-format":
		s.LogFormat = getter.Get().(string)
	case "healthcheck-port":
		s.HealthcheckPort = getter.Get().(int)
	case "events-url":
		s.EventsURL = getter.Get().(string)
	case "events-namespace":
		s.EventsNamespace = getter.Get().(string)
	}
}
