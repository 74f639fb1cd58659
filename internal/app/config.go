package app

import (
	"errors"
	"fmt"
)

// DefaultRuleFile is read when no rule path is given.
const DefaultRuleFile = "Gridfile.hcl"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	RulePaths []string // rule files or directories
	Targets   []string // rule names or files; empty runs the first rule

	DryRun    bool
	ForceThis bool
	ForceAll  bool

	WorkerCount     int
	LogFormat       string
	LogLevel        string
	HealthcheckPort int
	EventsURL       string
	EventsNamespace string
}

// NewConfig validates cfg and returns a copy of it.
func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.RulePaths) == 0 {
		return nil, errors.New("RulePaths is a required configuration field and cannot be empty")
	}
	if cfg.WorkerCount < 1 {
		return nil, fmt.Errorf("invalid worker count %d: must be at least 1", cfg.WorkerCount)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "text", "json", "auto":
	default:
		return nil, fmt.Errorf("invalid log-format %q: must be 'text', 'json' or 'auto'", cfg.LogFormat)
	}
	if cfg.HealthcheckPort < 0 || cfg.HealthcheckPort > 65535 {
		return nil, fmt.Errorf("invalid healthcheck port %d", cfg.HealthcheckPort)
	}
	return &cfg, nil
}
