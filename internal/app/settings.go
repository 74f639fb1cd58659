package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// SettingsFile is the optional settings file looked up in the current
// directory.
const SettingsFile = "gridmake.toml"

// EnvPrefix prefixes environment variables that override settings, for
// example GRIDMAKE_WORKERS=8.
const EnvPrefix = "GRIDMAKE_"

// Settings are the values that may come from a settings file or the
// environment. Command-line flags override them.
type Settings struct {
	File            string `koanf:"file"`
	Workers         int    `koanf:"workers"`
	LogLevel        string `koanf:"log_level"`
	LogFormat       string `koanf:"log_format"`
	HealthcheckPort int    `koanf:"healthcheck_port"`
	EventsURL       string `koanf:"events_url"`
	EventsNamespace string `koanf:"events_namespace"`
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() Settings {
	return Settings{
		File:            DefaultRuleFile,
		Workers:         4,
		LogLevel:        "info",
		LogFormat:       "auto",
		EventsNamespace: "/",
	}
}

// LoadSettings layers the settings file at path and GRIDMAKE_* variables over
// base. A missing file is only an error when required is set.
func LoadSettings(base Settings, path string, required bool) (Settings, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return base, fmt.Errorf("failed to load settings from %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) || required {
			return base, fmt.Errorf("failed to read settings file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return base, fmt.Errorf("failed to load environment settings: %w", err)
	}

	out := base
	if err := k.Unmarshal("", &out); err != nil {
		return base, fmt.Errorf("failed to decode settings: %w", err)
	}
	return out, nil
}
