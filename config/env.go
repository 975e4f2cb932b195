// Package config loads host configuration from the environment.
package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
)

// Settings is the host configuration the default registry is built with.
// It is read once, at first use of the registry.
type Settings struct {
	// EnablePlugins gates discovery of external adapter plugins. When
	// false, only adapters marked isInternal survive discovery.
	EnablePlugins bool `env:"IMAGING_ENABLE_PLUGINS" envDefault:"true"`

	// PluginPath is the root directory scanned for plugin manifests. Empty
	// disables filesystem discovery.
	PluginPath string `env:"IMAGING_PLUGIN_PATH"`

	// LogLevel adjusts host logging ("debug", "info", "warn", "error").
	LogLevel string `env:"IMAGING_HOST_LOG_LEVEL" envDefault:"info"`
}

// Defaults returns the settings used when the environment is unreadable.
func Defaults() Settings {
	return Settings{EnablePlugins: true, LogLevel: "info"}
}

// SlogLevel converts LogLevel to a slog.Level. Unknown values fall back to
// info.
func (s Settings) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// FromEnv parses Settings from the process environment.
func FromEnv() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	return s, nil
}
