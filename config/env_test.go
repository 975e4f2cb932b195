package config_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenewire/imaging-host-sdk/config"
)

func TestFromEnv(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		s, err := config.FromEnv()
		require.NoError(t, err)
		assert.True(t, s.EnablePlugins)
		assert.Equal(t, "info", s.LogLevel)
	})

	t.Run("DisablePlugins", func(t *testing.T) {
		t.Setenv("IMAGING_ENABLE_PLUGINS", "false")
		s, err := config.FromEnv()
		require.NoError(t, err)
		assert.False(t, s.EnablePlugins)
	})

	t.Run("PluginPath", func(t *testing.T) {
		t.Setenv("IMAGING_PLUGIN_PATH", "/opt/imaging/plugins")
		s, err := config.FromEnv()
		require.NoError(t, err)
		assert.Equal(t, "/opt/imaging/plugins", s.PluginPath)
	})

	t.Run("MalformedBool", func(t *testing.T) {
		t.Setenv("IMAGING_ENABLE_PLUGINS", "sometimes")
		_, err := config.FromEnv()
		assert.Error(t, err)
	})
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, config.Defaults().SlogLevel())
	assert.Equal(t, slog.LevelDebug, config.Settings{LogLevel: "debug"}.SlogLevel())
	assert.Equal(t, slog.LevelError, config.Settings{LogLevel: "ERROR"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, config.Settings{LogLevel: "chatty"}.SlogLevel())
}
