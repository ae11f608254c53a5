package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/runbox/config"
)

func TestNewEngine(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("Docker", func(t *testing.T) {
		cfg := &config.Config{Sandbox: config.SandboxConfig{Backend: "docker", Host: "tcp://127.0.0.1:2375", PullImages: true}}
		engine, err := NewEngine(logger, cfg)
		require.NoError(t, err)
		defer engine.Close()
		assert.True(t, engine.pullImages)
		assert.Equal(t, "tcp://127.0.0.1:2375", engine.cli.DaemonHost())
	})

	t.Run("PodmanDefaultSocket", func(t *testing.T) {
		t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
		cfg := &config.Config{Sandbox: config.SandboxConfig{Backend: "podman"}}
		engine, err := NewEngine(logger, cfg)
		require.NoError(t, err)
		defer engine.Close()
		assert.Equal(t, DefaultPodmanHost, engine.cli.DaemonHost())
		assert.False(t, engine.pullImages)
	})

	t.Run("UnsupportedBackend", func(t *testing.T) {
		cfg := &config.Config{Sandbox: config.SandboxConfig{Backend: "local"}}
		_, err := NewEngine(logger, cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported backend")
	})
}
