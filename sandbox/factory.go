package sandbox

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
)

// DefaultPodmanHost is the rootful Podman API socket.
const DefaultPodmanHost = "unix:///run/podman/podman.sock"

// NewEngine creates the engine selected by cfg.Sandbox.Backend. Podman is
// reached through its Docker-compatible API.
func NewEngine(logger *zap.Logger, cfg *config.Config) (*DockerEngine, error) {
	host := cfg.Sandbox.Host

	switch cfg.Sandbox.Backend {
	case "docker":
	case "podman":
		if host == "" {
			host = podmanHost()
		}
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Sandbox.Backend)
	}

	logger.Info("connecting to container engine",
		zap.String("backend", cfg.Sandbox.Backend),
		zap.String("host", host),
		zap.Bool("pull_images", cfg.Sandbox.PullImages))

	return NewDockerEngine(logger, host, WithImagePull(cfg.Sandbox.PullImages))
}

// podmanHost prefers the rootless socket of the current user when present.
func podmanHost() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		sock := dir + "/podman/podman.sock"
		if _, err := os.Stat(sock); err == nil {
			return "unix://" + sock
		}
	}
	return DefaultPodmanHost
}
