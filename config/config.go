package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. RUNBOX_SANDBOX_TIMEOUT_SEC.
const EnvPrefix = "RUNBOX"

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// SandboxConfig holds sandbox configuration
type SandboxConfig struct {
	Backend           string `mapstructure:"backend"`
	Host              string `mapstructure:"host"`
	TimeoutSec        int    `mapstructure:"timeout_sec"`
	MaxConcurrent     int    `mapstructure:"max_concurrent"`
	WorkspaceRoot     string `mapstructure:"workspace_root"`
	PullImages        bool   `mapstructure:"pull_images"`
	ReaperIntervalSec int    `mapstructure:"reaper_interval_sec"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration from config.yaml in
// the working directory or ./config, falling back to defaults.
func New() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}
	return decode(v)
}

// Load reads configuration from an explicit file path.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("server.transport", "rest")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("sandbox.backend", "docker")
	v.SetDefault("sandbox.host", "")
	v.SetDefault("sandbox.timeout_sec", 10)
	v.SetDefault("sandbox.max_concurrent", 8)
	v.SetDefault("sandbox.workspace_root", "")
	v.SetDefault("sandbox.pull_images", true)
	v.SetDefault("sandbox.reaper_interval_sec", 60)
	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	switch c.Server.Transport {
	case "stdio", "http", "rest":
	default:
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio', 'http' or 'rest'", c.Server.Transport)
	}

	if c.Server.Transport != "stdio" && (c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535) {
		return fmt.Errorf("server.http_port out of range: %d", c.Server.HTTPPort)
	}

	if c.Sandbox.TimeoutSec <= 0 {
		return fmt.Errorf("sandbox.timeout_sec must be positive, got: %d", c.Sandbox.TimeoutSec)
	}

	if c.Sandbox.MaxConcurrent <= 0 {
		return fmt.Errorf("sandbox.max_concurrent must be positive, got: %d", c.Sandbox.MaxConcurrent)
	}

	if c.Sandbox.ReaperIntervalSec < 0 {
		return fmt.Errorf("sandbox.reaper_interval_sec must not be negative, got: %d", c.Sandbox.ReaperIntervalSec)
	}

	switch c.Sandbox.Backend {
	case "docker", "podman":
	default:
		return fmt.Errorf("unsupported sandbox.backend: %s", c.Sandbox.Backend)
	}

	switch c.Logging.Mode {
	case "production", "development":
	default:
		return fmt.Errorf("invalid logging.mode: %s", c.Logging.Mode)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "dpanic", "panic", "fatal":
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	return nil
}

// GetTimeout returns the execution timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSec) * time.Second
}

// GetReaperInterval returns how often leaked containers are swept; zero disables the sweep.
func (c *Config) GetReaperInterval() time.Duration {
	return time.Duration(c.Sandbox.ReaperIntervalSec) * time.Second
}
