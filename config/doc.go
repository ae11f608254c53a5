// Package config provides application configuration management.
//
// The config package loads the process configuration from a YAML file with
// viper, applies RUNBOX_* environment overrides and validates the result. It
// covers the transport, the container engine endpoint, the run timeout, the
// concurrency ceiling and logging. The per-run resource limits are fixed in
// the sandbox package and are not configurable.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Server transport: %s\n", cfg.Server.Transport)
package config
