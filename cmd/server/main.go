package main

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/runbox/api"
	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/executor"
	"github.com/isdmx/runbox/logger"
	"github.com/isdmx/runbox/mcpserver"
	"github.com/isdmx/runbox/sandbox"
)

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Container engine based on config
			newEngine,
			func(e *sandbox.DockerEngine) sandbox.Engine { return e },

			// Executor service and the background reaper
			executor.New,
			newReaper,

			// Front ends
			func(cfg *config.Config, log *zap.Logger, svc *executor.Service) (*mcpserver.MCPServer, error) {
				return mcpserver.New(cfg, log, svc)
			},
			func(cfg *config.Config, log *zap.Logger, svc *executor.Service, e *sandbox.DockerEngine) *api.Server {
				return api.New(cfg, log, svc, e)
			},
		),

		// Start the appropriate transport based on config
		fx.Invoke(
			func(*sandbox.Reaper) {},
			serve,
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	// Start the application
	app.Run()
}

func newEngine(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config) (*sandbox.DockerEngine, error) {
	engine, err := sandbox.NewEngine(log, cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// an unreachable engine is reported, not fatal; /healthz reflects it
			if err := engine.Ping(ctx); err != nil {
				log.Warn("container engine unreachable", zap.String("backend", cfg.Sandbox.Backend), zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return engine.Close()
		},
	})
	return engine, nil
}

func newReaper(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config, engine *sandbox.DockerEngine) *sandbox.Reaper {
	// anything older than one full run budget plus teardown is leaked
	maxAge := cfg.GetTimeout() + sandbox.DefaultTeardownTimeout
	if interval := cfg.GetReaperInterval(); interval > maxAge {
		maxAge = interval
	}
	reaper := sandbox.NewReaper(log, engine, cfg.GetReaperInterval(), maxAge)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			reaper.Start()
			return nil
		},
		OnStop: reaper.Stop,
	})
	return reaper
}

func serve(lc fx.Lifecycle, shutdowner fx.Shutdowner, log *zap.Logger, cfg *config.Config,
	mcp *mcpserver.MCPServer, rest *api.Server,
) {
	run := func(name string, fn func() error) {
		go func() {
			if err := fn(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("server stopped", zap.String("transport", name), zap.Error(err))
				_ = shutdowner.Shutdown(fx.ExitCode(1))
				return
			}
			if name == "stdio" {
				// stdin closed
				_ = shutdowner.Shutdown()
			}
		}()
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			switch cfg.Server.Transport {
			case "stdio":
				run("stdio", mcp.ServeStdio)
			case "http":
				run("http", mcp.ServeHTTP)
			case "rest":
				run("rest", rest.Listen)
			default:
				return errors.New("unsupported transport: " + cfg.Server.Transport)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			switch cfg.Server.Transport {
			case "http":
				return mcp.Shutdown(ctx)
			case "rest":
				return rest.Shutdown(ctx)
			}
			return nil
		},
	})
}
