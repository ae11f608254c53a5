package api

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/executor"
)

// Executor runs submissions and reports slot usage.
type Executor interface {
	Execute(ctx context.Context, req executor.Request) executor.Result
	Active() int64
	Limit() int64
}

// Pinger checks that the isolation engine is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the REST front end
type Server struct {
	logger *zap.Logger
	exec   Executor
	pinger Pinger
	port   int
	app    *fiber.App
}

// New creates a Server. pinger may be nil, in which case /healthz only
// reports slot usage.
func New(cfg *config.Config, logger *zap.Logger, exec Executor, pinger Pinger) *Server {
	s := &Server{
		logger: logger,
		exec:   exec,
		pinger: pinger,
		port:   cfg.Server.HTTPPort,
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "runbox",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.setupRoutes()
	return s
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves HTTP on the configured port until Shutdown is called.
func (s *Server) Listen() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting REST server", zap.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping REST server")
	return s.app.ShutdownWithContext(ctx)
}

// handleError renders errors returned by handlers in the same shape as a
// run result so clients parse a single format.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if fe, ok := err.(*fiber.Error); ok {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(code).JSON(executor.Payload{Error: err.Error()})
}
