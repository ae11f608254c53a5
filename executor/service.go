package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/language"
	"github.com/isdmx/runbox/sandbox"
	"github.com/isdmx/runbox/workspace"
)

// DefaultMaxConcurrent bounds simultaneously active sandboxes.
const DefaultMaxConcurrent = 8

// ErrMissingField is returned by Request.Validate.
var ErrMissingField = errors.New("Missing code or language") //nolint:staticcheck // returned verbatim to clients

// Validate checks the fields every request needs before the core is invoked.
func (r Request) Validate() error {
	if r.Code == "" || language.Normalize(r.Language) == "" {
		return ErrMissingField
	}
	return nil
}

// Runner runs one staged submission in a sandbox.
type Runner interface {
	Run(ctx context.Context, req sandbox.RunRequest) sandbox.Outcome
}

// Service runs submissions end to end. It is safe for concurrent use; the
// only shared state is the read-only language table and the slot counter.
type Service struct {
	logger        *zap.Logger
	runner        Runner
	fs            workspace.FileSystem
	workspaceRoot string

	limit  int64
	slots  *semaphore.Weighted
	active atomic.Int64
}

// Option defines a functional option for Service
type Option func(*Service)

// WithFileSystem sets the FileSystem workspaces are created on
func WithFileSystem(fs workspace.FileSystem) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// WithWorkspaceRoot sets the parent directory of every workspace
func WithWorkspaceRoot(root string) Option {
	return func(s *Service) {
		s.workspaceRoot = root
	}
}

// WithMaxConcurrent sets the number of sandboxes allowed to run at once
func WithMaxConcurrent(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limit = int64(n)
		}
	}
}

// NewService creates a Service around runner.
func NewService(logger *zap.Logger, runner Runner, opts ...Option) *Service {
	s := &Service{
		logger: logger,
		runner: runner,
		fs:     workspace.RealFileSystem{},
		limit:  DefaultMaxConcurrent,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.slots = semaphore.NewWeighted(s.limit)
	return s
}

// New creates the Service described by cfg on top of engine.
func New(logger *zap.Logger, cfg *config.Config, engine sandbox.Engine) *Service {
	orch := sandbox.NewOrchestrator(logger, engine, sandbox.WithTimeout(cfg.GetTimeout()))

	logger.Info("executor configured",
		zap.Duration("timeout", cfg.GetTimeout()),
		zap.Int("max_concurrent", cfg.Sandbox.MaxConcurrent),
		zap.String("workspace_root", cfg.Sandbox.WorkspaceRoot),
		zap.Strings("languages", language.Names()))

	return NewService(logger, orch,
		WithMaxConcurrent(cfg.Sandbox.MaxConcurrent),
		WithWorkspaceRoot(cfg.Sandbox.WorkspaceRoot),
	)
}

// Active returns the number of runs currently holding a sandbox slot.
func (s *Service) Active() int64 {
	return s.active.Load()
}

// Limit returns the concurrency ceiling.
func (s *Service) Limit() int64 {
	return s.limit
}

// Execute runs req and always returns a Result; failures are reported in
// Result.Error rather than as a Go error.
func (s *Service) Execute(ctx context.Context, req Request) Result {
	profile, err := language.Lookup(req.Language)
	if err != nil {
		s.logger.Info("rejected unsupported language", zap.String("language", req.Language))
		return fromError(sandbox.UnsupportedLanguage(language.Normalize(req.Language)))
	}
	log := s.logger.With(zap.String("language", string(profile.ID)))

	if !s.slots.TryAcquire(1) {
		log.Warn("sandbox capacity exceeded", zap.Int64("limit", s.limit))
		return fromError(sandbox.CapacityExceeded(s.limit))
	}
	s.active.Add(1)
	defer func() {
		s.active.Add(-1)
		s.slots.Release(1)
	}()

	ws, err := workspace.Create(s.fs, s.workspaceRoot)
	if err != nil {
		log.Error("failed to create workspace", zap.Error(err))
		return fromError(sandbox.WorkspaceError(sandbox.OpStage, err))
	}
	defer func() {
		if rmErr := ws.Release(); rmErr != nil {
			log.Error("failed to remove workspace", zap.String("path", ws.Dir()), zap.Error(rmErr))
		}
	}()

	if err := ws.Write(profile.SourceFile, req.Code); err != nil {
		log.Error("failed to stage source", zap.Error(err))
		return fromError(sandbox.WorkspaceError(sandbox.OpStage, err))
	}

	log.Info("executing code in sandbox", zap.Bool("has_stdin", req.Stdin != ""), zap.Int("code_len", len(req.Code)))
	outcome := s.runner.Run(ctx, sandbox.RunRequest{
		Profile:      profile,
		WorkspaceDir: ws.Dir(),
		Stdin:        req.Stdin,
	})

	result := fromOutcome(outcome)
	if result.OK() {
		log.Info("code execution completed",
			zap.Int64("exit_code", outcome.ExitCode),
			zap.Duration("elapsed", result.ExecutionTime.Round(time.Millisecond)),
			zap.Int("output_len", len(result.Output)))
	} else {
		log.Warn("code execution failed",
			zap.String("kind", string(result.Kind)),
			zap.Duration("elapsed", result.ExecutionTime.Round(time.Millisecond)),
			zap.Error(outcome.Err))
	}
	return result
}
