package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/isdmx/runbox/language"
)

// Default time budgets
const (
	DefaultTimeout         = 10 * time.Second
	DefaultTeardownTimeout = 15 * time.Second
)

// RunRequest is one run of a profile against a staged workspace.
type RunRequest struct {
	Profile      language.Profile
	WorkspaceDir string
	Stdin        string
}

// Outcome is what a Run produced. Err is nil on success; a program exiting
// non-zero is still a success, its diagnostics are in Output.
type Outcome struct {
	Output   string
	ExitCode int64
	Elapsed  time.Duration
	Err      error
}

// Orchestrator turns a RunRequest into an Outcome using an Engine.
type Orchestrator struct {
	logger          *zap.Logger
	engine          Engine
	timeout         time.Duration
	teardownTimeout time.Duration
}

// OrchestratorOption defines a functional option for Orchestrator
type OrchestratorOption func(*Orchestrator)

// WithTimeout bounds the wall-clock time between start and exit.
func WithTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithTeardownTimeout bounds the stop and remove calls.
func WithTeardownTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.teardownTimeout = d
		}
	}
}

// NewOrchestrator creates an Orchestrator driving engine.
func NewOrchestrator(logger *zap.Logger, engine Engine, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		logger:          logger,
		engine:          engine,
		timeout:         DefaultTimeout,
		teardownTimeout: DefaultTeardownTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Timeout returns the run budget.
func (o *Orchestrator) Timeout() time.Duration {
	return o.timeout
}

// Run provisions a container for req, runs it to completion and tears it
// down. The container never outlives the call.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) Outcome {
	spec := o.containerSpec(req)
	log := o.logger.With(zap.String("language", string(req.Profile.ID)), zap.String("container", spec.Name))

	start := time.Now()
	id, err := o.engine.Create(ctx, spec)
	if err != nil {
		return Outcome{Err: o.classify(ctx, nil, OpProvision, err)}
	}
	h := &Handle{ID: id, State: StateCreated}
	log = log.With(zap.String("container_id", shortID(id)))
	log.Debug("container created")
	defer o.teardown(ctx, h, log)

	runCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	output, err := o.drive(ctx, runCtx, h, req.Stdin, log)
	elapsed := time.Since(start)
	return Outcome{Output: output, ExitCode: h.ExitCode, Elapsed: elapsed, Err: err}
}

func (o *Orchestrator) containerSpec(req RunRequest) ContainerSpec {
	return ContainerSpec{
		Name:            "runbox-" + uuid.NewString(),
		Image:           req.Profile.Image,
		Command:         req.Profile.Command,
		HostDir:         req.WorkspaceDir,
		MountPath:       language.MountPath,
		OpenStdin:       req.Stdin != "",
		NetworkDisabled: true,
		MemoryBytes:     MemoryLimitBytes,
		CPUPeriod:       CPUPeriod,
		CPUQuota:        CPUQuota,
		PidsLimit:       PidsLimit,
		Labels: map[string]string{
			ManagedLabel:  "true",
			LanguageLabel: string(req.Profile.ID),
		},
	}
}

// drive runs start, input delivery, wait and output collection.
func (o *Orchestrator) drive(ctx, runCtx context.Context, h *Handle, stdin string, log *zap.Logger) (string, error) {
	if err := o.engine.Start(runCtx, h.ID); err != nil {
		h.State = StateFailed
		return "", o.classify(ctx, runCtx, OpStart, err)
	}
	h.State = StateRunning

	if stdin != "" {
		if err := o.deliverInput(runCtx, h.ID, stdin); err != nil {
			h.State = StateFailed
			kerr := o.classify(ctx, runCtx, OpAttach, err)
			return o.partialOutput(ctx, h, kerr, log), kerr
		}
	}

	code, err := o.engine.Wait(runCtx, h.ID)
	if err != nil {
		h.State = StateFailed
		kerr := o.classify(ctx, runCtx, OpWait, err)
		return o.partialOutput(ctx, h, kerr, log), kerr
	}
	h.State = StateExited
	h.ExitCode = code

	status, err := o.engine.Inspect(ctx, h.ID)
	if err != nil {
		log.Warn("failed to inspect container", zap.Error(err))
	}

	output, err := o.engine.Logs(ctx, h.ID)
	if err != nil {
		return "", o.classify(ctx, nil, OpLogs, err)
	}
	log.Debug("container exited", zap.Int64("exit_code", code), zap.Bool("oom_killed", status.OOMKilled))
	return annotate(output, code, status.OOMKilled), nil
}

// deliverInput attaches to the container, writes stdin and half-closes the
// write side so the program reads EOF instead of blocking.
func (o *Orchestrator) deliverInput(ctx context.Context, id, stdin string) error {
	stream, err := o.engine.AttachInput(ctx, id)
	if err != nil {
		return err
	}
	defer stream.Close()

	done := make(chan error, 1)
	go func() {
		if _, err := io.WriteString(stream, stdin); err != nil {
			done <- fmt.Errorf("write stdin: %w", err)
			return
		}
		if err := stream.CloseWrite(); err != nil {
			done <- fmt.Errorf("close stdin: %w", err)
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// unblocks a writer stuck on a full pipe
		_ = stream.Close()
		<-done
		return ctx.Err()
	}
}

// partialOutput collects whatever the program printed before a timeout.
func (o *Orchestrator) partialOutput(ctx context.Context, h *Handle, err error, log *zap.Logger) string {
	if KindOf(err) != KindTimeout {
		return ""
	}
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.teardownTimeout)
	defer cancel()

	// stop first so the log stream is finite
	if stopErr := o.engine.Stop(lctx, h.ID); stopErr != nil {
		log.Warn("failed to stop timed out container", zap.Error(stopErr))
	}
	output, logErr := o.engine.Logs(lctx, h.ID)
	if logErr != nil {
		log.Warn("failed to collect partial output", zap.Error(logErr))
		return ""
	}
	return output
}

// teardown stops and removes the container. Failures are logged and never
// replace the error already decided for the run.
func (o *Orchestrator) teardown(ctx context.Context, h *Handle, log *zap.Logger) {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.teardownTimeout)
	defer cancel()

	err := multierr.Combine(
		o.engine.Stop(tctx, h.ID),
		o.engine.Remove(tctx, h.ID),
	)
	if err != nil {
		log.Error("failed to tear down container",
			zap.String("state", string(h.State)),
			zap.Error(&Error{Kind: KindTeardown, Op: OpDestroy, Err: err}))
		return
	}
	h.State = StateRemoved
	log.Debug("container removed")
}

// classify maps a raw engine error to its Kind. runCtx is nil for calls made
// outside the run budget.
func (o *Orchestrator) classify(ctx, runCtx context.Context, op Op, err error) error {
	if ctx.Err() != nil {
		return &Error{Kind: KindCanceled, Op: op, Err: ctx.Err()}
	}
	if runCtx != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Op: op, Detail: o.timeout.String(), Err: err}
	}
	return &Error{Kind: KindEngine, Op: op, Err: err}
}

// annotate adds a short note when the output alone would not explain how
// the program ended.
func annotate(output string, exitCode int64, oomKilled bool) string {
	if oomKilled {
		if output != "" && output[len(output)-1] != '\n' {
			output += "\n"
		}
		return output + fmt.Sprintf("Process killed: memory limit of %d MiB exceeded", MemoryLimitBytes/(1024*1024))
	}
	if exitCode != 0 && output == "" {
		return fmt.Sprintf("Process exited with code %d", exitCode)
	}
	return output
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
