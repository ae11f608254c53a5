package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-units"
	"github.com/google/shlex"
	"go.uber.org/zap"
)

// Ulimit values applied inside every container
const (
	nofileLimit = 256
	fsizeLimit  = 20 * 1024 * 1024
)

// DockerEngine implements Engine on the Docker Engine API
type DockerEngine struct {
	logger     *zap.Logger
	cli        client.APIClient
	pullImages bool
}

// DockerEngineOption defines a functional option for DockerEngine
type DockerEngineOption func(*DockerEngine)

// WithDockerClient sets the API client for DockerEngine
func WithDockerClient(cli client.APIClient) DockerEngineOption {
	return func(d *DockerEngine) {
		d.cli = cli
	}
}

// WithImagePull makes Create pull images missing from the host
func WithImagePull(enabled bool) DockerEngineOption {
	return func(d *DockerEngine) {
		d.pullImages = enabled
	}
}

// NewDockerEngine creates a DockerEngine. Without WithDockerClient it
// connects to host, or to the endpoint named by DOCKER_HOST when host is empty.
func NewDockerEngine(logger *zap.Logger, host string, opts ...DockerEngineOption) (*DockerEngine, error) {
	d := &DockerEngine{logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	if d.cli != nil {
		return d, nil
	}

	clientOpts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		clientOpts = append(clientOpts, client.WithHost(host))
	}
	cli, err := client.NewClientWithOpts(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	d.cli = cli
	return d, nil
}

// Ping checks the engine is reachable.
func (d *DockerEngine) Ping(ctx context.Context) error {
	_, err := d.cli.Ping(ctx)
	return err
}

// Close releases the underlying client.
func (d *DockerEngine) Close() error {
	return d.cli.Close()
}

// Create provisions a container from spec without starting it.
func (d *DockerEngine) Create(ctx context.Context, spec ContainerSpec) (string, error) {
	cfg, hostCfg, err := containerConfig(spec)
	if err != nil {
		return "", err
	}
	if d.pullImages {
		if err := d.ensureImage(ctx, spec.Image); err != nil {
			return "", err
		}
	}

	resp, err := d.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return "", fmt.Errorf("create container: %w", err)
	}
	for _, w := range resp.Warnings {
		d.logger.Warn("container create warning", zap.String("container", spec.Name), zap.String("warning", w))
	}
	return resp.ID, nil
}

// containerConfig translates spec into Docker create parameters.
func containerConfig(spec ContainerSpec) (*container.Config, *container.HostConfig, error) {
	if spec.Image == "" {
		return nil, nil, errors.New("container spec has no image")
	}
	cmd, err := shlex.Split(spec.Command)
	if err != nil {
		return nil, nil, fmt.Errorf("parse command %q: %w", spec.Command, err)
	}
	if len(cmd) == 0 {
		return nil, nil, errors.New("container spec has no command")
	}

	cfg := &container.Config{
		Image:           spec.Image,
		Cmd:             cmd,
		WorkingDir:      spec.MountPath,
		Labels:          spec.Labels,
		Tty:             false,
		OpenStdin:       spec.OpenStdin,
		StdinOnce:       spec.OpenStdin,
		AttachStdin:     spec.OpenStdin,
		NetworkDisabled: spec.NetworkDisabled,
	}

	pids := spec.PidsLimit
	hostCfg := &container.HostConfig{
		AutoRemove:  false,
		CapDrop:     []string{"ALL"},
		SecurityOpt: []string{"no-new-privileges:true"},
		Resources: container.Resources{
			Memory:     spec.MemoryBytes,
			MemorySwap: spec.MemoryBytes,
			CPUPeriod:  spec.CPUPeriod,
			CPUQuota:   spec.CPUQuota,
			PidsLimit:  &pids,
			Ulimits: []*units.Ulimit{
				{Name: "nofile", Soft: nofileLimit, Hard: nofileLimit},
				{Name: "core", Soft: 0, Hard: 0},
				{Name: "fsize", Soft: fsizeLimit, Hard: fsizeLimit},
			},
		},
	}
	if spec.HostDir != "" {
		hostCfg.Binds = []string{fmt.Sprintf("%s:%s:rw", spec.HostDir, spec.MountPath)}
	}
	if spec.NetworkDisabled {
		hostCfg.NetworkMode = "none"
	}
	return cfg, hostCfg, nil
}

func (d *DockerEngine) ensureImage(ctx context.Context, ref string) error {
	if _, err := d.cli.ImageInspect(ctx, ref); err == nil {
		return nil
	}
	d.logger.Info("pulling image", zap.String("image", ref))

	out, err := d.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	defer out.Close()
	if _, err := io.Copy(io.Discard, out); err != nil {
		return fmt.Errorf("pull image %s: %w", ref, err)
	}
	return nil
}

// Start moves a created container to running.
func (d *DockerEngine) Start(ctx context.Context, id string) error {
	return d.cli.ContainerStart(ctx, id, container.StartOptions{})
}

// AttachInput opens the container's stdin for writing.
func (d *DockerEngine) AttachInput(ctx context.Context, id string) (InputStream, error) {
	resp, err := d.cli.ContainerAttach(ctx, id, container.AttachOptions{
		Stream: true,
		Stdin:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("attach stdin: %w", err)
	}
	return &attachedInput{conn: resp.Conn, closeWrite: resp.CloseWrite, close: resp.Close}, nil
}

// Wait blocks until the container stops and returns its exit code.
func (d *DockerEngine) Wait(ctx context.Context, id string) (int64, error) {
	statusCh, errCh := d.cli.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		return -1, err
	case status := <-statusCh:
		if status.Error != nil && status.Error.Message != "" {
			return status.StatusCode, errors.New(status.Error.Message)
		}
		return status.StatusCode, nil
	}
}

// Inspect reports the container state.
func (d *DockerEngine) Inspect(ctx context.Context, id string) (ContainerStatus, error) {
	resp, err := d.cli.ContainerInspect(ctx, id)
	if err != nil {
		return ContainerStatus{}, err
	}
	if resp.State == nil {
		return ContainerStatus{State: StateFailed}, nil
	}

	status := ContainerStatus{
		ExitCode:  int64(resp.State.ExitCode),
		OOMKilled: resp.State.OOMKilled,
	}
	switch {
	case resp.State.Running:
		status.State = StateRunning
	case resp.State.Status == "created":
		status.State = StateCreated
	case resp.State.Error != "" || resp.State.Dead:
		status.State = StateFailed
	default:
		status.State = StateExited
	}
	return status, nil
}

// Logs returns everything the container wrote to stdout and stderr.
func (d *DockerEngine) Logs(ctx context.Context, id string) (string, error) {
	rc, err := d.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     false,
	})
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, rc); err != nil {
		return buf.String(), fmt.Errorf("demultiplex logs: %w", err)
	}
	return buf.String(), nil
}

// Stop kills the container immediately. Stopping an exited container is a no-op.
func (d *DockerEngine) Stop(ctx context.Context, id string) error {
	timeout := 0
	return d.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout})
}

// Remove deletes the container and its anonymous volumes.
func (d *DockerEngine) Remove(ctx context.Context, id string) error {
	return d.cli.ContainerRemove(ctx, id, container.RemoveOptions{
		Force:         true,
		RemoveVolumes: true,
	})
}

// RemoveStale force-removes managed containers created more than olderThan ago.
func (d *DockerEngine) RemoveStale(ctx context.Context, olderThan time.Duration) (int, error) {
	containers, err := d.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", ManagedLabel+"=true")),
	})
	if err != nil {
		return 0, fmt.Errorf("list containers: %w", err)
	}

	cutoff := time.Now().Add(-olderThan).Unix()
	removed := 0
	for _, ctr := range containers {
		if ctr.Created > cutoff {
			continue
		}
		if err := d.Remove(ctx, ctr.ID); err != nil {
			d.logger.Warn("failed to remove stale container", zap.String("container_id", shortID(ctr.ID)), zap.Error(err))
			continue
		}
		d.logger.Info("removed stale container", zap.String("container_id", shortID(ctr.ID)), zap.String("state", ctr.State))
		removed++
	}
	return removed, nil
}

// attachedInput adapts a hijacked attach connection to InputStream.
type attachedInput struct {
	conn       net.Conn
	closeWrite func() error
	close      func()
}

func (a *attachedInput) Write(p []byte) (int, error) {
	return a.conn.Write(p)
}

func (a *attachedInput) CloseWrite() error {
	return a.closeWrite()
}

func (a *attachedInput) Close() error {
	a.close()
	return nil
}
