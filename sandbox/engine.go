package sandbox

import (
	"context"
	"io"
)

// Fixed resource constraints applied to every container.
const (
	MemoryLimitBytes int64 = 100 * 1024 * 1024
	CPUPeriod        int64 = 100000
	CPUQuota         int64 = CPUPeriod / 2
	PidsLimit        int64 = 64
)

// Labels attached to every container created by this service.
const (
	ManagedLabel  = "runbox.managed"
	LanguageLabel = "runbox.language"
)

// ContainerSpec is everything an Engine needs to provision one container.
type ContainerSpec struct {
	Name    string
	Image   string
	Command string
	// HostDir is bound read-write at MountPath.
	HostDir   string
	MountPath string
	// OpenStdin keeps the input channel open until the attached client
	// half-closes it. Without it the program sees an empty, closed stdin.
	OpenStdin       bool
	NetworkDisabled bool
	MemoryBytes     int64
	CPUPeriod       int64
	CPUQuota        int64
	PidsLimit       int64
	Labels          map[string]string
}

// InputStream is the write side of an attached container.
type InputStream interface {
	io.Writer
	// CloseWrite shuts down the write direction so the program observes EOF.
	CloseWrite() error
	Close() error
}

// ContainerState is the observable lifecycle state of a container.
type ContainerState string

const (
	StateCreated ContainerState = "created"
	StateRunning ContainerState = "running"
	StateExited  ContainerState = "exited"
	StateFailed  ContainerState = "failed"
	StateRemoved ContainerState = "removed"
)

// ContainerStatus is what Inspect reports.
type ContainerStatus struct {
	State     ContainerState
	ExitCode  int64
	OOMKilled bool
}

// Engine is the isolation capability the Orchestrator drives.
type Engine interface {
	Create(ctx context.Context, spec ContainerSpec) (string, error)
	Start(ctx context.Context, id string) error
	AttachInput(ctx context.Context, id string) (InputStream, error)
	Wait(ctx context.Context, id string) (int64, error)
	Inspect(ctx context.Context, id string) (ContainerStatus, error)
	// Logs returns stdout and stderr interleaved as one text.
	Logs(ctx context.Context, id string) (string, error)
	Stop(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
}

// Handle tracks one container owned by a single Run.
type Handle struct {
	ID       string
	State    ContainerState
	ExitCode int64
}
