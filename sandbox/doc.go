// Package sandbox provides secure code execution capabilities.
//
// The sandbox package drives one isolated run of untrusted code from
// provisioning through teardown. The Orchestrator talks to an Engine, an
// opaque capability offering create/start/attach/wait/inspect/logs/stop/remove
// primitives over isolated containers. DockerEngine implements it on top of
// the Docker Engine API and also serves Podman through its compatible socket.
//
// Every container gets the same fixed constraints: no network, a 100 MiB
// memory ceiling, half of one CPU, dropped capabilities and a pids limit.
// Containers are always stopped and removed before Run returns, and a Reaper
// sweeps anything a failed teardown left behind.
//
// Usage:
//
//	engine, err := sandbox.NewEngine(logger, cfg)
//	orch := sandbox.NewOrchestrator(logger, engine, sandbox.WithTimeout(10*time.Second))
//	outcome := orch.Run(ctx, sandbox.RunRequest{
//	    Profile:      profile,
//	    WorkspaceDir: ws.Dir(),
//	    Stdin:        "hello\n",
//	})
package sandbox
