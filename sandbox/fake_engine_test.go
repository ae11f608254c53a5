package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// fakeEngine implements Engine for testing. It records every call in order
// and fails the operations listed in errs.
type fakeEngine struct {
	mu sync.Mutex

	calls []string
	specs []ContainerSpec
	errs  map[Op]error

	// waitBlocks makes Wait block until its context is done
	waitBlocks bool
	exitCode   int64
	status     ContainerStatus
	inspectErr error
	output     string

	input       *fakeInput
	created     map[string]bool
	nextID      int
	inputBlocks bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		errs:    map[Op]error{},
		created: map[string]bool{},
	}
}

func (f *fakeEngine) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeEngine) err(op Op) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errs[op]
}

func (f *fakeEngine) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeEngine) Live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func (f *fakeEngine) Create(_ context.Context, spec ContainerSpec) (string, error) {
	f.record("create")
	if err := f.err(OpProvision); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("container-%02d-0123456789abcdef", f.nextID)
	f.specs = append(f.specs, spec)
	f.created[id] = true
	return id, nil
}

func (f *fakeEngine) Start(_ context.Context, _ string) error {
	f.record("start")
	return f.err(OpStart)
}

func (f *fakeEngine) AttachInput(_ context.Context, _ string) (InputStream, error) {
	f.record("attach")
	if err := f.err(OpAttach); err != nil {
		return nil, err
	}
	in := &fakeInput{block: f.inputBlocks, unblock: make(chan struct{})}
	f.mu.Lock()
	f.input = in
	f.mu.Unlock()
	return in, nil
}

func (f *fakeEngine) Wait(ctx context.Context, _ string) (int64, error) {
	f.record("wait")
	if f.waitBlocks {
		<-ctx.Done()
		return -1, ctx.Err()
	}
	if err := f.err(OpWait); err != nil {
		return -1, err
	}
	return f.exitCode, nil
}

func (f *fakeEngine) Inspect(_ context.Context, _ string) (ContainerStatus, error) {
	f.record("inspect")
	return f.status, f.inspectErr
}

func (f *fakeEngine) Logs(_ context.Context, _ string) (string, error) {
	f.record("logs")
	if err := f.err(OpLogs); err != nil {
		return "", err
	}
	return f.output, nil
}

func (f *fakeEngine) Stop(ctx context.Context, _ string) error {
	f.record("stop")
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

func (f *fakeEngine) Remove(ctx context.Context, id string) error {
	f.record("remove")
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := f.err(OpDestroy); err != nil {
		return err
	}
	f.mu.Lock()
	delete(f.created, id)
	f.mu.Unlock()
	return nil
}

// fakeInput records what was written and whether the write side was closed.
type fakeInput struct {
	mu          sync.Mutex
	buf         bytes.Buffer
	writeClosed bool
	closed      bool
	block       bool
	unblock     chan struct{}
}

func (i *fakeInput) Write(p []byte) (int, error) {
	if i.block {
		<-i.unblock
		return 0, errors.New("use of closed connection")
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.buf.Write(p)
}

func (i *fakeInput) CloseWrite() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.writeClosed = true
	return nil
}

func (i *fakeInput) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.closed {
		i.closed = true
		close(i.unblock)
	}
	return nil
}

func (i *fakeInput) Written() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.buf.String()
}

// sleepyEngine delays Wait so elapsed time is measurable.
type sleepyEngine struct {
	*fakeEngine
	delay time.Duration
}

func (s *sleepyEngine) Wait(ctx context.Context, id string) (int64, error) {
	time.Sleep(s.delay)
	return s.fakeEngine.Wait(ctx, id)
}
