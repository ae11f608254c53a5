package sandbox

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Sweeper removes managed containers older than a cutoff.
type Sweeper interface {
	RemoveStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// Reaper periodically removes containers a failed teardown left behind.
type Reaper struct {
	logger   *zap.Logger
	sweeper  Sweeper
	interval time.Duration
	maxAge   time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewReaper creates a Reaper sweeping every interval. Containers younger
// than maxAge may still belong to an active run and are left alone.
func NewReaper(logger *zap.Logger, sweeper Sweeper, interval, maxAge time.Duration) *Reaper {
	return &Reaper{
		logger:   logger,
		sweeper:  sweeper,
		interval: interval,
		maxAge:   maxAge,
	}
}

// Start launches the sweep loop. It is a no-op when interval is zero or the
// loop is already running.
func (r *Reaper) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.interval <= 0 || r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(ctx, r.done)
}

// Stop ends the sweep loop and waits for it, or for ctx.
func (r *Reaper) Stop(ctx context.Context) error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Reaper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("container reaper stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one removal pass.
func (r *Reaper) Sweep(ctx context.Context) int {
	n, err := r.sweeper.RemoveStale(ctx, r.maxAge)
	if err != nil {
		r.logger.Warn("container sweep failed", zap.Error(err))
		return 0
	}
	if n > 0 {
		r.logger.Info("removed leaked containers", zap.Int("count", n))
	}
	return n
}
