package sandbox

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type countingSweeper struct {
	calls   atomic.Int32
	removed int
	err     error
	maxAge  atomic.Int64
}

func (c *countingSweeper) RemoveStale(_ context.Context, olderThan time.Duration) (int, error) {
	c.calls.Add(1)
	c.maxAge.Store(int64(olderThan))
	return c.removed, c.err
}

func TestReaperSweepsPeriodically(t *testing.T) {
	sweeper := &countingSweeper{removed: 2}
	r := NewReaper(zaptest.NewLogger(t), sweeper, 10*time.Millisecond, time.Minute)

	r.Start()
	r.Start() // second start is a no-op
	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, r.Stop(context.Background()))
	calls := sweeper.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, sweeper.calls.Load(), "no sweeps after Stop")
	assert.Equal(t, int64(time.Minute), sweeper.maxAge.Load())
}

func TestReaperDisabled(t *testing.T) {
	sweeper := &countingSweeper{}
	r := NewReaper(zaptest.NewLogger(t), sweeper, 0, time.Minute)

	r.Start()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, r.Stop(context.Background()))
	assert.Equal(t, int32(0), sweeper.calls.Load())
}

func TestReaperSweepError(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("daemon gone")}
	r := NewReaper(zaptest.NewLogger(t), sweeper, time.Hour, time.Minute)

	assert.Equal(t, 0, r.Sweep(context.Background()))
	assert.Equal(t, int32(1), sweeper.calls.Load())
}
