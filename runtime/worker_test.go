package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorkerStartStopLifecycle(t *testing.T) {
	started := false
	stopped := false

	w := NewWorker("worker-1",
		func(ctx context.Context) error { started = true; return nil },
		func(ctx context.Context) error { stopped = true; return nil },
	)

	require.False(t, w.IsRunning())
	require.NoError(t, w.Start(context.Background()))
	require.True(t, started)
	require.True(t, w.IsRunning())
	require.Greater(t, w.Uptime(), time.Duration(0))

	require.NoError(t, w.Stop(context.Background()))
	require.True(t, stopped)
	require.False(t, w.IsRunning())
	require.Equal(t, time.Duration(0), w.Uptime())
}

func TestWorkerStartIdempotent(t *testing.T) {
	count := 0
	w := NewWorker("worker-2", func(ctx context.Context) error { count++; return nil }, nil)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))
	require.Equal(t, 1, count)
}

func TestWorkerStopIdempotent(t *testing.T) {
	w := NewWorker("worker-3", nil, nil)
	require.NoError(t, w.Stop(context.Background()))
	require.NoError(t, w.Stop(context.Background()))
}

func TestWorkerStartFailurePropagates(t *testing.T) {
	w := NewWorker("worker-4", func(ctx context.Context) error { return errors.New("boom") }, nil)
	err := w.Start(context.Background())
	require.ErrorContains(t, err, "boom")
	require.False(t, w.IsRunning())
}

func TestWorkerRestart(t *testing.T) {
	stops, starts := 0, 0
	w := NewWorker("worker-5",
		func(ctx context.Context) error { starts++; return nil },
		func(ctx context.Context) error { stops++; return nil },
	)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Restart(context.Background()))
	require.Equal(t, 1, stops)
	require.Equal(t, 2, starts)
	require.True(t, w.IsRunning())
}
