package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockRedeliverer struct {
	calls atomic.Int32
	limit atomic.Int32
	err   error
}

func (m *mockRedeliverer) RetryFailed(_ context.Context, limit int) (int, error) {
	m.calls.Add(1)
	m.limit.Store(int32(limit))
	if m.err != nil {
		return 0, m.err
	}
	return 2, nil
}

func TestNotificationRetrier_PollsUntilStopped(t *testing.T) {
	svc := &mockRedeliverer{}
	w := NewNotificationRetrier(RetrierConfig{PollInterval: 5 * time.Millisecond, BatchSize: 7}, svc, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()), "second start must fail")

	require.Eventually(t, func() bool { return svc.calls.Load() >= 3 }, time.Second, time.Millisecond)
	require.NoError(t, w.Stop())

	calls := svc.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, svc.calls.Load(), "no passes after Stop")
	assert.Equal(t, int32(7), svc.limit.Load())

	stats := w.Stats()
	assert.Equal(t, int(calls), stats.Passes)
	assert.Equal(t, 2*int(calls), stats.Delivered)
	assert.NoError(t, stats.LastError)

	assert.NoError(t, w.Stop(), "stop is idempotent")
}

func TestNotificationRetrier_RecordsErrors(t *testing.T) {
	svc := &mockRedeliverer{err: errors.New("database is locked")}
	w := NewNotificationRetrier(RetrierConfig{PollInterval: 5 * time.Millisecond}, svc, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	require.Eventually(t, func() bool { return svc.calls.Load() >= 1 }, time.Second, time.Millisecond)
	require.NoError(t, w.Stop())

	assert.EqualError(t, w.Stats().LastError, "database is locked")
	assert.Equal(t, int32(DefaultRetrierConfig().BatchSize), svc.limit.Load())
}

type fakeWorker struct {
	name     string
	startErr error
	mu       sync.Mutex
	started  bool
	stopped  bool
	ctx      context.Context
}

func (f *fakeWorker) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	f.ctx = ctx
	return nil
}

func (f *fakeWorker) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeWorker) Name() string { return f.name }

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(zap.NewNop())
	ok := &fakeWorker{name: "ok"}
	broken := &fakeWorker{name: "broken", startErr: errors.New("no config")}
	m.Register(ok)
	m.Register(broken)
	assert.Equal(t, 2, m.Count())

	err := m.StartAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken: no config")
	assert.True(t, ok.started)
	assert.True(t, m.IsRunning())

	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	assert.True(t, ok.stopped)
	assert.ErrorIs(t, ok.ctx.Err(), context.Canceled)

	assert.NoError(t, m.StopAll())
}
