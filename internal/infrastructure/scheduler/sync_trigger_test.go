package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/marketsync/internal/application/marketsync"
	"github.com/erp/marketsync/internal/domain/marketplace"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

type fakeRunner struct {
	mu       sync.Mutex
	requests []marketsync.SyncRequest
	err      error
	calls    chan struct{}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{calls: make(chan struct{}, 16)}
}

func (f *fakeRunner) Sync(ctx context.Context, req marketsync.SyncRequest) (*marketplace.SyncRun, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	err := f.err
	f.mu.Unlock()
	defer func() { f.calls <- struct{}{} }()

	if errors.Is(err, marketsync.ErrSyncAlreadyRunning) {
		return nil, err
	}
	run, runErr := marketplace.NewSyncRun(req.Accounts, req.Mode, marketplace.DefaultConflictStrategy, req.TriggeredBy, time.Now())
	if runErr != nil {
		return nil, runErr
	}
	if err != nil {
		_ = run.Fail(marketplace.ErrorContextRun, err.Error(), time.Now())
		return run, err
	}
	_ = run.Complete(time.Now())
	return run, nil
}

func (f *fakeRunner) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func newTestTrigger(t *testing.T, runner SyncRunner, interval time.Duration) *SyncTrigger {
	t.Helper()
	trigger, err := NewSyncTrigger(SyncTriggerConfig{Interval: interval}, runner, zap.NewNop())
	require.NoError(t, err)
	return trigger
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestNewSyncTrigger_InvalidConfig(t *testing.T) {
	_, err := NewSyncTrigger(SyncTriggerConfig{}, newFakeRunner(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewSyncTrigger(DefaultSyncTriggerConfig(), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSyncTrigger_RunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("successful run requests a full scheduled sync of both accounts", func(t *testing.T) {
		runner := newFakeRunner()
		trigger := newTestTrigger(t, runner, time.Hour)

		trigger.RunOnce(ctx)

		require.Len(t, runner.requests, 1)
		req := runner.requests[0]
		assert.Equal(t, marketplace.AllAccounts(), req.Accounts)
		assert.Equal(t, marketplace.SyncModeFull, req.Mode)
		assert.Equal(t, marketplace.TriggerScheduled, req.TriggeredBy)

		stats := trigger.Stats()
		assert.Equal(t, 1, stats.Runs)
		assert.Equal(t, "COMPLETED", stats.LastStatus)
		assert.NotEmpty(t, stats.LastRunID)
		assert.NotNil(t, stats.LastRunAt)
		assert.Empty(t, stats.LastError)
	})

	t.Run("lock contention is skipped, not failed", func(t *testing.T) {
		runner := newFakeRunner()
		runner.setErr(marketsync.ErrSyncAlreadyRunning)
		trigger := newTestTrigger(t, runner, time.Hour)

		trigger.RunOnce(ctx)

		stats := trigger.Stats()
		assert.Equal(t, 1, stats.Skipped)
		assert.Zero(t, stats.Runs)
		assert.Zero(t, stats.Failures)
	})

	t.Run("failure is recorded and cleared by the next success", func(t *testing.T) {
		runner := newFakeRunner()
		runner.setErr(errors.New("marketplace unavailable"))
		trigger := newTestTrigger(t, runner, time.Hour)

		trigger.RunOnce(ctx)
		stats := trigger.Stats()
		assert.Equal(t, 1, stats.Failures)
		assert.Equal(t, "FAILED", stats.LastStatus)
		assert.Contains(t, stats.LastError, "marketplace unavailable")

		runner.setErr(nil)
		trigger.RunOnce(ctx)
		stats = trigger.Stats()
		assert.Equal(t, 2, stats.Runs)
		assert.Equal(t, 1, stats.Failures)
		assert.Empty(t, stats.LastError)
	})
}

func TestSyncTrigger_StartStop(t *testing.T) {
	runner := newFakeRunner()
	trigger, err := NewSyncTrigger(SyncTriggerConfig{Interval: 10 * time.Millisecond, RunOnStart: true}, runner, nil)
	require.NoError(t, err)

	require.NoError(t, trigger.Start(context.Background()))
	require.NoError(t, trigger.Start(context.Background()))
	assert.True(t, trigger.Stats().IsRunning)

	for i := 0; i < 2; i++ {
		select {
		case <-runner.calls:
		case <-time.After(2 * time.Second):
			t.Fatal("scheduled sync did not run")
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, trigger.Stop(stopCtx))
	assert.False(t, trigger.Stats().IsRunning)
	assert.GreaterOrEqual(t, trigger.Stats().Runs, 2)

	assert.ErrorIs(t, trigger.Stop(stopCtx), ErrTriggerNotRunning)
}
