// Package scheduler runs catalog syncs on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/erp/marketsync/internal/application/marketsync"
	"github.com/erp/marketsync/internal/domain/marketplace"
	applog "github.com/erp/marketsync/internal/infrastructure/logger"
)

// SyncRunner starts one catalog sync
type SyncRunner interface {
	Sync(ctx context.Context, req marketsync.SyncRequest) (*marketplace.SyncRun, error)
}

// ---------------------------------------------------------------------------
// SyncTriggerConfig
// ---------------------------------------------------------------------------

// SyncTriggerConfig holds configuration for the scheduled sync trigger
type SyncTriggerConfig struct {
	// Interval between two scheduled runs
	Interval time.Duration
	// RunOnStart triggers a run immediately instead of waiting one interval
	RunOnStart bool
	// Accounts to sync; empty means both
	Accounts []marketplace.Account
}

// DefaultSyncTriggerConfig returns default configuration
func DefaultSyncTriggerConfig() SyncTriggerConfig {
	return SyncTriggerConfig{
		Interval: time.Hour,
		Accounts: marketplace.AllAccounts(),
	}
}

// ---------------------------------------------------------------------------
// SyncTrigger
// ---------------------------------------------------------------------------

// SyncTriggerStats is a snapshot of the trigger state
type SyncTriggerStats struct {
	IsRunning  bool       `json:"is_running"`
	Interval   string     `json:"interval"`
	Runs       int        `json:"runs"`
	Skipped    int        `json:"skipped"`
	Failures   int        `json:"failures"`
	LastRunAt  *time.Time `json:"last_run_at,omitempty"`
	LastRunID  string     `json:"last_run_id,omitempty"`
	LastStatus string     `json:"last_status,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
}

// SyncTrigger runs a full sync every interval. Runs never overlap: a tick that
// arrives while a run is in progress is dropped by the ticker, and a run that
// finds the sync lock held by a manual sync is skipped.
type SyncTrigger struct {
	config SyncTriggerConfig
	runner SyncRunner
	logger *zap.Logger
	now    func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	statsMu sync.RWMutex
	stats   SyncTriggerStats
}

// NewSyncTrigger creates a new scheduled sync trigger
func NewSyncTrigger(config SyncTriggerConfig, runner SyncRunner, logger *zap.Logger) (*SyncTrigger, error) {
	if config.Interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive", ErrInvalidConfig)
	}
	if runner == nil {
		return nil, fmt.Errorf("%w: sync runner is required", ErrInvalidConfig)
	}
	if len(config.Accounts) == 0 {
		config.Accounts = marketplace.AllAccounts()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncTrigger{
		config: config,
		runner: runner,
		logger: logger.Named("sync_trigger"),
		now:    time.Now,
		stats:  SyncTriggerStats{Interval: config.Interval.String()},
	}, nil
}

// Start starts the trigger loop. Starting a running trigger is a no-op.
func (t *SyncTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isRunning {
		return nil
	}
	t.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Scheduled sync trigger started",
		zap.Duration("interval", t.config.Interval),
		zap.Bool("run_on_start", t.config.RunOnStart),
		zap.String("accounts", marketplace.AccountSetKey(t.config.Accounts)),
	)
	return nil
}

// Stop cancels the loop and waits for an in-flight run to wind down or for ctx
func (t *SyncTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return ErrTriggerNotRunning
	}
	t.isRunning = false
	cancel := t.cancel
	t.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Scheduled sync trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *SyncTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	if t.config.RunOnStart {
		t.RunOnce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.RunOnce(ctx)
		}
	}
}

// RunOnce performs one scheduled sync and records its outcome
func (t *SyncTrigger) RunOnce(ctx context.Context) {
	ctx, logger := applog.WithTrigger(ctx, t.logger, string(marketplace.TriggerScheduled))

	startedAt := t.now()
	run, err := t.runner.Sync(ctx, marketsync.SyncRequest{
		Accounts:    t.config.Accounts,
		Mode:        marketplace.SyncModeFull,
		TriggeredBy: marketplace.TriggerScheduled,
	})

	t.statsMu.Lock()
	defer t.statsMu.Unlock()

	if errors.Is(err, marketsync.ErrSyncAlreadyRunning) {
		t.stats.Skipped++
		logger.Info("Scheduled sync skipped, another sync holds the lock")
		return
	}

	t.stats.Runs++
	t.stats.LastRunAt = &startedAt
	t.stats.LastError = ""
	if run != nil {
		t.stats.LastRunID = run.ID.String()
		t.stats.LastStatus = run.Status.String()
	}

	if err != nil {
		t.stats.Failures++
		t.stats.LastError = err.Error()
		logger.Error("Scheduled sync failed", zap.Error(err))
		return
	}

	logger.Info("Scheduled sync finished",
		zap.String("run_id", t.stats.LastRunID),
		zap.String("status", t.stats.LastStatus),
	)
}

// Stats returns a snapshot of the trigger state
func (t *SyncTrigger) Stats() SyncTriggerStats {
	t.mu.Lock()
	running := t.isRunning
	t.mu.Unlock()

	t.statsMu.RLock()
	defer t.statsMu.RUnlock()
	stats := t.stats
	stats.IsRunning = running
	return stats
}
