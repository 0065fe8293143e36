package marketsync

import (
	"context"
	"time"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/infrastructure/telemetry"
)

// TransactionScope runs fn inside one database transaction.
// Returning an error from fn rolls back only that scope.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories are the repositories bound to the current transaction
type TransactionalRepositories interface {
	ProductRecords() marketplace.ProductRecordRepository
}

// SyncLocker is the single-flight guard for sync runs
type SyncLocker interface {
	// Obtain returns ErrLockNotObtained if key is already held
	Obtain(ctx context.Context, key string, ttl time.Duration) (SyncLock, error)
}

// SyncLock is a held lock
type SyncLock interface {
	Release(ctx context.Context) error
}

// MetricsRecorder receives sync and analysis measurements
type MetricsRecorder interface {
	RecordRun(ctx context.Context, status marketplace.RunStatus, duration time.Duration)
	RecordItems(ctx context.Context, account marketplace.Account, counts marketplace.SyncCounts)
	RecordPageError(ctx context.Context, account marketplace.Account, transient bool)
	RecordRecommendations(ctx context.Context, recs []marketplace.Recommendation)
}

type noopMetrics struct{}

func (noopMetrics) RecordRun(context.Context, marketplace.RunStatus, time.Duration) {}
func (noopMetrics) RecordItems(context.Context, marketplace.Account, marketplace.SyncCounts) {}
func (noopMetrics) RecordPageError(context.Context, marketplace.Account, bool) {}
func (noopMetrics) RecordRecommendations(context.Context, []marketplace.Recommendation) {}

var (
	_ MetricsRecorder = noopMetrics{}
	_ MetricsRecorder = (*telemetry.SyncMetrics)(nil)
)
