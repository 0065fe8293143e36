package telemetry

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics set is built without a meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// SyncMetrics records catalog sync and stock analysis measurements.
type SyncMetrics struct {
	runsTotal       *Counter
	runDuration     *Histogram
	itemsTotal      *Counter
	pageErrorsTotal *Counter
	recommendations *Counter
	transferUnits   *Counter
}

// NewSyncMetrics creates the marketsync_* instruments on meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &SyncMetrics{}
	var err error

	if m.runsTotal, err = NewCounter(meter,
		"marketsync_sync_runs_total",
		"Finished sync runs by final status",
		"{runs}",
	); err != nil {
		return nil, err
	}

	if m.runDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "marketsync_sync_duration_seconds",
		Description: "Wall time of finished sync runs",
		Unit:        "s",
		Boundaries:  SyncDurationBuckets,
	}); err != nil {
		return nil, err
	}

	if m.itemsTotal, err = NewCounter(meter,
		"marketsync_sync_items_total",
		"Catalog items handled per account by outcome",
		"{items}",
	); err != nil {
		return nil, err
	}

	if m.pageErrorsTotal, err = NewCounter(meter,
		"marketsync_sync_page_errors_total",
		"Failed catalog page fetches",
		"{errors}",
	); err != nil {
		return nil, err
	}

	if m.recommendations, err = NewCounter(meter,
		"marketsync_recommendations_total",
		"Stock recommendations produced by analysis",
		"{recommendations}",
	); err != nil {
		return nil, err
	}

	if m.transferUnits, err = NewCounter(meter,
		"marketsync_transfer_units_total",
		"Units proposed for transfer between accounts",
		"{units}",
	); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordRun counts a finished run and its duration
func (m *SyncMetrics) RecordRun(ctx context.Context, status marketplace.RunStatus, duration time.Duration) {
	attr := AttrRunStatus.String(string(status))
	m.runsTotal.Inc(ctx, attr)
	m.runDuration.RecordDuration(ctx, duration, attr)
}

// RecordItems counts the outcomes of one account's items
func (m *SyncMetrics) RecordItems(ctx context.Context, account marketplace.Account, counts marketplace.SyncCounts) {
	acc := AttrAccount.String(account.String())
	m.itemsTotal.Add(ctx, int64(counts.Created), acc, AttrOutcome.String("created"))
	m.itemsTotal.Add(ctx, int64(counts.Updated), acc, AttrOutcome.String("updated"))
	m.itemsTotal.Add(ctx, int64(counts.Unchanged), acc, AttrOutcome.String("unchanged"))
	m.itemsTotal.Add(ctx, int64(counts.Failed), acc, AttrOutcome.String("failed"))
}

// RecordPageError counts a failed page fetch
func (m *SyncMetrics) RecordPageError(ctx context.Context, account marketplace.Account, transient bool) {
	m.pageErrorsTotal.Inc(ctx,
		AttrAccount.String(account.String()),
		AttrTransient.String(strconv.FormatBool(transient)),
	)
}

// RecordRecommendations counts recommendations by kind and the units of transfers
func (m *SyncMetrics) RecordRecommendations(ctx context.Context, recs []marketplace.Recommendation) {
	for _, rec := range recs {
		m.recommendations.Inc(ctx,
			AttrKind.String(string(rec.Kind)),
			AttrActionable.Bool(rec.Actionable),
		)
		if rec.IsTransfer() {
			m.transferUnits.Add(ctx, int64(rec.Quantity), AttrAccount.String(rec.To.String()))
		}
	}
}
