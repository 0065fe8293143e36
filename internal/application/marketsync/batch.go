package marketsync

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/marketsync/internal/domain/marketplace"
	applog "github.com/erp/marketsync/internal/infrastructure/logger"
)

type itemOutcome int

const (
	outcomeCreated itemOutcome = iota + 1
	outcomeUpdated
	outcomeUnchanged
)

// processBatch merges one page of items. Each item runs in its own transaction
// scope, so a failing item is counted and recorded without touching the others.
func (s *SyncService) processBatch(
	ctx context.Context,
	account marketplace.Account,
	items []marketplace.RawItem,
	strategy marketplace.ConflictStrategy,
	rec *runRecorder,
) marketplace.SyncCounts {
	var counts marketplace.SyncCounts

	for i, raw := range items {
		if ctx.Err() != nil {
			break
		}
		counts.Processed++

		sku, outcome, err := s.processItem(ctx, account, raw, strategy)
		if err != nil {
			counts.Failed++
			if sku == "" {
				sku = fmt.Sprintf("item-%d", i+1)
			}
			rec.recordError(account.String()+"/"+sku, err.Error())
			applog.L(ctx).Debug("Catalog item failed",
				zap.String("account", account.String()),
				zap.String("sku", sku),
				zap.Error(err),
			)
			continue
		}

		switch outcome {
		case outcomeCreated:
			counts.Created++
		case outcomeUpdated:
			counts.Updated++
		case outcomeUnchanged:
			counts.Unchanged++
		}
	}

	return counts
}

// processItem decodes one item and applies it to the record store.
// The returned SKU is empty when no part_number could be read.
func (s *SyncService) processItem(
	ctx context.Context,
	account marketplace.Account,
	raw marketplace.RawItem,
	strategy marketplace.ConflictStrategy,
) (string, itemOutcome, error) {
	item, err := marketplace.DecodeCatalogItem(raw)
	if err != nil {
		return marketplace.PeekSKU(raw), 0, err
	}

	var outcome itemOutcome
	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		records := repos.ProductRecords()
		now := s.now()

		existing, err := records.FindBySKUAndAccount(ctx, item.SKU, account)
		if err != nil && !errors.Is(err, marketplace.ErrRecordNotFound) {
			return fmt.Errorf("load record: %w", err)
		}
		if errors.Is(err, marketplace.ErrRecordNotFound) {
			existing = nil
		}

		if existing == nil {
			outcome = outcomeCreated
			return records.Create(ctx, marketplace.NewProductRecord(account, item, now))
		}
		if !marketplace.ShouldOverwrite(existing, item, strategy) {
			outcome = outcomeUnchanged
			return nil
		}
		existing.ApplyItem(item, now)
		outcome = outcomeUpdated
		return records.Update(ctx, existing)
	})
	if err != nil {
		return item.SKU, 0, err
	}
	return item.SKU, outcome, nil
}
