package marketsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/erp/marketsync/internal/domain/marketplace"
	applog "github.com/erp/marketsync/internal/infrastructure/logger"
	"github.com/erp/marketsync/internal/infrastructure/telemetry"
)

// RelationshipService maintains the auxiliary facts read by the analyzer:
// part number key consistency per SKU and competition history per (SKU, Account).
type RelationshipService struct {
	records   marketplace.ProductRecordReader
	pnkFacts  marketplace.PNKFactRepository
	snapshots marketplace.CompetitionSnapshotRepository
	policy    marketplace.Policy
	logger    *zap.Logger
	now       func() time.Time
}

// NewRelationshipService creates a new RelationshipService
func NewRelationshipService(
	records marketplace.ProductRecordReader,
	pnkFacts marketplace.PNKFactRepository,
	snapshots marketplace.CompetitionSnapshotRepository,
	policy marketplace.Policy,
	logger *zap.Logger,
) *RelationshipService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RelationshipService{
		records:   records,
		pnkFacts:  pnkFacts,
		snapshots: snapshots,
		policy:    policy.WithDefaults(),
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock overrides time.Now
func (s *RelationshipService) SetClock(now func() time.Time) {
	s.now = now
}

// CheckPNKConsistency compares the part number keys of both accounts and
// upserts the single fact kept for sku. Re-checking never adds a row.
func (s *RelationshipService) CheckPNKConsistency(ctx context.Context, sku string) (*marketplace.PNKConsistencyFact, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, translateError(marketplace.ErrInvalidSKU)
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "relationship", "check_pnk",
		telemetry.WithAttribute(telemetry.SpanAttrSKU, sku),
	)
	defer span.End()
	log := applog.WithLogger(ctx, s.logger).With(zap.String("sku", sku))

	records, err := s.records.FindBySKU(ctx, sku)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	main, fbe, err := splitByAccount(records)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.now()
	fact, err := s.pnkFacts.FindBySKU(ctx, sku)
	if err != nil {
		return nil, fmt.Errorf("load pnk fact: %w", err)
	}
	previous := marketplace.PNKStatus("")
	if fact == nil {
		fact, err = marketplace.NewPNKConsistencyFact(sku, main, fbe, now)
		if err != nil {
			return nil, translateError(err)
		}
	} else {
		previous = fact.Status
		fact.Recheck(main, fbe, now)
	}

	if err := s.pnkFacts.Upsert(ctx, fact); err != nil {
		telemetry.RecordError(span, err)
		log.Error("Failed to save PNK fact", zap.Error(err))
		return nil, fmt.Errorf("save pnk fact: %w", err)
	}
	telemetry.SetAttributes(span, "pnk.status", fact.Status)

	if previous != fact.Status {
		log.Info("PNK consistency changed",
			zap.String("from", previous.String()),
			zap.String("to", fact.Status.String()),
		)
	}
	return fact, nil
}

// CheckCompetition appends a competition snapshot for (sku, account) derived
// from the stored record and the latest prior snapshot.
func (s *RelationshipService) CheckCompetition(ctx context.Context, sku string, account marketplace.Account) (*marketplace.CompetitionSnapshot, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, translateError(marketplace.ErrInvalidSKU)
	}
	if !account.IsValid() {
		return nil, translateError(marketplace.ErrInvalidAccount)
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "relationship", "check_competition",
		telemetry.WithAttribute(telemetry.SpanAttrSKU, sku),
		telemetry.WithAttribute(telemetry.SpanAttrAccount, account),
	)
	defer span.End()
	log := applog.WithLogger(ctx, s.logger).With(zap.String("sku", sku), zap.String("account", account.String()))

	record, err := s.records.FindBySKUAndAccount(ctx, sku, account)
	if err != nil {
		if errors.Is(err, marketplace.ErrRecordNotFound) {
			err = ErrProductNotFound
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	previous, err := s.snapshots.FindLatest(ctx, sku, account)
	if err != nil {
		return nil, fmt.Errorf("load latest snapshot: %w", err)
	}

	snapshot, err := marketplace.NewCompetitionSnapshot(record, previous, s.policy, s.now())
	if err != nil {
		return nil, translateError(err)
	}
	if err := s.snapshots.Append(ctx, snapshot); err != nil {
		telemetry.RecordError(span, err)
		log.Error("Failed to append competition snapshot", zap.Error(err))
		return nil, fmt.Errorf("append snapshot: %w", err)
	}
	telemetry.SetAttributes(span, "competition.requires_action", snapshot.RequiresAction)

	if snapshot.RequiresAction {
		log.Info("Competition requires action",
			zap.Int("offers", snapshot.NumberOfOffers),
			zap.Int("new_competitors", snapshot.NewCompetitors),
		)
	}
	return snapshot, nil
}

// CompetitionHistory returns the newest snapshots for (sku, account)
func (s *RelationshipService) CompetitionHistory(ctx context.Context, sku string, account marketplace.Account, limit int) ([]marketplace.CompetitionSnapshot, error) {
	if !account.IsValid() {
		return nil, translateError(marketplace.ErrInvalidAccount)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.snapshots.FindHistory(ctx, strings.TrimSpace(sku), account, limit)
}
