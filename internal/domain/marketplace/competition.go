package marketplace

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CompetitionSnapshot is one immutable competition observation for (SKU, Account).
// Snapshots are only ever appended.
type CompetitionSnapshot struct {
	ID                  uuid.UUID
	SKU                 string
	Account             Account
	NumberOfOffers      int
	YourRank            *int
	BestCompetitorPrice *decimal.Decimal
	YourPrice           decimal.Decimal
	PreviousOfferCount  int
	NewCompetitors      int
	RequiresAction      bool
	DetectedAt          time.Time
}

// NewCompetitionSnapshot derives a snapshot from the current record and the
// most recent prior snapshot (nil when this is the first check).
func NewCompetitionSnapshot(record *ProductRecord, previous *CompetitionSnapshot, policy Policy, now time.Time) (*CompetitionSnapshot, error) {
	if record == nil {
		return nil, ErrRecordNotFound
	}
	policy = policy.WithDefaults()

	offers := max(record.NumberOfOffers, 1)
	prevOffers := 1
	if previous != nil {
		prevOffers = max(previous.NumberOfOffers, 1)
	}

	s := &CompetitionSnapshot{
		ID:                  uuid.New(),
		SKU:                 record.SKU,
		Account:             record.Account,
		NumberOfOffers:      offers,
		YourRank:            record.BuyBoxRank,
		BestCompetitorPrice: record.BestOfferPrice,
		YourPrice:           record.Price,
		PreviousOfferCount:  prevOffers,
		NewCompetitors:      max(0, offers-prevOffers),
		DetectedAt:          now,
	}
	s.RequiresAction = s.NumberOfOffers >= policy.HighCompetitionOffers ||
		(s.YourRank != nil && *s.YourRank > policy.RankAlert) ||
		s.NewCompetitors >= policy.NewCompetitorAlert

	return s, nil
}

// IsPriceUndercut returns true if a competitor offers a lower price
func (s *CompetitionSnapshot) IsPriceUndercut() bool {
	return s.BestCompetitorPrice != nil && s.BestCompetitorPrice.LessThan(s.YourPrice)
}
