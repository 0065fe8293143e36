package marketplace

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductRecord is the local copy of one marketplace listing.
// At most one record exists per (SKU, Account).
type ProductRecord struct {
	ID             uuid.UUID
	SKU            string
	Account        Account
	ExternalID     string
	Name           string
	Price          decimal.Decimal
	Currency       string
	StockQuantity  int
	PartNumberKey  *string
	NumberOfOffers int
	BuyBoxRank     *int
	BestOfferPrice *decimal.Decimal
	Status         ListingStatus
	Category       string
	Images         []string
	ModifiedAt     *time.Time
	SyncStatus     RecordSyncStatus
	LastSyncedAt   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewProductRecord creates a record from the first sighting of an item on an account
func NewProductRecord(account Account, item *CatalogItem, now time.Time) *ProductRecord {
	r := &ProductRecord{
		ID:        uuid.New(),
		SKU:       item.SKU,
		Account:   account,
		CreatedAt: now,
	}
	r.ApplyItem(item, now)
	return r
}

// ApplyItem overwrites every mutable field with the incoming item
func (r *ProductRecord) ApplyItem(item *CatalogItem, now time.Time) {
	r.ExternalID = item.ExternalID
	r.Name = item.Name
	r.Price = item.Price
	r.Currency = item.Currency
	r.StockQuantity = max(item.Stock, 0)
	r.PartNumberKey = item.PartNumberKey
	r.NumberOfOffers = max(item.NumberOfOffers, 1)
	r.BuyBoxRank = item.BuyBoxRank
	r.BestOfferPrice = item.BestOfferPrice
	r.Status = item.Status
	r.Category = item.Category
	r.Images = item.Images
	r.ModifiedAt = item.ModifiedAt
	r.SyncStatus = RecordSyncStatusSynced
	synced := now
	r.LastSyncedAt = &synced
	r.UpdatedAt = now
}

// HasCompetition returns true if other sellers offer the same catalog entry
func (r *ProductRecord) HasCompetition() bool {
	return r != nil && r.NumberOfOffers > 1
}

// IsStale returns true if the record has not been synced within maxAge
func (r *ProductRecord) IsStale(now time.Time, maxAge time.Duration) bool {
	if r.LastSyncedAt == nil {
		return true
	}
	return now.Sub(*r.LastSyncedAt) >= maxAge
}
