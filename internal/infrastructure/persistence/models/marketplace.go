package models

import (
	"encoding/json"
	"time"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ---------------------------------------------------------------------------
// ProductRecordModel
// ---------------------------------------------------------------------------

// ProductRecordModel is the persistence model for the ProductRecord domain entity.
// (sku, account) is unique.
type ProductRecordModel struct {
	BaseModel
	SKU            string                       `gorm:"type:varchar(100);not null;uniqueIndex:idx_product_record_sku_account,priority:1"`
	Account        marketplace.Account          `gorm:"type:varchar(10);not null;uniqueIndex:idx_product_record_sku_account,priority:2"`
	ExternalID     string                       `gorm:"type:varchar(50)"`
	Name           string                       `gorm:"type:varchar(500)"`
	Price          decimal.Decimal              `gorm:"type:decimal(18,4);not null;default:0"`
	Currency       string                       `gorm:"type:varchar(3);not null;default:'RON'"`
	StockQuantity  int                          `gorm:"not null;default:0"`
	PartNumberKey  *string                      `gorm:"type:varchar(50);index"`
	NumberOfOffers int                          `gorm:"not null;default:1"`
	BuyBoxRank     *int                         `gorm:"column:buy_box_rank"`
	BestOfferPrice *decimal.Decimal             `gorm:"type:decimal(18,4)"`
	Status         marketplace.ListingStatus    `gorm:"type:varchar(20);not null"`
	Category       string                       `gorm:"type:varchar(255)"`
	Images         datatypes.JSON               `gorm:"type:jsonb"`
	ModifiedAt     *time.Time                   `gorm:"column:modified_at"`
	SyncStatus     marketplace.RecordSyncStatus `gorm:"type:varchar(20);not null"`
	LastSyncedAt   *time.Time                   `gorm:"index"`
}

// TableName returns the table name for GORM
func (ProductRecordModel) TableName() string {
	return "marketplace_product_records"
}

// ToDomain converts the persistence model to a domain ProductRecord.
func (m *ProductRecordModel) ToDomain() *marketplace.ProductRecord {
	record := &marketplace.ProductRecord{
		ID:             m.ID,
		SKU:            m.SKU,
		Account:        m.Account,
		ExternalID:     m.ExternalID,
		Name:           m.Name,
		Price:          m.Price,
		Currency:       m.Currency,
		StockQuantity:  m.StockQuantity,
		PartNumberKey:  m.PartNumberKey,
		NumberOfOffers: m.NumberOfOffers,
		BuyBoxRank:     m.BuyBoxRank,
		BestOfferPrice: m.BestOfferPrice,
		Status:         m.Status,
		Category:       m.Category,
		Images:         make([]string, 0),
		ModifiedAt:     m.ModifiedAt,
		SyncStatus:     m.SyncStatus,
		LastSyncedAt:   m.LastSyncedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}

	if len(m.Images) > 0 {
		var images []string
		if err := json.Unmarshal(m.Images, &images); err == nil {
			record.Images = images
		}
	}

	return record
}

// FromDomain populates the persistence model from a domain ProductRecord.
func (m *ProductRecordModel) FromDomain(r *marketplace.ProductRecord) {
	m.ID = r.ID
	m.SKU = r.SKU
	m.Account = r.Account
	m.ExternalID = r.ExternalID
	m.Name = r.Name
	m.Price = r.Price
	m.Currency = r.Currency
	m.StockQuantity = r.StockQuantity
	m.PartNumberKey = r.PartNumberKey
	m.NumberOfOffers = r.NumberOfOffers
	m.BuyBoxRank = r.BuyBoxRank
	m.BestOfferPrice = r.BestOfferPrice
	m.Status = r.Status
	m.Category = r.Category
	m.Images = marshalJSON(r.Images, "[]")
	m.ModifiedAt = r.ModifiedAt
	m.SyncStatus = r.SyncStatus
	m.LastSyncedAt = r.LastSyncedAt
	m.CreatedAt = r.CreatedAt
	m.UpdatedAt = r.UpdatedAt
}

// ProductRecordModelFromDomain creates a persistence model from a domain ProductRecord.
func ProductRecordModelFromDomain(r *marketplace.ProductRecord) *ProductRecordModel {
	m := &ProductRecordModel{}
	m.FromDomain(r)
	return m
}

// ---------------------------------------------------------------------------
// SyncRunModel
// ---------------------------------------------------------------------------

// SyncRunModel is the persistence model for the SyncRun domain entity.
type SyncRunModel struct {
	BaseModel
	Accounts    datatypes.JSON               `gorm:"type:jsonb;not null"`
	Mode        marketplace.SyncMode         `gorm:"type:varchar(20);not null"`
	Strategy    marketplace.ConflictStrategy `gorm:"type:varchar(20);not null"`
	TriggeredBy marketplace.TriggerSource    `gorm:"type:varchar(20);not null;default:'manual'"`
	Status      marketplace.RunStatus        `gorm:"type:varchar(20);not null;index"`
	StartedAt   time.Time                    `gorm:"not null;index"`
	CompletedAt *time.Time                   `gorm:"column:completed_at"`
	Processed   int                          `gorm:"not null;default:0"`
	Created     int                          `gorm:"not null;default:0"`
	Updated     int                          `gorm:"not null;default:0"`
	Unchanged   int                          `gorm:"not null;default:0"`
	Failed      int                          `gorm:"not null;default:0"`
	Errors      datatypes.JSON               `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (SyncRunModel) TableName() string {
	return "marketplace_sync_runs"
}

// ToDomain converts the persistence model to a domain SyncRun.
func (m *SyncRunModel) ToDomain() *marketplace.SyncRun {
	run := &marketplace.SyncRun{
		ID:          m.ID,
		Accounts:    make([]marketplace.Account, 0),
		Mode:        m.Mode,
		Strategy:    m.Strategy,
		TriggeredBy: m.TriggeredBy,
		Status:      m.Status,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
		Counts: marketplace.SyncCounts{
			Processed: m.Processed,
			Created:   m.Created,
			Updated:   m.Updated,
			Unchanged: m.Unchanged,
			Failed:    m.Failed,
		},
		Errors:    make([]marketplace.SyncError, 0),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}

	if len(m.Accounts) > 0 {
		var accounts []marketplace.Account
		if err := json.Unmarshal(m.Accounts, &accounts); err == nil {
			run.Accounts = accounts
		}
	}
	if len(m.Errors) > 0 {
		var errs []marketplace.SyncError
		if err := json.Unmarshal(m.Errors, &errs); err == nil {
			run.Errors = errs
		}
	}

	return run
}

// FromDomain populates the persistence model from a domain SyncRun.
func (m *SyncRunModel) FromDomain(r *marketplace.SyncRun) {
	m.ID = r.ID
	m.Accounts = marshalJSON(r.Accounts, "[]")
	m.Mode = r.Mode
	m.Strategy = r.Strategy
	m.TriggeredBy = r.TriggeredBy
	m.Status = r.Status
	m.StartedAt = r.StartedAt
	m.CompletedAt = r.CompletedAt
	m.Processed = r.Counts.Processed
	m.Created = r.Counts.Created
	m.Updated = r.Counts.Updated
	m.Unchanged = r.Counts.Unchanged
	m.Failed = r.Counts.Failed
	m.Errors = marshalJSON(r.Errors, "[]")
	m.CreatedAt = r.CreatedAt
	m.UpdatedAt = r.UpdatedAt
}

// SyncRunModelFromDomain creates a persistence model from a domain SyncRun.
func SyncRunModelFromDomain(r *marketplace.SyncRun) *SyncRunModel {
	m := &SyncRunModel{}
	m.FromDomain(r)
	return m
}

// ---------------------------------------------------------------------------
// PNKFactModel
// ---------------------------------------------------------------------------

// PNKFactModel is the persistence model for PNKConsistencyFact. One row per SKU.
type PNKFactModel struct {
	BaseModel
	SKU          string                `gorm:"type:varchar(100);not null;uniqueIndex:idx_pnk_fact_sku"`
	PNKMain      *string               `gorm:"type:varchar(50);column:pnk_main"`
	PNKFBE       *string               `gorm:"type:varchar(50);column:pnk_fbe"`
	IsConsistent bool                  `gorm:"not null;default:false"`
	Status       marketplace.PNKStatus `gorm:"type:varchar(20);not null;index"`
	CheckedAt    time.Time             `gorm:"not null"`
	ResolvedAt   *time.Time            `gorm:"column:resolved_at"`
}

// TableName returns the table name for GORM
func (PNKFactModel) TableName() string {
	return "marketplace_pnk_facts"
}

// ToDomain converts the persistence model to a domain PNKConsistencyFact.
func (m *PNKFactModel) ToDomain() *marketplace.PNKConsistencyFact {
	return &marketplace.PNKConsistencyFact{
		ID:           m.ID,
		SKU:          m.SKU,
		PNKMain:      m.PNKMain,
		PNKFBE:       m.PNKFBE,
		IsConsistent: m.IsConsistent,
		Status:       m.Status,
		CheckedAt:    m.CheckedAt,
		ResolvedAt:   m.ResolvedAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

// PNKFactModelFromDomain creates a persistence model from a domain PNKConsistencyFact.
func PNKFactModelFromDomain(f *marketplace.PNKConsistencyFact) *PNKFactModel {
	return &PNKFactModel{
		BaseModel: BaseModel{
			ID:        f.ID,
			CreatedAt: f.CreatedAt,
			UpdatedAt: f.UpdatedAt,
		},
		SKU:          f.SKU,
		PNKMain:      f.PNKMain,
		PNKFBE:       f.PNKFBE,
		IsConsistent: f.IsConsistent,
		Status:       f.Status,
		CheckedAt:    f.CheckedAt,
		ResolvedAt:   f.ResolvedAt,
	}
}

// ---------------------------------------------------------------------------
// CompetitionSnapshotModel
// ---------------------------------------------------------------------------

// CompetitionSnapshotModel is the append-only persistence model for CompetitionSnapshot.
type CompetitionSnapshotModel struct {
	ID                  uuid.UUID           `gorm:"type:uuid;primary_key"`
	SKU                 string              `gorm:"type:varchar(100);not null;index:idx_competition_sku_account_detected,priority:1"`
	Account             marketplace.Account `gorm:"type:varchar(10);not null;index:idx_competition_sku_account_detected,priority:2"`
	NumberOfOffers      int                 `gorm:"not null"`
	YourRank            *int                `gorm:"column:your_rank"`
	BestCompetitorPrice *decimal.Decimal    `gorm:"type:decimal(18,4)"`
	YourPrice           decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	PreviousOfferCount  int                 `gorm:"not null;default:0"`
	NewCompetitors      int                 `gorm:"not null;default:0"`
	RequiresAction      bool                `gorm:"not null;default:false"`
	DetectedAt          time.Time           `gorm:"not null;index:idx_competition_sku_account_detected,priority:3"`
}

// TableName returns the table name for GORM
func (CompetitionSnapshotModel) TableName() string {
	return "marketplace_competition_snapshots"
}

// ToDomain converts the persistence model to a domain CompetitionSnapshot.
func (m *CompetitionSnapshotModel) ToDomain() *marketplace.CompetitionSnapshot {
	return &marketplace.CompetitionSnapshot{
		ID:                  m.ID,
		SKU:                 m.SKU,
		Account:             m.Account,
		NumberOfOffers:      m.NumberOfOffers,
		YourRank:            m.YourRank,
		BestCompetitorPrice: m.BestCompetitorPrice,
		YourPrice:           m.YourPrice,
		PreviousOfferCount:  m.PreviousOfferCount,
		NewCompetitors:      m.NewCompetitors,
		RequiresAction:      m.RequiresAction,
		DetectedAt:          m.DetectedAt,
	}
}

// CompetitionSnapshotModelFromDomain creates a persistence model from a domain CompetitionSnapshot.
func CompetitionSnapshotModelFromDomain(s *marketplace.CompetitionSnapshot) *CompetitionSnapshotModel {
	return &CompetitionSnapshotModel{
		ID:                  s.ID,
		SKU:                 s.SKU,
		Account:             s.Account,
		NumberOfOffers:      s.NumberOfOffers,
		YourRank:            s.YourRank,
		BestCompetitorPrice: s.BestCompetitorPrice,
		YourPrice:           s.YourPrice,
		PreviousOfferCount:  s.PreviousOfferCount,
		NewCompetitors:      s.NewCompetitors,
		RequiresAction:      s.RequiresAction,
		DetectedAt:          s.DetectedAt,
	}
}

// marshalJSON encodes v, falling back to empty when v cannot be encoded or is nil
func marshalJSON(v any, empty string) datatypes.JSON {
	data, err := json.Marshal(v)
	if err != nil || string(data) == "null" {
		return datatypes.JSON(empty)
	}
	return datatypes.JSON(data)
}

// MarketplaceModels lists every model owned by the marketplace sync tables
func MarketplaceModels() []any {
	return []any{
		&ProductRecordModel{},
		&SyncRunModel{},
		&PNKFactModel{},
		&CompetitionSnapshotModel{},
	}
}
