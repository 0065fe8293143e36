package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/marketsync/internal/domain/marketplace"
)

// ---------------------------------------------------------------------------
// Requests
// ---------------------------------------------------------------------------

// TriggerSyncRequest is the body of POST /marketplace/sync. Every field is optional.
type TriggerSyncRequest struct {
	Accounts        []string `json:"accounts" binding:"omitempty,max=2,dive,required,marketplace_account"`
	Mode            string   `json:"mode" binding:"omitempty,oneof=FULL INCREMENTAL"`
	MaxPages        int      `json:"max_pages" binding:"omitempty,min=1,max=10000"`
	PageSize        int      `json:"page_size" binding:"omitempty,min=1,max=1000"`
	IncludeInactive bool     `json:"include_inactive"`
	TimeoutSeconds  int      `json:"timeout_seconds" binding:"omitempty,min=1,max=86400"`
	Strategy        string   `json:"strategy" binding:"omitempty,oneof=REMOTE_PRIORITY LOCAL_PRIORITY NEWEST_WINS"`
}

// SuggestTransferRequest is the body of POST /marketplace/analysis/:sku/transfer
type SuggestTransferRequest struct {
	From   string `json:"from" binding:"required,marketplace_account"`
	To     string `json:"to" binding:"required,marketplace_account"`
	Amount int    `json:"amount" binding:"required,min=1"`
}

// ---------------------------------------------------------------------------
// Responses
// ---------------------------------------------------------------------------

// SyncRunResponse is the API view of a sync run
type SyncRunResponse struct {
	ID              string                  `json:"id"`
	Accounts        []marketplace.Account   `json:"accounts"`
	Mode            string                  `json:"mode"`
	Strategy        string                  `json:"strategy"`
	TriggeredBy     string                  `json:"triggered_by"`
	Status          string                  `json:"status"`
	StartedAt       time.Time               `json:"started_at"`
	CompletedAt     *time.Time              `json:"completed_at,omitempty"`
	DurationSeconds float64                 `json:"duration_seconds,omitempty"`
	Counts          marketplace.SyncCounts  `json:"counts"`
	ErrorCount      int                     `json:"error_count"`
	Errors          []marketplace.SyncError `json:"errors"`
}

func toSyncRunResponse(run *marketplace.SyncRun) SyncRunResponse {
	resp := SyncRunResponse{
		ID:          run.ID.String(),
		Accounts:    run.Accounts,
		Mode:        run.Mode.String(),
		Strategy:    run.Strategy.String(),
		TriggeredBy: string(run.TriggeredBy),
		Status:      run.Status.String(),
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Counts:      run.Counts,
		ErrorCount:  len(run.Errors),
		Errors:      run.Errors,
	}
	if resp.Errors == nil {
		resp.Errors = []marketplace.SyncError{}
	}
	if run.CompletedAt != nil {
		resp.DurationSeconds = run.CompletedAt.Sub(run.StartedAt).Seconds()
	}
	return resp
}

// ProductRecordResponse is the API view of one account's listing
type ProductRecordResponse struct {
	ID             string           `json:"id"`
	SKU            string           `json:"sku"`
	Account        string           `json:"account"`
	ExternalID     string           `json:"external_id"`
	Name           string           `json:"name"`
	Price          decimal.Decimal  `json:"price"`
	Currency       string           `json:"currency"`
	StockQuantity  int              `json:"stock_quantity"`
	PartNumberKey  *string          `json:"part_number_key,omitempty"`
	NumberOfOffers int              `json:"number_of_offers"`
	BuyBoxRank     *int             `json:"buy_box_rank,omitempty"`
	BestOfferPrice *decimal.Decimal `json:"best_offer_price,omitempty"`
	Status         string           `json:"status"`
	Category       string           `json:"category,omitempty"`
	Images         []string         `json:"images"`
	ModifiedAt     *time.Time       `json:"modified_at,omitempty"`
	SyncStatus     string           `json:"sync_status"`
	LastSyncedAt   *time.Time       `json:"last_synced_at,omitempty"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

func toProductRecordResponse(r *marketplace.ProductRecord) ProductRecordResponse {
	images := r.Images
	if images == nil {
		images = []string{}
	}
	return ProductRecordResponse{
		ID:             r.ID.String(),
		SKU:            r.SKU,
		Account:        r.Account.String(),
		ExternalID:     r.ExternalID,
		Name:           r.Name,
		Price:          r.Price,
		Currency:       r.Currency,
		StockQuantity:  r.StockQuantity,
		PartNumberKey:  r.PartNumberKey,
		NumberOfOffers: r.NumberOfOffers,
		BuyBoxRank:     r.BuyBoxRank,
		BestOfferPrice: r.BestOfferPrice,
		Status:         r.Status.String(),
		Category:       r.Category,
		Images:         images,
		ModifiedAt:     r.ModifiedAt,
		SyncStatus:     r.SyncStatus.String(),
		LastSyncedAt:   r.LastSyncedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// ProductRecordsResponse groups the records of one SKU by account
type ProductRecordsResponse struct {
	SKU  string                 `json:"sku"`
	Main *ProductRecordResponse `json:"main"`
	FBE  *ProductRecordResponse `json:"fbe"`
}

// PNKConsistencyResponse is the API view of a part number key comparison
type PNKConsistencyResponse struct {
	SKU          string     `json:"sku"`
	PNKMain      *string    `json:"pnk_main"`
	PNKFBE       *string    `json:"pnk_fbe"`
	IsConsistent bool       `json:"is_consistent"`
	Status       string     `json:"status"`
	CheckedAt    time.Time  `json:"checked_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

func toPNKConsistencyResponse(f *marketplace.PNKConsistencyFact) PNKConsistencyResponse {
	return PNKConsistencyResponse{
		SKU:          f.SKU,
		PNKMain:      f.PNKMain,
		PNKFBE:       f.PNKFBE,
		IsConsistent: f.IsConsistent,
		Status:       f.Status.String(),
		CheckedAt:    f.CheckedAt,
		ResolvedAt:   f.ResolvedAt,
	}
}

// CompetitionSnapshotResponse is the API view of one competition observation
type CompetitionSnapshotResponse struct {
	ID                  string           `json:"id"`
	SKU                 string           `json:"sku"`
	Account             string           `json:"account"`
	NumberOfOffers      int              `json:"number_of_offers"`
	YourRank            *int             `json:"your_rank,omitempty"`
	BestCompetitorPrice *decimal.Decimal `json:"best_competitor_price,omitempty"`
	YourPrice           decimal.Decimal  `json:"your_price"`
	PreviousOfferCount  int              `json:"previous_offer_count"`
	NewCompetitors      int              `json:"new_competitors"`
	RequiresAction      bool             `json:"requires_action"`
	PriceUndercut       bool             `json:"price_undercut"`
	DetectedAt          time.Time        `json:"detected_at"`
}

func toCompetitionSnapshotResponse(s *marketplace.CompetitionSnapshot) CompetitionSnapshotResponse {
	return CompetitionSnapshotResponse{
		ID:                  s.ID.String(),
		SKU:                 s.SKU,
		Account:             s.Account.String(),
		NumberOfOffers:      s.NumberOfOffers,
		YourRank:            s.YourRank,
		BestCompetitorPrice: s.BestCompetitorPrice,
		YourPrice:           s.YourPrice,
		PreviousOfferCount:  s.PreviousOfferCount,
		NewCompetitors:      s.NewCompetitors,
		RequiresAction:      s.RequiresAction,
		PriceUndercut:       s.IsPriceUndercut(),
		DetectedAt:          s.DetectedAt,
	}
}
