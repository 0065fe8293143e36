package handler

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/erp/marketsync/internal/application/marketsync"
	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/infrastructure/scheduler"
	"github.com/erp/marketsync/internal/interfaces/http/dto"
)

// SyncService is the part of marketsync.SyncService the handler needs
type SyncService interface {
	Sync(ctx context.Context, req marketsync.SyncRequest) (*marketplace.SyncRun, error)
	GetRun(ctx context.Context, id uuid.UUID) (*marketplace.SyncRun, error)
	ListRuns(ctx context.Context, limit int) ([]marketplace.SyncRun, error)
}

// AnalysisService is the part of marketsync.AnalysisService the handler needs
type AnalysisService interface {
	Analyze(ctx context.Context, sku string) (*marketplace.StockAnalysis, error)
	SuggestTransfer(ctx context.Context, req marketsync.TransferRequest) (*marketplace.TransferSuggestion, error)
	GetRecords(ctx context.Context, sku string) ([]marketplace.ProductRecord, error)
}

// RelationshipService is the part of marketsync.RelationshipService the handler needs
type RelationshipService interface {
	CheckPNKConsistency(ctx context.Context, sku string) (*marketplace.PNKConsistencyFact, error)
	CheckCompetition(ctx context.Context, sku string, account marketplace.Account) (*marketplace.CompetitionSnapshot, error)
	CompetitionHistory(ctx context.Context, sku string, account marketplace.Account, limit int) ([]marketplace.CompetitionSnapshot, error)
}

// ScheduleReporter exposes the state of the scheduled sync trigger
type ScheduleReporter interface {
	Stats() scheduler.SyncTriggerStats
}

// Ensure the application services satisfy the handler ports
var (
	_ SyncService         = (*marketsync.SyncService)(nil)
	_ AnalysisService     = (*marketsync.AnalysisService)(nil)
	_ RelationshipService = (*marketsync.RelationshipService)(nil)
	_ ScheduleReporter    = (*scheduler.SyncTrigger)(nil)
)

const (
	defaultRunListLimit = 20
	defaultHistoryLimit = 50
)

// MarketplaceHandler handles marketplace sync, analysis and tracking endpoints
type MarketplaceHandler struct {
	BaseHandler
	sync          SyncService
	analysis      AnalysisService
	relationships RelationshipService
	schedule      ScheduleReporter
}

// NewMarketplaceHandler creates a new MarketplaceHandler. schedule may be nil
// when scheduled syncs are disabled.
func NewMarketplaceHandler(sync SyncService, analysis AnalysisService, relationships RelationshipService, schedule ScheduleReporter) *MarketplaceHandler {
	return &MarketplaceHandler{
		sync:          sync,
		analysis:      analysis,
		relationships: relationships,
		schedule:      schedule,
	}
}

// ---------------------------------------------------------------------------
// Sync
// ---------------------------------------------------------------------------

// TriggerSync runs a sync and answers with the finalized run.
// A failed run is returned as the data of an error response.
func (h *MarketplaceHandler) TriggerSync(c *gin.Context) {
	var req TriggerSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.BindError(c, err)
		return
	}

	appReq, err := req.toApplication()
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	// the run owns its timeout; a dropped client must not abort it half-written
	ctx := context.WithoutCancel(c.Request.Context())

	run, err := h.sync.Sync(ctx, appReq)
	if run == nil {
		if err == nil {
			h.InternalError(c, "Sync finished without a run")
			return
		}
		h.HandleError(c, err)
		return
	}
	if err != nil {
		h.HandleErrorWithData(c, err, toSyncRunResponse(run))
		return
	}
	h.Success(c, toSyncRunResponse(run))
}

func (r TriggerSyncRequest) toApplication() (marketsync.SyncRequest, error) {
	req := marketsync.SyncRequest{
		Mode:            marketplace.SyncMode(strings.ToUpper(r.Mode)),
		MaxPages:        r.MaxPages,
		PageSize:        r.PageSize,
		IncludeInactive: r.IncludeInactive,
		Timeout:         time.Duration(r.TimeoutSeconds) * time.Second,
		Strategy:        marketplace.ConflictStrategy(strings.ToUpper(r.Strategy)),
		TriggeredBy:     marketplace.TriggerManual,
	}
	for _, name := range r.Accounts {
		account, err := marketplace.ParseAccount(name)
		if err != nil {
			return req, errors.New("unknown account " + strconv.Quote(name))
		}
		req.Accounts = append(req.Accounts, account)
	}
	return req, nil
}

// ListRuns returns the most recent sync runs, newest first
func (h *MarketplaceHandler) ListRuns(c *gin.Context) {
	var req dto.LimitRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultRunListLimit
	}

	runs, err := h.sync.ListRuns(c.Request.Context(), req.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := make([]SyncRunResponse, 0, len(runs))
	for i := range runs {
		resp = append(resp, toSyncRunResponse(&runs[i]))
	}
	h.Success(c, resp)
}

// GetRun returns one sync run by id
func (h *MarketplaceHandler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid run ID format")
		return
	}

	run, err := h.sync.GetRun(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toSyncRunResponse(run))
}

// ScheduleStatus reports the scheduled sync trigger
func (h *MarketplaceHandler) ScheduleStatus(c *gin.Context) {
	if h.schedule == nil {
		h.Success(c, gin.H{"enabled": false})
		return
	}
	h.Success(c, gin.H{"enabled": true, "trigger": h.schedule.Stats()})
}

// ---------------------------------------------------------------------------
// Records and analysis
// ---------------------------------------------------------------------------

// GetProduct returns both account records of a SKU
func (h *MarketplaceHandler) GetProduct(c *gin.Context) {
	sku := c.Param("sku")
	records, err := h.analysis.GetRecords(c.Request.Context(), sku)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := ProductRecordsResponse{SKU: strings.TrimSpace(sku)}
	for i := range records {
		view := toProductRecordResponse(&records[i])
		switch records[i].Account {
		case marketplace.AccountMain:
			resp.Main = &view
		case marketplace.AccountFBE:
			resp.FBE = &view
		}
	}
	h.Success(c, resp)
}

// Analyze returns the stock distribution analysis of a SKU
func (h *MarketplaceHandler) Analyze(c *gin.Context) {
	analysis, err := h.analysis.Analyze(c.Request.Context(), c.Param("sku"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, analysis)
}

// SuggestTransfer projects a stock transfer between the two accounts without applying it
func (h *MarketplaceHandler) SuggestTransfer(c *gin.Context) {
	var req SuggestTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	from, err := marketplace.ParseAccount(req.From)
	if err != nil {
		h.BadRequest(c, "Invalid source account")
		return
	}
	to, err := marketplace.ParseAccount(req.To)
	if err != nil {
		h.BadRequest(c, "Invalid destination account")
		return
	}

	suggestion, err := h.analysis.SuggestTransfer(c.Request.Context(), marketsync.TransferRequest{
		SKU:    c.Param("sku"),
		From:   from,
		To:     to,
		Amount: req.Amount,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, suggestion)
}

// ---------------------------------------------------------------------------
// Relationship tracking
// ---------------------------------------------------------------------------

// CheckPNK compares the part number keys of a SKU across accounts and stores the result
func (h *MarketplaceHandler) CheckPNK(c *gin.Context) {
	fact, err := h.relationships.CheckPNKConsistency(c.Request.Context(), c.Param("sku"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toPNKConsistencyResponse(fact))
}

// CheckCompetition appends a competition snapshot for a SKU on one account
func (h *MarketplaceHandler) CheckCompetition(c *gin.Context) {
	account, err := marketplace.ParseAccount(c.Param("account"))
	if err != nil {
		h.BadRequest(c, "Invalid account")
		return
	}

	snapshot, err := h.relationships.CheckCompetition(c.Request.Context(), c.Param("sku"), account)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toCompetitionSnapshotResponse(snapshot))
}

// CompetitionHistory returns the newest competition snapshots for a SKU on one account
func (h *MarketplaceHandler) CompetitionHistory(c *gin.Context) {
	account, err := marketplace.ParseAccount(c.Param("account"))
	if err != nil {
		h.BadRequest(c, "Invalid account")
		return
	}
	var req dto.LimitRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}
	if req.Limit == 0 {
		req.Limit = defaultHistoryLimit
	}

	snapshots, err := h.relationships.CompetitionHistory(c.Request.Context(), c.Param("sku"), account, req.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := make([]CompetitionSnapshotResponse, 0, len(snapshots))
	for i := range snapshots {
		resp = append(resp, toCompetitionSnapshotResponse(&snapshots[i]))
	}
	h.Success(c, resp)
}

// RegisterRoutes mounts the marketplace endpoints under rg
func (h *MarketplaceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	mp := rg.Group("/marketplace")

	mp.POST("/sync", h.TriggerSync)
	mp.GET("/sync/runs", h.ListRuns)
	mp.GET("/sync/runs/:id", h.GetRun)
	mp.GET("/sync/schedule", h.ScheduleStatus)

	mp.GET("/products/:sku", h.GetProduct)
	mp.GET("/analysis/:sku", h.Analyze)
	mp.POST("/analysis/:sku/transfer", h.SuggestTransfer)

	mp.POST("/pnk/:sku/check", h.CheckPNK)
	mp.POST("/competition/:sku/:account/check", h.CheckCompetition)
	mp.GET("/competition/:sku/:account/history", h.CompetitionHistory)
}
