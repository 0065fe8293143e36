package marketsync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/domain/shared"
	applog "github.com/erp/marketsync/internal/infrastructure/logger"
	"github.com/erp/marketsync/internal/infrastructure/telemetry"
)

// AnalysisService produces stock distribution recommendations from merged records
type AnalysisService struct {
	records  marketplace.ProductRecordReader
	policy   marketplace.Policy
	metrics  MetricsRecorder
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

// AnalysisServiceOption configures an AnalysisService
type AnalysisServiceOption func(*AnalysisService)

// WithAnalysisMetrics sets the recorder for produced recommendations
func WithAnalysisMetrics(m MetricsRecorder) AnalysisServiceOption {
	return func(s *AnalysisService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithAnalysisClock overrides time.Now
func WithAnalysisClock(now func() time.Time) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.now = now
	}
}

// NewAnalysisService creates a new AnalysisService
func NewAnalysisService(records marketplace.ProductRecordReader, policy marketplace.Policy, logger *zap.Logger, opts ...AnalysisServiceOption) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AnalysisService{
		records:  records,
		policy:   policy.WithDefaults(),
		metrics:  noopMetrics{},
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Analyze evaluates the distribution rules for sku across both accounts.
// A SKU listed on only one account is analyzed with the other side empty.
func (s *AnalysisService) Analyze(ctx context.Context, sku string) (*marketplace.StockAnalysis, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "analysis", "analyze",
		telemetry.WithAttribute(telemetry.SpanAttrSKU, sku),
	)
	defer span.End()

	main, fbe, err := s.loadPair(ctx, sku)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	analysis, err := marketplace.Analyze(sku, main, fbe, s.policy, s.now())
	if err != nil {
		err = translateError(err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span,
		"analysis.priority", analysis.Priority,
		"analysis.action_required", analysis.ActionRequired,
	)

	s.metrics.RecordRecommendations(ctx, analysis.Recommendations)
	if analysis.ActionRequired {
		applog.WithLogger(ctx, s.logger).Info("Stock analysis requires action",
			zap.String("sku", sku),
			zap.String("priority", analysis.Priority.String()),
			zap.Int("recommendations", len(analysis.Recommendations)),
		)
	}
	return analysis, nil
}

// SuggestTransfer projects a transfer without applying it. Amounts above the
// donor's stock are rejected with INSUFFICIENT_STOCK.
func (s *AnalysisService) SuggestTransfer(ctx context.Context, req TransferRequest) (*marketplace.TransferSuggestion, error) {
	req.SKU = strings.TrimSpace(req.SKU)
	req.From = marketplace.Account(strings.ToUpper(string(req.From)))
	req.To = marketplace.Account(strings.ToUpper(string(req.To)))
	if err := s.validate.Struct(req); err != nil {
		return nil, shared.WrapDomainError("INVALID_INPUT", fmt.Errorf("invalid transfer request: %w", err))
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "analysis", "suggest_transfer",
		telemetry.WithAttribute(telemetry.SpanAttrSKU, req.SKU),
		telemetry.WithAttribute("transfer.amount", req.Amount),
	)
	defer span.End()

	main, fbe, err := s.loadPair(ctx, req.SKU)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	byAccount := map[marketplace.Account]*marketplace.ProductRecord{
		marketplace.AccountMain: main,
		marketplace.AccountFBE:  fbe,
	}

	suggestion, err := marketplace.SuggestTransfer(req.SKU, req.From, req.To, req.Amount, byAccount[req.From], byAccount[req.To], s.policy)
	if err != nil {
		err = translateError(err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	if suggestion.HasWarnings() {
		applog.WithLogger(ctx, s.logger).Warn("Transfer suggestion has warnings",
			zap.String("sku", req.SKU),
			zap.String("from", req.From.String()),
			zap.Strings("warnings", suggestion.Warnings),
		)
	}
	return suggestion, nil
}

// GetRecords returns the stored records of sku on every account
func (s *AnalysisService) GetRecords(ctx context.Context, sku string) ([]marketplace.ProductRecord, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, translateError(marketplace.ErrInvalidSKU)
	}
	records, err := s.records.FindBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrProductNotFound
	}
	return records, nil
}

// loadPair returns the MAIN and FBE records of sku; either may be nil, not both
func (s *AnalysisService) loadPair(ctx context.Context, sku string) (*marketplace.ProductRecord, *marketplace.ProductRecord, error) {
	records, err := s.GetRecords(ctx, sku)
	if err != nil {
		return nil, nil, err
	}
	return splitByAccount(records)
}

func splitByAccount(records []marketplace.ProductRecord) (*marketplace.ProductRecord, *marketplace.ProductRecord, error) {
	var main, fbe *marketplace.ProductRecord
	for i := range records {
		switch records[i].Account {
		case marketplace.AccountMain:
			main = &records[i]
		case marketplace.AccountFBE:
			fbe = &records[i]
		}
	}
	if main == nil && fbe == nil {
		return nil, nil, ErrProductNotFound
	}
	return main, fbe, nil
}
