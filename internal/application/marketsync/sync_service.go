package marketsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/domain/shared"
	applog "github.com/erp/marketsync/internal/infrastructure/logger"
	"github.com/erp/marketsync/internal/infrastructure/telemetry"
)

const (
	// finalizeTimeout bounds the final run write, which runs on a fresh context
	finalizeTimeout = 10 * time.Second
	// lockKeyPrefix scopes sync locks by account
	lockKeyPrefix = "sync:lock:"
	tracerName    = "github.com/erp/marketsync/internal/application/marketsync"
)

// errPageExhausted marks a page skipped after its retries ran out
var errPageExhausted = errors.New("marketsync: page retries exhausted")

// SyncService is the sync orchestrator. It pages each requested account through
// the catalog client, merges items into the record store through the conflict
// resolver, and keeps exactly one SyncRun per invocation.
type SyncService struct {
	client   marketplace.CatalogClient
	txScope  TransactionScope
	runRepo  marketplace.SyncRunRepository
	locker   SyncLocker
	logger   *zap.Logger
	retry    marketplace.RetryPolicy
	defaults SyncDefaults
	metrics  MetricsRecorder
	tracer   trace.Tracer
	validate *validator.Validate
	now      func() time.Time
}

// SyncServiceOption configures a SyncService
type SyncServiceOption func(*SyncService)

// WithRetryPolicy sets the per-page retry policy
func WithRetryPolicy(p marketplace.RetryPolicy) SyncServiceOption {
	return func(s *SyncService) {
		s.retry = p
	}
}

// WithSyncDefaults sets the values applied to zero request fields
func WithSyncDefaults(d SyncDefaults) SyncServiceOption {
	return func(s *SyncService) {
		s.defaults = d
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m MetricsRecorder) SyncServiceOption {
	return func(s *SyncService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer used for run and page spans
func WithTracer(t trace.Tracer) SyncServiceOption {
	return func(s *SyncService) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) SyncServiceOption {
	return func(s *SyncService) {
		s.now = now
	}
}

// NewSyncService creates a new SyncService
func NewSyncService(
	client marketplace.CatalogClient,
	txScope TransactionScope,
	runRepo marketplace.SyncRunRepository,
	locker SyncLocker,
	logger *zap.Logger,
	opts ...SyncServiceOption,
) *SyncService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &SyncService{
		client:   client,
		txScope:  txScope,
		runRepo:  runRepo,
		locker:   locker,
		logger:   logger,
		retry:    marketplace.DefaultRetryPolicy(),
		defaults: DefaultSyncDefaults(),
		metrics:  noopMetrics{},
		tracer:   otel.Tracer(tracerName),
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ---------------------------------------------------------------------------
// Sync
// ---------------------------------------------------------------------------

// Sync runs one synchronization. The returned run is never RUNNING: it is
// COMPLETED, or FAILED alongside a non-nil error. ErrSyncAlreadyRunning is
// returned without a run when any requested account is being synced.
func (s *SyncService) Sync(ctx context.Context, req SyncRequest) (*marketplace.SyncRun, error) {
	req, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	// the lock must outlive the run deadline and the final write
	lockTTL := max(s.defaults.LockTTL, req.Timeout+finalizeTimeout)
	locks, err := s.acquireLocks(ctx, req.Accounts, lockTTL)
	if err != nil {
		return nil, err
	}
	defer s.releaseLocks(ctx, locks)

	ctx, span := s.tracer.Start(ctx, "marketsync.Sync", trace.WithAttributes(
		attribute.String("sync.accounts", marketplace.AccountSetKey(req.Accounts)),
		attribute.String(telemetry.SpanAttrMode, req.Mode.String()),
		attribute.String(telemetry.SpanAttrStrategy, req.Strategy.String()),
	))
	defer span.End()

	run, err := marketplace.NewSyncRun(req.Accounts, req.Mode, req.Strategy, req.TriggeredBy, s.now())
	if err != nil {
		return nil, translateError(err)
	}
	if err := s.runRepo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create sync run: %w", err)
	}
	span.SetAttributes(attribute.String(telemetry.SpanAttrRunID, run.ID.String()))

	ctx, logger := applog.WithRunID(ctx, s.logger, run.ID.String())
	logger.Info("Starting marketplace sync",
		zap.String("accounts", marketplace.AccountSetKey(req.Accounts)),
		zap.String("mode", req.Mode.String()),
		zap.String("strategy", req.Strategy.String()),
		zap.Int("page_size", req.PageSize),
		zap.Int("max_pages", req.MaxPages),
		zap.Duration("timeout", req.Timeout),
	)

	runCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	rec := &runRecorder{run: run, now: s.now, repo: s.runRepo, logger: logger}
	execErr := s.execute(runCtx, req, rec, logger)

	resultErr := s.finalize(ctx, runCtx, req, rec, execErr, logger)
	telemetry.RecordError(span, resultErr)
	return run, resultErr
}

// normalize validates the request and fills defaults
func (s *SyncService) normalize(req SyncRequest) (SyncRequest, error) {
	if len(req.Accounts) == 0 {
		req.Accounts = marketplace.AllAccounts()
	}
	if err := s.validate.Struct(req); err != nil {
		return req, shared.WrapDomainError("INVALID_INPUT", fmt.Errorf("invalid sync request: %w", err))
	}

	req.Accounts = dedupeAccounts(req.Accounts)
	if req.Mode == "" {
		req.Mode = marketplace.SyncModeFull
	}
	if req.PageSize == 0 {
		req.PageSize = s.defaults.PageSize
	}
	if req.MaxPages == 0 {
		req.MaxPages = s.defaults.MaxPages
	}
	if req.Timeout <= 0 {
		req.Timeout = s.defaults.Timeout
	}
	if req.Strategy == "" {
		req.Strategy = s.defaults.Strategy
	}
	if req.Strategy == "" {
		req.Strategy = marketplace.DefaultConflictStrategy
	}
	if req.TriggeredBy == "" {
		req.TriggeredBy = marketplace.TriggerManual
	}
	if req.PageSize <= 0 {
		return req, translateError(marketplace.ErrInvalidPageSize)
	}
	return req, nil
}

// execute runs one task per account and waits for all of them. The group is
// not bound to a shared context: an aborted account never cancels the other.
func (s *SyncService) execute(ctx context.Context, req SyncRequest, rec *runRecorder, logger *zap.Logger) error {
	var g errgroup.Group
	for _, account := range req.Accounts {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("%w: %s: %v", ErrSyncPanicked, account, r)
					logger.Error("Account sync panicked", zap.String("account", account.String()), zap.Any("panic", r))
				}
			}()
			return s.syncAccount(ctx, account, req, rec, logger.With(zap.String("account", account.String())))
		})
	}
	return g.Wait()
}

// finalize writes the terminal run state exactly once, on a context that
// survives the run timeout and caller cancellation.
func (s *SyncService) finalize(
	ctx, runCtx context.Context,
	req SyncRequest,
	rec *runRecorder,
	execErr error,
	logger *zap.Logger,
) error {
	finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	run := rec.run
	now := s.now()

	// an expired deadline wins over a nil execErr: work may have been cut short
	var resultErr error
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		_ = run.TimeOut(req.Timeout, now)
		resultErr = fmt.Errorf("%w after %s", ErrSyncTimeout, req.Timeout)
	case execErr == nil:
		_ = run.Complete(now)
	case ctx.Err() != nil:
		_ = run.Fail(marketplace.ErrorContextRun, "sync cancelled: "+ctx.Err().Error(), now)
		resultErr = ctx.Err()
	default:
		_ = run.Fail(marketplace.ErrorContextRun, execErr.Error(), now)
		resultErr = translateError(execErr)
	}

	if err := s.runRepo.Save(finalCtx, run); err != nil {
		logger.Error("Failed to persist finalized sync run", zap.Error(err))
		resultErr = errors.Join(resultErr, fmt.Errorf("save sync run: %w", err))
	}

	s.metrics.RecordRun(finalCtx, run.Status, run.Duration())

	fields := []zap.Field{
		zap.String("status", run.Status.String()),
		zap.Duration("duration", run.Duration()),
		zap.Int("processed", run.Counts.Processed),
		zap.Int("created", run.Counts.Created),
		zap.Int("updated", run.Counts.Updated),
		zap.Int("unchanged", run.Counts.Unchanged),
		zap.Int("failed", run.Counts.Failed),
		zap.Int("errors", len(run.Errors)),
	}
	if run.Status == marketplace.RunStatusCompleted {
		logger.Info("Marketplace sync completed", fields...)
	} else {
		logger.Warn("Marketplace sync failed", append(fields, zap.Error(resultErr))...)
	}
	return resultErr
}

// ---------------------------------------------------------------------------
// Per-account pagination
// ---------------------------------------------------------------------------

// syncAccount pages one account from page 1. Pages are strictly sequential:
// a short page ends the loop, so its size must be known before asking for the next.
func (s *SyncService) syncAccount(ctx context.Context, account marketplace.Account, req SyncRequest, rec *runRecorder, logger *zap.Logger) error {
	logger.Info("Starting account sync")

	pages := 0
	for pageNo := 1; pageNo <= req.MaxPages; pageNo++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := s.fetchPage(ctx, account, pageNo, req, rec, logger)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, errPageExhausted):
			logger.Warn("Skipping page after retries", zap.Int("page", pageNo), zap.Error(err))
			telemetry.AddEvent(trace.SpanFromContext(ctx), "page.skipped",
				telemetry.SpanAttrAccount, account,
				telemetry.SpanAttrPage, pageNo,
			)
			if err := sleepContext(ctx, s.defaults.PageDelay); err != nil {
				return err
			}
			continue
		default:
			rec.recordError(account.String(), fmt.Sprintf("page %d: %v", pageNo, err))
			logger.Error("Aborting account sync", zap.Int("page", pageNo), zap.Error(err))
			return fmt.Errorf("account %s page %d: %w", account, pageNo, err)
		}

		pages++
		counts := s.processBatch(ctx, account, page.Items, req.Strategy, rec)
		rec.addCounts(counts)
		s.metrics.RecordItems(ctx, account, counts)
		rec.checkpoint(ctx)
		// a batch cut short by the deadline must not read as the last page
		if err := ctx.Err(); err != nil {
			return err
		}

		logger.Debug("Processed catalog page",
			zap.Int("page", pageNo),
			zap.Int("items", len(page.Items)),
			zap.Int("created", counts.Created),
			zap.Int("updated", counts.Updated),
			zap.Int("failed", counts.Failed),
		)

		if page.IsLast(req.PageSize) {
			break
		}
		if pageNo < req.MaxPages {
			if err := sleepContext(ctx, s.defaults.PageDelay); err != nil {
				return err
			}
		}
	}

	logger.Info("Account sync completed", zap.Int("pages", pages))
	return nil
}

// fetchPage fetches one page, retrying transient failures under the retry policy.
// Every transient failure is recorded on the run.
func (s *SyncService) fetchPage(
	ctx context.Context,
	account marketplace.Account,
	pageNo int,
	req SyncRequest,
	rec *runRecorder,
	logger *zap.Logger,
) (*marketplace.CatalogPage, error) {
	pageReq := marketplace.CatalogPageRequest{
		Page:            pageNo,
		PageSize:        req.PageSize,
		IncludeInactive: req.IncludeInactive,
	}

	for attempt := 1; ; attempt++ {
		ctx, span := s.tracer.Start(ctx, "marketsync.FetchCatalogPage", trace.WithAttributes(
			attribute.String(telemetry.SpanAttrAccount, account.String()),
			attribute.Int(telemetry.SpanAttrPage, pageNo),
			attribute.Int("sync.attempt", attempt),
		))
		page, err := s.client.FetchCatalogPage(ctx, account, pageReq)
		telemetry.RecordError(span, err)
		span.End()

		if err == nil {
			return page, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		transient := s.retry.IsRetryable(err)
		s.metrics.RecordPageError(ctx, account, transient)
		if !transient {
			return nil, err
		}

		rec.recordError(fmt.Sprintf("%s/page-%d", account, pageNo), fmt.Sprintf("attempt %d: %v", attempt, err))
		if !s.retry.ShouldRetry(err, attempt) {
			return nil, fmt.Errorf("%w: page %d after %d attempts: %v", errPageExhausted, pageNo, attempt, err)
		}

		logger.Warn("Transient catalog error, retrying",
			zap.Int("page", pageNo),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		if err := sleepContext(ctx, s.retry.Delay(attempt)); err != nil {
			return nil, err
		}
	}
}

// ---------------------------------------------------------------------------
// Run history
// ---------------------------------------------------------------------------

// GetRun returns one run by id
func (s *SyncService) GetRun(ctx context.Context, id uuid.UUID) (*marketplace.SyncRun, error) {
	run, err := s.runRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, marketplace.ErrSyncRunNotFound) {
			return nil, ErrSyncRunNotFound
		}
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first
func (s *SyncService) ListRuns(ctx context.Context, limit int) ([]marketplace.SyncRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.runRepo.FindRecent(ctx, limit)
}

// RecoverStaleRuns fails RUNNING runs older than maxAge. Such runs were left
// behind by a process that stopped before finalizing them.
func (s *SyncService) RecoverStaleRuns(ctx context.Context, maxAge time.Duration) (int, error) {
	runs, err := s.runRepo.FindByStatus(ctx, marketplace.RunStatusRunning)
	if err != nil {
		return 0, err
	}

	now := s.now()
	recovered := 0
	for i := range runs {
		run := &runs[i]
		if now.Sub(run.StartedAt) < maxAge {
			continue
		}
		if err := run.Fail(marketplace.ErrorContextRun, "process stopped before the run was finalized", now); err != nil {
			continue
		}
		if err := s.runRepo.Save(ctx, run); err != nil {
			return recovered, fmt.Errorf("save recovered run %s: %w", run.ID, err)
		}
		s.metrics.RecordRun(ctx, run.Status, run.Duration())
		recovered++
	}

	if recovered > 0 {
		s.logger.Warn("Recovered stale sync runs", zap.Int("count", recovered))
	}
	return recovered, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// LockKey returns the single-flight lock key for one account
func LockKey(account marketplace.Account) string {
	return lockKeyPrefix + account.String()
}

// acquireLocks takes one lock per account in sorted key order, so runs over
// overlapping account sets exclude each other without deadlocking. On
// contention the locks already taken are released.
func (s *SyncService) acquireLocks(ctx context.Context, accounts []marketplace.Account, ttl time.Duration) ([]SyncLock, error) {
	keys := make([]string, 0, len(accounts))
	for _, a := range accounts {
		keys = append(keys, LockKey(a))
	}
	sort.Strings(keys)

	locks := make([]SyncLock, 0, len(keys))
	for _, key := range keys {
		lock, err := s.locker.Obtain(ctx, key, ttl)
		if err != nil {
			s.releaseLocks(ctx, locks)
			if errors.Is(err, ErrLockNotObtained) {
				return nil, ErrSyncAlreadyRunning
			}
			return nil, fmt.Errorf("obtain sync lock %s: %w", key, err)
		}
		locks = append(locks, lock)
	}
	return locks, nil
}

// releaseLocks releases in reverse order on a context that survives cancellation
func (s *SyncService) releaseLocks(ctx context.Context, locks []SyncLock) {
	if len(locks) == 0 {
		return
	}
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	for i := len(locks) - 1; i >= 0; i-- {
		if err := locks[i].Release(releaseCtx); err != nil {
			s.logger.Warn("Failed to release sync lock", zap.Error(err))
		}
	}
}

func dedupeAccounts(accounts []marketplace.Account) []marketplace.Account {
	seen := make(map[marketplace.Account]struct{}, len(accounts))
	out := make([]marketplace.Account, 0, len(accounts))
	for _, a := range accounts {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// runRecorder serializes run mutations from concurrent account tasks
type runRecorder struct {
	mu     sync.Mutex
	run    *marketplace.SyncRun
	now    func() time.Time
	repo   marketplace.SyncRunRepository
	logger *zap.Logger
}

func (r *runRecorder) recordError(context, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run.RecordError(context, message, r.now())
}

func (r *runRecorder) addCounts(c marketplace.SyncCounts) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run.AddCounts(c)
	r.run.UpdatedAt = r.now()
}

// checkpoint persists progress so run history shows counts while RUNNING
func (r *runRecorder) checkpoint(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.run.IsFinalized() || ctx.Err() != nil {
		return
	}
	if err := r.repo.Save(ctx, r.run); err != nil {
		r.logger.Debug("Failed to checkpoint sync run", zap.Error(err))
	}
}
