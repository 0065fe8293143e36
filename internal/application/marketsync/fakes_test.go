package marketsync

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/erp/marketsync/internal/domain/marketplace"
)

// ---------------------------------------------------------------------------
// Catalog client
// ---------------------------------------------------------------------------

type pageResponse struct {
	items []marketplace.RawItem
	err   error
}

// fakeCatalogClient serves scripted responses per account. Each call to a page
// consumes the next scripted response for it; the last one repeats.
type fakeCatalogClient struct {
	mu        sync.Mutex
	responses map[marketplace.Account]map[int][]pageResponse
	calls     map[marketplace.Account][]int
	block     bool
	panicOn   marketplace.Account
}

func newFakeCatalogClient() *fakeCatalogClient {
	return &fakeCatalogClient{
		responses: make(map[marketplace.Account]map[int][]pageResponse),
		calls:     make(map[marketplace.Account][]int),
	}
}

func (f *fakeCatalogClient) on(account marketplace.Account, page int, responses ...pageResponse) *fakeCatalogClient {
	if f.responses[account] == nil {
		f.responses[account] = make(map[int][]pageResponse)
	}
	f.responses[account][page] = append(f.responses[account][page], responses...)
	return f
}

func (f *fakeCatalogClient) FetchCatalogPage(ctx context.Context, account marketplace.Account, req marketplace.CatalogPageRequest) (*marketplace.CatalogPage, error) {
	f.mu.Lock()
	f.calls[account] = append(f.calls[account], req.Page)
	if account == f.panicOn {
		f.mu.Unlock()
		panic("client exploded")
	}
	if f.block {
		f.mu.Unlock()
		<-ctx.Done()
		return nil, &marketplace.ClientError{Account: account, Message: "request cancelled", Err: ctx.Err()}
	}

	queue := f.responses[account][req.Page]
	var resp pageResponse
	switch len(queue) {
	case 0:
	case 1:
		resp = queue[0]
	default:
		resp = queue[0]
		f.responses[account][req.Page] = queue[1:]
	}
	f.mu.Unlock()

	if resp.err != nil {
		return nil, resp.err
	}
	return &marketplace.CatalogPage{Items: resp.items, Page: req.Page, FetchedAt: time.Now()}, nil
}

func (f *fakeCatalogClient) pagesRequested(account marketplace.Account) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls[account]...)
}

func items(skus ...string) []marketplace.RawItem {
	out := make([]marketplace.RawItem, 0, len(skus))
	for _, sku := range skus {
		out = append(out, marketplace.RawItem(fmt.Sprintf(`{"part_number": %q, "stock": 5, "number_of_offers": 2, "sale_price": 10}`, sku)))
	}
	return out
}

func serverError(account marketplace.Account) error {
	return &marketplace.ClientError{Account: account, StatusCode: 503, Message: "service unavailable"}
}

// ---------------------------------------------------------------------------
// Record store and transaction scope
// ---------------------------------------------------------------------------

type recordKey struct {
	sku     string
	account marketplace.Account
}

type memRecordStore struct {
	mu        sync.Mutex
	records   map[recordKey]marketplace.ProductRecord
	failOnSKU string
}

func newMemRecordStore() *memRecordStore {
	return &memRecordStore{records: make(map[recordKey]marketplace.ProductRecord)}
}

func (m *memRecordStore) FindBySKUAndAccount(_ context.Context, sku string, account marketplace.Account) (*marketplace.ProductRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[recordKey{sku, account}]
	if !ok {
		return nil, marketplace.ErrRecordNotFound
	}
	return &r, nil
}

func (m *memRecordStore) FindBySKU(_ context.Context, sku string) ([]marketplace.ProductRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]marketplace.ProductRecord, 0, 2)
	for k, r := range m.records {
		if k.sku == sku {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account > out[j].Account })
	return out, nil
}

func (m *memRecordStore) Create(_ context.Context, r *marketplace.ProductRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.SKU == m.failOnSKU {
		return fmt.Errorf("constraint violation on %s", r.SKU)
	}
	m.records[recordKey{r.SKU, r.Account}] = *r
	return nil
}

func (m *memRecordStore) Update(ctx context.Context, r *marketplace.ProductRecord) error {
	return m.Create(ctx, r)
}

func (m *memRecordStore) get(sku string, account marketplace.Account) (marketplace.ProductRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[recordKey{sku, account}]
	return r, ok
}

func (m *memRecordStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type memTxScope struct {
	store *memRecordStore
}

func (s memTxScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s memTxScope) ProductRecords() marketplace.ProductRecordRepository {
	return s.store
}

// slowTxScope delays every item write
type slowTxScope struct {
	memTxScope
	delay time.Duration
}

func (s slowTxScope) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	time.Sleep(s.delay)
	return s.memTxScope.Execute(ctx, fn)
}

// ---------------------------------------------------------------------------
// Run repository
// ---------------------------------------------------------------------------

type memRunRepo struct {
	mu       sync.Mutex
	runs     map[uuid.UUID]marketplace.SyncRun
	statuses []marketplace.RunStatus
	creates  int
}

func newMemRunRepo() *memRunRepo {
	return &memRunRepo{runs: make(map[uuid.UUID]marketplace.SyncRun)}
}

func (m *memRunRepo) Create(_ context.Context, run *marketplace.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	m.runs[run.ID] = *run
	m.statuses = append(m.statuses, run.Status)
	return nil
}

func (m *memRunRepo) Save(_ context.Context, run *marketplace.SyncRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	m.statuses = append(m.statuses, run.Status)
	return nil
}

func (m *memRunRepo) FindByID(_ context.Context, id uuid.UUID) (*marketplace.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, marketplace.ErrSyncRunNotFound
	}
	return &run, nil
}

func (m *memRunRepo) FindRecent(_ context.Context, limit int) ([]marketplace.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]marketplace.SyncRun, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRunRepo) FindByStatus(_ context.Context, status marketplace.RunStatus) ([]marketplace.SyncRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]marketplace.SyncRun, 0)
	for _, r := range m.runs {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRunRepo) stored(id uuid.UUID) marketplace.SyncRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[id]
}

// ---------------------------------------------------------------------------
// Locker
// ---------------------------------------------------------------------------

type MockSyncLocker struct {
	mock.Mock
}

func (m *MockSyncLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (SyncLock, error) {
	args := m.Called(ctx, key, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(SyncLock), args.Error(1)
}

type MockSyncLock struct {
	mock.Mock
}

func (m *MockSyncLock) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

type recordingMetrics struct {
	noopMetrics
	mu        sync.Mutex
	runs      []marketplace.RunStatus
	recs      int
	transient int
}

func (r *recordingMetrics) RecordRun(_ context.Context, status marketplace.RunStatus, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, status)
}

func (r *recordingMetrics) RecordPageError(_ context.Context, _ marketplace.Account, transient bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if transient {
		r.transient++
	}
}

func (r *recordingMetrics) RecordRecommendations(_ context.Context, recs []marketplace.Recommendation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs += len(recs)
}
