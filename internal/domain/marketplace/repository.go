package marketplace

import (
	"context"

	"github.com/google/uuid"
)

// ProductRecordReader provides read access to product records
type ProductRecordReader interface {
	// FindBySKUAndAccount returns ErrRecordNotFound when the pair is unknown
	FindBySKUAndAccount(ctx context.Context, sku string, account Account) (*ProductRecord, error)
	// FindBySKU returns the records of every account listing sku
	FindBySKU(ctx context.Context, sku string) ([]ProductRecord, error)
}

// ProductRecordWriter provides write access to product records
type ProductRecordWriter interface {
	Create(ctx context.Context, record *ProductRecord) error
	Update(ctx context.Context, record *ProductRecord) error
}

// ProductRecordRepository is the keyed record store for (SKU, Account)
type ProductRecordRepository interface {
	ProductRecordReader
	ProductRecordWriter
}

// SyncRunRepository stores sync run history
type SyncRunRepository interface {
	Create(ctx context.Context, run *SyncRun) error
	Save(ctx context.Context, run *SyncRun) error
	// FindByID returns ErrSyncRunNotFound when the run is unknown
	FindByID(ctx context.Context, id uuid.UUID) (*SyncRun, error)
	// FindRecent returns the newest runs first
	FindRecent(ctx context.Context, limit int) ([]SyncRun, error)
	FindByStatus(ctx context.Context, status RunStatus) ([]SyncRun, error)
}

// PNKFactRepository stores one PNKConsistencyFact per SKU
type PNKFactRepository interface {
	// FindBySKU returns nil, nil when no fact exists yet
	FindBySKU(ctx context.Context, sku string) (*PNKConsistencyFact, error)
	// Upsert inserts or replaces the fact keyed by SKU
	Upsert(ctx context.Context, fact *PNKConsistencyFact) error
}

// CompetitionSnapshotRepository is the append-only competition history
type CompetitionSnapshotRepository interface {
	Append(ctx context.Context, snapshot *CompetitionSnapshot) error
	// FindLatest returns nil, nil when there is no prior snapshot
	FindLatest(ctx context.Context, sku string, account Account) (*CompetitionSnapshot, error)
	// FindHistory returns the newest snapshots first
	FindHistory(ctx context.Context, sku string, account Account, limit int) ([]CompetitionSnapshot, error)
}
