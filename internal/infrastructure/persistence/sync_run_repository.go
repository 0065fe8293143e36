package persistence

import (
	"context"
	"errors"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSyncRunRepository implements SyncRunRepository using GORM
type GormSyncRunRepository struct {
	db *gorm.DB
}

// NewGormSyncRunRepository creates a new GormSyncRunRepository
func NewGormSyncRunRepository(db *gorm.DB) *GormSyncRunRepository {
	return &GormSyncRunRepository{db: db}
}

// Create inserts a new run
func (r *GormSyncRunRepository) Create(ctx context.Context, run *marketplace.SyncRun) error {
	model := models.SyncRunModelFromDomain(run)
	return r.db.WithContext(ctx).Create(model).Error
}

// Save persists the current state of a run (progress checkpoints and finalization)
func (r *GormSyncRunRepository) Save(ctx context.Context, run *marketplace.SyncRun) error {
	model := models.SyncRunModelFromDomain(run)
	return r.db.WithContext(ctx).Save(model).Error
}

// FindByID finds a run by its ID
func (r *GormSyncRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*marketplace.SyncRun, error) {
	var model models.SyncRunModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, marketplace.ErrSyncRunNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindRecent returns up to limit runs, newest first
func (r *GormSyncRunRepository) FindRecent(ctx context.Context, limit int) ([]marketplace.SyncRun, error) {
	var runModels []models.SyncRunModel
	query := r.db.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&runModels).Error; err != nil {
		return nil, err
	}
	return toSyncRuns(runModels), nil
}

// FindByStatus returns every run in status, oldest first
func (r *GormSyncRunRepository) FindByStatus(ctx context.Context, status marketplace.RunStatus) ([]marketplace.SyncRun, error) {
	var runModels []models.SyncRunModel
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("started_at ASC").
		Find(&runModels).Error; err != nil {
		return nil, err
	}
	return toSyncRuns(runModels), nil
}

func toSyncRuns(runModels []models.SyncRunModel) []marketplace.SyncRun {
	runs := make([]marketplace.SyncRun, len(runModels))
	for i, model := range runModels {
		runs[i] = *model.ToDomain()
	}
	return runs
}

// Ensure GormSyncRunRepository implements SyncRunRepository
var _ marketplace.SyncRunRepository = (*GormSyncRunRepository)(nil)
