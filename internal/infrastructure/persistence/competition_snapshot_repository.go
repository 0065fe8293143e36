package persistence

import (
	"context"
	"errors"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCompetitionSnapshotRepository implements CompetitionSnapshotRepository using GORM.
// Snapshots are only ever inserted.
type GormCompetitionSnapshotRepository struct {
	db *gorm.DB
}

// NewGormCompetitionSnapshotRepository creates a new GormCompetitionSnapshotRepository
func NewGormCompetitionSnapshotRepository(db *gorm.DB) *GormCompetitionSnapshotRepository {
	return &GormCompetitionSnapshotRepository{db: db}
}

// Append inserts a snapshot
func (r *GormCompetitionSnapshotRepository) Append(ctx context.Context, snapshot *marketplace.CompetitionSnapshot) error {
	model := models.CompetitionSnapshotModelFromDomain(snapshot)
	return r.db.WithContext(ctx).Create(model).Error
}

// FindLatest returns the newest snapshot for (sku, account), or nil when there is none
func (r *GormCompetitionSnapshotRepository) FindLatest(ctx context.Context, sku string, account marketplace.Account) (*marketplace.CompetitionSnapshot, error) {
	var model models.CompetitionSnapshotModel
	if err := r.db.WithContext(ctx).
		Where("sku = ? AND account = ?", sku, account).
		Order("detected_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindHistory returns up to limit snapshots for (sku, account), newest first
func (r *GormCompetitionSnapshotRepository) FindHistory(ctx context.Context, sku string, account marketplace.Account, limit int) ([]marketplace.CompetitionSnapshot, error) {
	var snapshotModels []models.CompetitionSnapshotModel
	query := r.db.WithContext(ctx).
		Where("sku = ? AND account = ?", sku, account).
		Order("detected_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&snapshotModels).Error; err != nil {
		return nil, err
	}

	snapshots := make([]marketplace.CompetitionSnapshot, len(snapshotModels))
	for i, model := range snapshotModels {
		snapshots[i] = *model.ToDomain()
	}
	return snapshots, nil
}

// Ensure GormCompetitionSnapshotRepository implements CompetitionSnapshotRepository
var _ marketplace.CompetitionSnapshotRepository = (*GormCompetitionSnapshotRepository)(nil)
