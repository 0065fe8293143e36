package persistence

import (
	"context"
	"errors"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPNKFactRepository implements PNKFactRepository using GORM
type GormPNKFactRepository struct {
	db *gorm.DB
}

// NewGormPNKFactRepository creates a new GormPNKFactRepository
func NewGormPNKFactRepository(db *gorm.DB) *GormPNKFactRepository {
	return &GormPNKFactRepository{db: db}
}

// FindBySKU returns the fact for sku, or nil when none was recorded
func (r *GormPNKFactRepository) FindBySKU(ctx context.Context, sku string) (*marketplace.PNKConsistencyFact, error) {
	var model models.PNKFactModel
	if err := r.db.WithContext(ctx).Where("sku = ?", sku).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Upsert inserts the fact or replaces the row already stored for its SKU
func (r *GormPNKFactRepository) Upsert(ctx context.Context, fact *marketplace.PNKConsistencyFact) error {
	model := models.PNKFactModelFromDomain(fact)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "sku"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"pnk_main",
				"pnk_fbe",
				"is_consistent",
				"status",
				"checked_at",
				"resolved_at",
				"updated_at",
			}),
		}).
		Create(model).Error
}

// Ensure GormPNKFactRepository implements PNKFactRepository
var _ marketplace.PNKFactRepository = (*GormPNKFactRepository)(nil)
