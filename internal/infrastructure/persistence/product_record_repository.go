package persistence

import (
	"context"
	"errors"

	"github.com/erp/marketsync/internal/domain/marketplace"
	"github.com/erp/marketsync/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormProductRecordRepository implements ProductRecordRepository using GORM
type GormProductRecordRepository struct {
	db *gorm.DB
}

// NewGormProductRecordRepository creates a new GormProductRecordRepository
func NewGormProductRecordRepository(db *gorm.DB) *GormProductRecordRepository {
	return &GormProductRecordRepository{db: db}
}

// ---------------------------------------------------------------------------
// ProductRecordReader implementation
// ---------------------------------------------------------------------------

// FindBySKUAndAccount finds the record of sku on account
func (r *GormProductRecordRepository) FindBySKUAndAccount(ctx context.Context, sku string, account marketplace.Account) (*marketplace.ProductRecord, error) {
	var model models.ProductRecordModel
	if err := r.db.WithContext(ctx).
		Where("sku = ? AND account = ?", sku, account).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, marketplace.ErrRecordNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindBySKU finds the records of every account listing sku
func (r *GormProductRecordRepository) FindBySKU(ctx context.Context, sku string) ([]marketplace.ProductRecord, error) {
	var recordModels []models.ProductRecordModel
	if err := r.db.WithContext(ctx).
		Where("sku = ?", sku).
		Order("account ASC").
		Find(&recordModels).Error; err != nil {
		return nil, err
	}

	records := make([]marketplace.ProductRecord, len(recordModels))
	for i, model := range recordModels {
		records[i] = *model.ToDomain()
	}
	return records, nil
}

// ---------------------------------------------------------------------------
// ProductRecordWriter implementation
// ---------------------------------------------------------------------------

// Create inserts a new record
func (r *GormProductRecordRepository) Create(ctx context.Context, record *marketplace.ProductRecord) error {
	model := models.ProductRecordModelFromDomain(record)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update overwrites an existing record
func (r *GormProductRecordRepository) Update(ctx context.Context, record *marketplace.ProductRecord) error {
	model := models.ProductRecordModelFromDomain(record)
	result := r.db.WithContext(ctx).
		Model(&models.ProductRecordModel{}).
		Where("id = ?", record.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return marketplace.ErrRecordNotFound
	}
	return nil
}

// Ensure GormProductRecordRepository implements ProductRecordRepository
var _ marketplace.ProductRecordRepository = (*GormProductRecordRepository)(nil)
