package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/shared"
	"github.com/shop/backend/internal/domain/trade"
	"github.com/shop/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormExportBatchRepository implements trade.ExportBatchRepository using GORM
type GormExportBatchRepository struct {
	db *gorm.DB
}

// NewGormExportBatchRepository creates a new GormExportBatchRepository
func NewGormExportBatchRepository(db *gorm.DB) *GormExportBatchRepository {
	return &GormExportBatchRepository{db: db}
}

// FindByID finds a batch and its order ids
func (r *GormExportBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.ExportBatch, error) {
	var model models.ExportBatchModel
	if err := r.db.WithContext(ctx).Preload("Orders").First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts the batch together with its order links
func (r *GormExportBatchRepository) Create(ctx context.Context, b *trade.ExportBatch) error {
	model := &models.ExportBatchModel{}
	model.FromDomain(b)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	return translateError(err)
}

// Save writes the acknowledgement state. The order list of a batch is immutable.
func (r *GormExportBatchRepository) Save(ctx context.Context, b *trade.ExportBatch) error {
	result := r.db.WithContext(ctx).
		Model(&models.ExportBatchModel{}).
		Where("id = ?", b.ID).
		Updates(map[string]any{
			"acknowledged_at": b.AcknowledgedAt,
			"updated_at":      b.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// PendingOrderIDs returns orders included in a batch the ERP has not acknowledged
func (r *GormExportBatchRepository) PendingOrderIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Table(models.ExportBatchOrderModel{}.TableName()+" AS bo").
		Joins("JOIN "+models.ExportBatchModel{}.TableName()+" AS b ON b.id = bo.batch_id").
		Where("b.acknowledged_at IS NULL").
		Distinct("bo.order_id").
		Pluck("bo.order_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Ensure GormExportBatchRepository implements ExportBatchRepository
var _ trade.ExportBatchRepository = (*GormExportBatchRepository)(nil)
