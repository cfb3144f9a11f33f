package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/catalog"
	"github.com/shop/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormImageRepository implements ImageRepository using GORM
type GormImageRepository struct {
	db *gorm.DB
}

// NewGormImageRepository creates a new GormImageRepository
func NewGormImageRepository(db *gorm.DB) *GormImageRepository {
	return &GormImageRepository{db: db}
}

// FindByProduct returns the images of a product by sort order
func (r *GormImageRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]catalog.ProductImage, error) {
	var rows []models.ProductImageModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("sort_order ASC, path ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	images := make([]catalog.ProductImage, len(rows))
	for i := range rows {
		images[i] = *rows[i].ToDomain()
	}
	return images, nil
}

// Upsert inserts img, or refreshes the row already stored for the same
// product and path. img.ID is replaced by the stored id on update.
func (r *GormImageRepository) Upsert(ctx context.Context, img *catalog.ProductImage) (bool, error) {
	var existing models.ProductImageModel
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND path = ?", img.ProductID, img.Path).
		First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		model := &models.ProductImageModel{}
		model.FromDomain(img)
		if err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Create(model).Error
		}); err != nil {
			return false, translateError(err)
		}
		return true, nil
	case err != nil:
		return false, err
	}

	img.ID = existing.ID
	img.CreatedAt = existing.CreatedAt
	img.UpdatedAt = time.Now().UTC()
	if err := r.db.WithContext(ctx).Model(&existing).Updates(map[string]any{
		"variant_id":  img.VariantID,
		"storage_key": img.StorageKey,
		"sort_order":  img.SortOrder,
		"updated_at":  img.UpdatedAt,
	}).Error; err != nil {
		return false, err
	}
	return false, nil
}

// Ensure GormImageRepository implements ImageRepository
var _ catalog.ImageRepository = (*GormImageRepository)(nil)
