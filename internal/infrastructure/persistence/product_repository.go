package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/catalog"
	"github.com/shop/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormProductRepository implements ProductRepository using GORM
type GormProductRepository struct {
	*GormNamedRepository[catalog.Product, models.ProductModel, *models.ProductModel]
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{
		GormNamedRepository: newNamedRepository[catalog.Product, models.ProductModel, *models.ProductModel](db, catalog.KindProduct),
	}
}

// SetAttributeValues replaces the attribute values linked to a product.
func (r *GormProductRepository) SetAttributeValues(ctx context.Context, productID uuid.UUID, valueIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", productID).Delete(&models.ProductAttributeValueModel{}).Error; err != nil {
			return err
		}
		links := make([]models.ProductAttributeValueModel, 0, len(valueIDs))
		for _, id := range dedupIDs(valueIDs) {
			links = append(links, models.ProductAttributeValueModel{ProductID: productID, AttributeValueID: id})
		}
		if len(links) == 0 {
			return nil
		}
		return tx.Create(&links).Error
	})
}

// AttributeValueIDs returns the attribute values linked to a product.
func (r *GormProductRepository) AttributeValueIDs(ctx context.Context, productID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.ProductAttributeValueModel{}).
		Where("product_id = ?", productID).
		Pluck("attribute_value_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func dedupIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Ensure GormProductRepository implements ProductRepository
var _ catalog.ProductRepository = (*GormProductRepository)(nil)
