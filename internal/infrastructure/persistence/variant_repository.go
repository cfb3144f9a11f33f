package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/catalog"
	"github.com/shop/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormVariantRepository implements VariantRepository using GORM
type GormVariantRepository struct {
	*GormNamedRepository[catalog.ProductVariant, models.VariantModel, *models.VariantModel]
}

// NewGormVariantRepository creates a new GormVariantRepository
func NewGormVariantRepository(db *gorm.DB) *GormVariantRepository {
	return &GormVariantRepository{
		GormNamedRepository: newNamedRepository[catalog.ProductVariant, models.VariantModel, *models.VariantModel](db, catalog.KindVariant),
	}
}

// FindByProduct returns every variant of a product in creation order.
func (r *GormVariantRepository) FindByProduct(ctx context.Context, productID uuid.UUID) ([]catalog.ProductVariant, error) {
	var rows []models.VariantModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	variants := make([]catalog.ProductVariant, len(rows))
	for i := range rows {
		variants[i] = *rows[i].ToDomain()
	}
	return variants, nil
}

// SetAttributeValues replaces the attribute values linked to a variant.
func (r *GormVariantRepository) SetAttributeValues(ctx context.Context, variantID uuid.UUID, valueIDs []uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("variant_id = ?", variantID).Delete(&models.VariantAttributeValueModel{}).Error; err != nil {
			return err
		}
		links := make([]models.VariantAttributeValueModel, 0, len(valueIDs))
		for _, id := range dedupIDs(valueIDs) {
			links = append(links, models.VariantAttributeValueModel{VariantID: variantID, AttributeValueID: id})
		}
		if len(links) == 0 {
			return nil
		}
		return tx.Create(&links).Error
	})
}

// Ensure GormVariantRepository implements VariantRepository
var _ catalog.VariantRepository = (*GormVariantRepository)(nil)
