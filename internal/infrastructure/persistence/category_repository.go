package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/catalog"
	"github.com/shop/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCategoryRepository implements CategoryRepository using GORM
type GormCategoryRepository struct {
	*GormNamedRepository[catalog.Category, models.CategoryModel, *models.CategoryModel]
}

// NewGormCategoryRepository creates a new GormCategoryRepository
func NewGormCategoryRepository(db *gorm.DB) *GormCategoryRepository {
	return &GormCategoryRepository{
		GormNamedRepository: newNamedRepository[catalog.Category, models.CategoryModel, *models.CategoryModel](db, catalog.KindCategory),
	}
}

// FindChildren returns the direct children of parentID, or the root
// categories when parentID is nil.
func (r *GormCategoryRepository) FindChildren(ctx context.Context, parentID *uuid.UUID) ([]catalog.Category, error) {
	var rows []models.CategoryModel
	if err := r.db.WithContext(ctx).
		Where("tree_scope = ?", catalog.TreeScope(parentID)).
		Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	categories := make([]catalog.Category, len(rows))
	for i := range rows {
		categories[i] = *rows[i].ToDomain()
	}
	return categories, nil
}

// Ensure GormCategoryRepository implements CategoryRepository
var _ catalog.CategoryRepository = (*GormCategoryRepository)(nil)
