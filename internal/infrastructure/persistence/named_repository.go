package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/catalog"
	"github.com/shop/backend/internal/domain/shared"
	"github.com/shop/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// namedModel is the persistence model of a deduplicated catalog entity E.
type namedModel[E any, M any] interface {
	*M
	ToDomain() *E
	FromDomain(*E)
	ScopeColumn() string
}

// GormNamedRepository implements catalog.NamedRepository for any entity
// whose model embeds models.NamingModel.
type GormNamedRepository[E any, M any, PM namedModel[E, M]] struct {
	db   *gorm.DB
	kind catalog.Kind
}

func newNamedRepository[E any, M any, PM namedModel[E, M]](db *gorm.DB, kind catalog.Kind) *GormNamedRepository[E, M, PM] {
	return &GormNamedRepository[E, M, PM]{db: db, kind: kind}
}

// NewGormBrandRepository creates a brand repository.
func NewGormBrandRepository(db *gorm.DB) *GormNamedRepository[catalog.Brand, models.BrandModel, *models.BrandModel] {
	return newNamedRepository[catalog.Brand, models.BrandModel, *models.BrandModel](db, catalog.KindBrand)
}

// NewGormAttributeRepository creates an attribute repository.
func NewGormAttributeRepository(db *gorm.DB) *GormNamedRepository[catalog.Attribute, models.AttributeModel, *models.AttributeModel] {
	return newNamedRepository[catalog.Attribute, models.AttributeModel, *models.AttributeModel](db, catalog.KindAttribute)
}

// NewGormAttributeValueRepository creates an attribute value repository.
func NewGormAttributeValueRepository(db *gorm.DB) *GormNamedRepository[catalog.AttributeValue, models.AttributeValueModel, *models.AttributeValueModel] {
	return newNamedRepository[catalog.AttributeValue, models.AttributeValueModel, *models.AttributeValueModel](db, catalog.KindAttributeValue)
}

// NewGormPriceTypeRepository creates a price type repository.
func NewGormPriceTypeRepository(db *gorm.DB) *GormNamedRepository[catalog.PriceType, models.PriceTypeModel, *models.PriceTypeModel] {
	return newNamedRepository[catalog.PriceType, models.PriceTypeModel, *models.PriceTypeModel](db, catalog.KindPriceType)
}

// FindByID finds an entity by its ID
func (r *GormNamedRepository[E, M, PM]) FindByID(ctx context.Context, id uuid.UUID) (*E, error) {
	model := PM(new(M))
	if err := r.db.WithContext(ctx).First(model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveByKey finds the active entity with the given normalized name
// inside scope. The scope is ignored for globally unique kinds.
func (r *GormNamedRepository[E, M, PM]) FindActiveByKey(ctx context.Context, scope, key string) (*E, error) {
	model := PM(new(M))
	query := r.db.WithContext(ctx).Where("normalized_name = ? AND is_active = ?", key, true)
	if col := model.ScopeColumn(); col != "" {
		query = query.Where(col+" = ?", scope)
	}
	if err := query.First(model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts e inside a savepoint so a duplicate key does not abort the
// caller's transaction.
func (r *GormNamedRepository[E, M, PM]) Create(ctx context.Context, e *E) error {
	model := PM(new(M))
	model.FromDomain(e)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	return translateError(err)
}

// Save updates every column of e.
func (r *GormNamedRepository[E, M, PM]) Save(ctx context.Context, e *E) error {
	model := PM(new(M))
	model.FromDomain(e)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Save(model).Error
	})
	return translateError(err)
}

// Delete removes the entity and its external mappings in one transaction.
func (r *GormNamedRepository[E, M, PM]) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteMappings(tx, r.kind, id); err != nil {
			return err
		}
		result := tx.Delete(PM(new(M)), "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// Count returns the number of rows, active or not.
func (r *GormNamedRepository[E, M, PM]) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(PM(new(M))).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Ensure the generic repository satisfies each catalog contract
var (
	_ catalog.BrandRepository          = (*GormNamedRepository[catalog.Brand, models.BrandModel, *models.BrandModel])(nil)
	_ catalog.AttributeRepository      = (*GormNamedRepository[catalog.Attribute, models.AttributeModel, *models.AttributeModel])(nil)
	_ catalog.AttributeValueRepository = (*GormNamedRepository[catalog.AttributeValue, models.AttributeValueModel, *models.AttributeValueModel])(nil)
	_ catalog.PriceTypeRepository      = (*GormNamedRepository[catalog.PriceType, models.PriceTypeModel, *models.PriceTypeModel])(nil)
)
