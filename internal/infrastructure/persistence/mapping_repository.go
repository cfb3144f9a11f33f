package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/catalog"
	"github.com/shop/backend/internal/domain/shared"
	"github.com/shop/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormMappingRepository implements MappingRepository over the per-kind
// <kind>_mappings tables.
type GormMappingRepository struct {
	db *gorm.DB
}

// NewGormMappingRepository creates a new GormMappingRepository
func NewGormMappingRepository(db *gorm.DB) *GormMappingRepository {
	return &GormMappingRepository{db: db}
}

func mappingTable(kind catalog.Kind) (string, error) {
	if !kind.IsValid() {
		return "", fmt.Errorf("%w: unknown mapping kind %q", shared.ErrInvalidInput, kind)
	}
	return kind.MappingTable(), nil
}

// FindByExternalID finds the mapping of an ERP identifier
func (r *GormMappingRepository) FindByExternalID(ctx context.Context, kind catalog.Kind, externalID string) (*catalog.ExternalMapping, error) {
	table, err := mappingTable(kind)
	if err != nil {
		return nil, err
	}
	var model models.MappingModel
	if err := r.db.WithContext(ctx).Table(table).
		Where("external_id = ?", externalID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByEntity lists every alias of a canonical entity
func (r *GormMappingRepository) FindByEntity(ctx context.Context, kind catalog.Kind, entityID uuid.UUID) ([]catalog.ExternalMapping, error) {
	table, err := mappingTable(kind)
	if err != nil {
		return nil, err
	}
	var rows []models.MappingModel
	if err := r.db.WithContext(ctx).Table(table).
		Where("entity_id = ?", entityID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	mappings := make([]catalog.ExternalMapping, len(rows))
	for i := range rows {
		mappings[i] = *rows[i].ToDomain()
	}
	return mappings, nil
}

// Create inserts a mapping inside a savepoint. A taken external id yields
// shared.ErrAlreadyExists.
func (r *GormMappingRepository) Create(ctx context.Context, kind catalog.Kind, m *catalog.ExternalMapping) error {
	table, err := mappingTable(kind)
	if err != nil {
		return err
	}
	model := models.MappingModelFromDomain(m)
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Table(table).Create(model).Error
	})
	return translateError(err)
}

// Repoint moves every mapping of one entity onto another
func (r *GormMappingRepository) Repoint(ctx context.Context, kind catalog.Kind, from, to uuid.UUID) (int64, error) {
	table, err := mappingTable(kind)
	if err != nil {
		return 0, err
	}
	result := r.db.WithContext(ctx).Table(table).
		Where("entity_id = ?", from).
		Update("entity_id", to)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// DeleteByEntity removes every mapping of an entity
func (r *GormMappingRepository) DeleteByEntity(ctx context.Context, kind catalog.Kind, entityID uuid.UUID) error {
	if _, err := mappingTable(kind); err != nil {
		return err
	}
	return deleteMappings(r.db.WithContext(ctx), kind, entityID)
}

func deleteMappings(tx *gorm.DB, kind catalog.Kind, entityID uuid.UUID) error {
	return tx.Table(kind.MappingTable()).
		Where("entity_id = ?", entityID).
		Delete(&models.MappingModel{}).Error
}

// Ensure GormMappingRepository implements MappingRepository
var _ catalog.MappingRepository = (*GormMappingRepository)(nil)
