package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/catalog"
)

// MappingModel is one row of a <kind>_mappings table. Repositories address
// the table explicitly with db.Table(kind.MappingTable()).
type MappingModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	EntityID     uuid.UUID `gorm:"type:uuid;not null;index"`
	ExternalID   string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	ExternalName string    `gorm:"type:varchar(500)"`
	CreatedAt    time.Time `gorm:"not null"`
}

// ToDomain converts the persistence model to a domain ExternalMapping.
func (m *MappingModel) ToDomain() *catalog.ExternalMapping {
	return &catalog.ExternalMapping{
		ID:           m.ID,
		EntityID:     m.EntityID,
		ExternalID:   m.ExternalID,
		ExternalName: m.ExternalName,
		CreatedAt:    m.CreatedAt,
	}
}

// MappingModelFromDomain creates a new persistence model from a domain ExternalMapping.
func MappingModelFromDomain(e *catalog.ExternalMapping) *MappingModel {
	return &MappingModel{
		ID:           e.ID,
		EntityID:     e.EntityID,
		ExternalID:   e.ExternalID,
		ExternalName: e.ExternalName,
		CreatedAt:    e.CreatedAt,
	}
}

// The per-kind types below exist so AutoMigrate creates one table (and one
// set of index names) per kind.

type CategoryMappingModel struct{ MappingModel }

func (CategoryMappingModel) TableName() string { return catalog.KindCategory.MappingTable() }

type BrandMappingModel struct{ MappingModel }

func (BrandMappingModel) TableName() string { return catalog.KindBrand.MappingTable() }

type AttributeMappingModel struct{ MappingModel }

func (AttributeMappingModel) TableName() string { return catalog.KindAttribute.MappingTable() }

type AttributeValueMappingModel struct{ MappingModel }

func (AttributeValueMappingModel) TableName() string {
	return catalog.KindAttributeValue.MappingTable()
}

type PriceTypeMappingModel struct{ MappingModel }

func (PriceTypeMappingModel) TableName() string { return catalog.KindPriceType.MappingTable() }

type ProductMappingModel struct{ MappingModel }

func (ProductMappingModel) TableName() string { return catalog.KindProduct.MappingTable() }

type VariantMappingModel struct{ MappingModel }

func (VariantMappingModel) TableName() string { return catalog.KindVariant.MappingTable() }

// MappingModels returns one migration model per mapping kind.
func MappingModels() []any {
	return []any{
		&CategoryMappingModel{},
		&BrandMappingModel{},
		&AttributeMappingModel{},
		&AttributeValueMappingModel{},
		&PriceTypeMappingModel{},
		&ProductMappingModel{},
		&VariantMappingModel{},
	}
}
