package models

import (
	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/catalog"
	"github.com/shop/backend/internal/domain/shared/textnorm"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// NamingModel holds the display name and its deduplication key.
// Uniqueness of the key among active rows is enforced by partial indexes
// created in AutoMigrate and the SQL migrations.
type NamingModel struct {
	Name           string `gorm:"type:varchar(500);not null"`
	NormalizedName string `gorm:"type:varchar(500);not null;index"`
	IsActive       bool   `gorm:"not null"`
}

// BeforeSave keeps normalized_name derived from name.
func (n *NamingModel) BeforeSave(tx *gorm.DB) error {
	n.NormalizedName = textnorm.Normalize(n.Name)
	if n.NormalizedName == "" {
		return catalog.ErrEmptyName
	}
	return nil
}

func namingFromDomain(n catalog.Naming) NamingModel {
	return NamingModel{Name: n.Name, NormalizedName: n.NormalizedName, IsActive: n.IsActive}
}

func (n NamingModel) toDomain() catalog.Naming {
	return catalog.Naming{Name: n.Name, NormalizedName: n.NormalizedName, IsActive: n.IsActive}
}

// CategoryModel is the persistence model for the Category domain entity.
type CategoryModel struct {
	AggregateModel
	NamingModel
	ParentID  *uuid.UUID `gorm:"type:uuid;index"`
	TreeScope string     `gorm:"type:varchar(64);not null"`
	Level     int        `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (CategoryModel) TableName() string {
	return "categories"
}

// ScopeColumn is the column holding the uniqueness scope.
func (CategoryModel) ScopeColumn() string { return "tree_scope" }

// ToDomain converts the persistence model to a domain Category entity.
func (m *CategoryModel) ToDomain() *catalog.Category {
	return &catalog.Category{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Naming:            m.NamingModel.toDomain(),
		ParentID:          m.ParentID,
		Level:             m.Level,
	}
}

// FromDomain populates the persistence model from a domain Category entity.
func (m *CategoryModel) FromDomain(c *catalog.Category) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.NamingModel = namingFromDomain(c.Naming)
	m.ParentID = c.ParentID
	m.TreeScope = c.Scope()
	m.Level = c.Level
}

// BrandModel is the persistence model for the Brand domain entity.
type BrandModel struct {
	AggregateModel
	NamingModel
}

// TableName returns the table name for GORM
func (BrandModel) TableName() string {
	return "brands"
}

// ScopeColumn returns "" because brand names are unique globally.
func (BrandModel) ScopeColumn() string { return "" }

// ToDomain converts the persistence model to a domain Brand entity.
func (m *BrandModel) ToDomain() *catalog.Brand {
	return &catalog.Brand{BaseAggregateRoot: m.ToDomainAggregateRoot(), Naming: m.NamingModel.toDomain()}
}

// FromDomain populates the persistence model from a domain Brand entity.
func (m *BrandModel) FromDomain(b *catalog.Brand) {
	m.FromDomainAggregateRoot(b.BaseAggregateRoot)
	m.NamingModel = namingFromDomain(b.Naming)
}

// AttributeModel is the persistence model for the Attribute domain entity.
type AttributeModel struct {
	AggregateModel
	NamingModel
}

// TableName returns the table name for GORM
func (AttributeModel) TableName() string {
	return "attributes"
}

func (AttributeModel) ScopeColumn() string { return "" }

// ToDomain converts the persistence model to a domain Attribute entity.
func (m *AttributeModel) ToDomain() *catalog.Attribute {
	return &catalog.Attribute{BaseAggregateRoot: m.ToDomainAggregateRoot(), Naming: m.NamingModel.toDomain()}
}

// FromDomain populates the persistence model from a domain Attribute entity.
func (m *AttributeModel) FromDomain(a *catalog.Attribute) {
	m.FromDomainAggregateRoot(a.BaseAggregateRoot)
	m.NamingModel = namingFromDomain(a.Naming)
}

// AttributeValueModel is the persistence model for the AttributeValue domain entity.
type AttributeValueModel struct {
	AggregateModel
	NamingModel
	AttributeID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// TableName returns the table name for GORM
func (AttributeValueModel) TableName() string {
	return "attribute_values"
}

func (AttributeValueModel) ScopeColumn() string { return "attribute_id" }

// ToDomain converts the persistence model to a domain AttributeValue entity.
func (m *AttributeValueModel) ToDomain() *catalog.AttributeValue {
	return &catalog.AttributeValue{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Naming:            m.NamingModel.toDomain(),
		AttributeID:       m.AttributeID,
	}
}

// FromDomain populates the persistence model from a domain AttributeValue entity.
func (m *AttributeValueModel) FromDomain(v *catalog.AttributeValue) {
	m.FromDomainAggregateRoot(v.BaseAggregateRoot)
	m.NamingModel = namingFromDomain(v.Naming)
	m.AttributeID = v.AttributeID
}

// PriceTypeModel is the persistence model for the PriceType domain entity.
type PriceTypeModel struct {
	AggregateModel
	NamingModel
	Currency string             `gorm:"type:varchar(10)"`
	Field    catalog.PriceField `gorm:"type:varchar(20)"`
}

// TableName returns the table name for GORM
func (PriceTypeModel) TableName() string {
	return "price_types"
}

func (PriceTypeModel) ScopeColumn() string { return "" }

// ToDomain converts the persistence model to a domain PriceType entity.
func (m *PriceTypeModel) ToDomain() *catalog.PriceType {
	return &catalog.PriceType{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Naming:            m.NamingModel.toDomain(),
		Currency:          m.Currency,
		Field:             m.Field,
	}
}

// FromDomain populates the persistence model from a domain PriceType entity.
func (m *PriceTypeModel) FromDomain(p *catalog.PriceType) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.NamingModel = namingFromDomain(p.Naming)
	m.Currency = p.Currency
	m.Field = p.Field
}

// ProductModel is the persistence model for the Product domain entity.
type ProductModel struct {
	AggregateModel
	NamingModel
	SKU         string     `gorm:"column:sku;type:varchar(100);index"`
	Description string     `gorm:"type:text"`
	BrandID     *uuid.UUID `gorm:"type:uuid;index"`
	CategoryID  *uuid.UUID `gorm:"type:uuid;index"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

func (ProductModel) ScopeColumn() string { return "" }

// ToDomain converts the persistence model to a domain Product entity.
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Naming:            m.NamingModel.toDomain(),
		SKU:               m.SKU,
		Description:       m.Description,
		BrandID:           m.BrandID,
		CategoryID:        m.CategoryID,
	}
}

// FromDomain populates the persistence model from a domain Product entity.
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.NamingModel = namingFromDomain(p.Naming)
	m.SKU = p.SKU
	m.Description = p.Description
	m.BrandID = p.BrandID
	m.CategoryID = p.CategoryID
}

// ProductAttributeValueModel links products to attribute values.
type ProductAttributeValueModel struct {
	ProductID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	AttributeValueID uuid.UUID `gorm:"type:uuid;primaryKey"`
}

// TableName returns the table name for GORM
func (ProductAttributeValueModel) TableName() string {
	return "product_attribute_values"
}

// VariantModel is the persistence model for the ProductVariant domain entity.
type VariantModel struct {
	AggregateModel
	NamingModel
	ProductID        uuid.UUID           `gorm:"type:uuid;not null;index"`
	SKU              string              `gorm:"column:sku;type:varchar(100);index"`
	Barcode          string              `gorm:"type:varchar(64)"`
	RetailPrice      decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	Opt1Price        decimal.NullDecimal `gorm:"column:opt1_price;type:decimal(18,4)"`
	Opt2Price        decimal.NullDecimal `gorm:"column:opt2_price;type:decimal(18,4)"`
	Opt3Price        decimal.NullDecimal `gorm:"column:opt3_price;type:decimal(18,4)"`
	TrainerPrice     decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	RRP              decimal.NullDecimal `gorm:"column:rrp;type:decimal(18,4)"`
	MSRP             decimal.NullDecimal `gorm:"column:msrp;type:decimal(18,4)"`
	StockQuantity    decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
	ReservedQuantity decimal.Decimal     `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (VariantModel) TableName() string {
	return "product_variants"
}

func (VariantModel) ScopeColumn() string { return "product_id" }

func toNull(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func fromNull(n decimal.NullDecimal) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	d := n.Decimal
	return &d
}

// ToDomain converts the persistence model to a domain ProductVariant entity.
func (m *VariantModel) ToDomain() *catalog.ProductVariant {
	return &catalog.ProductVariant{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Naming:            m.NamingModel.toDomain(),
		ProductID:         m.ProductID,
		SKU:               m.SKU,
		Barcode:           m.Barcode,
		RetailPrice:       fromNull(m.RetailPrice),
		Opt1Price:         fromNull(m.Opt1Price),
		Opt2Price:         fromNull(m.Opt2Price),
		Opt3Price:         fromNull(m.Opt3Price),
		TrainerPrice:      fromNull(m.TrainerPrice),
		RRP:               fromNull(m.RRP),
		MSRP:              fromNull(m.MSRP),
		StockQuantity:     m.StockQuantity,
		ReservedQuantity:  m.ReservedQuantity,
	}
}

// FromDomain populates the persistence model from a domain ProductVariant entity.
func (m *VariantModel) FromDomain(v *catalog.ProductVariant) {
	m.FromDomainAggregateRoot(v.BaseAggregateRoot)
	m.NamingModel = namingFromDomain(v.Naming)
	m.ProductID = v.ProductID
	m.SKU = v.SKU
	m.Barcode = v.Barcode
	m.RetailPrice = toNull(v.RetailPrice)
	m.Opt1Price = toNull(v.Opt1Price)
	m.Opt2Price = toNull(v.Opt2Price)
	m.Opt3Price = toNull(v.Opt3Price)
	m.TrainerPrice = toNull(v.TrainerPrice)
	m.RRP = toNull(v.RRP)
	m.MSRP = toNull(v.MSRP)
	m.StockQuantity = v.StockQuantity
	m.ReservedQuantity = v.ReservedQuantity
}

// VariantAttributeValueModel links variants to attribute values.
type VariantAttributeValueModel struct {
	VariantID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	AttributeValueID uuid.UUID `gorm:"type:uuid;primaryKey"`
}

// TableName returns the table name for GORM
func (VariantAttributeValueModel) TableName() string {
	return "variant_attribute_values"
}

// ProductImageModel is the persistence model for the ProductImage domain entity.
type ProductImageModel struct {
	BaseModel
	ProductID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:ux_product_images_path,priority:1"`
	VariantID  *uuid.UUID `gorm:"type:uuid;index"`
	Path       string     `gorm:"type:varchar(1000);not null;uniqueIndex:ux_product_images_path,priority:2"`
	StorageKey string     `gorm:"type:varchar(1000)"`
	SortOrder  int        `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (ProductImageModel) TableName() string {
	return "product_images"
}

// ToDomain converts the persistence model to a domain ProductImage entity.
func (m *ProductImageModel) ToDomain() *catalog.ProductImage {
	return &catalog.ProductImage{
		BaseEntity: m.BaseModel.ToDomain(),
		ProductID:  m.ProductID,
		VariantID:  m.VariantID,
		Path:       m.Path,
		StorageKey: m.StorageKey,
		SortOrder:  m.SortOrder,
	}
}

// FromDomain populates the persistence model from a domain ProductImage entity.
func (m *ProductImageModel) FromDomain(img *catalog.ProductImage) {
	m.FromDomainBaseEntity(img.BaseEntity)
	m.ProductID = img.ProductID
	m.VariantID = img.VariantID
	m.Path = img.Path
	m.StorageKey = img.StorageKey
	m.SortOrder = img.SortOrder
}
