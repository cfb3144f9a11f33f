package persistence

import (
	"fmt"

	"github.com/shop/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// partialIndexes keep normalized names unique among active rows only and
// allow a single active session per import type. GORM tags cannot express
// the WHERE clause, so they are created explicitly. Postgres and SQLite
// accept the same syntax.
var partialIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_categories_active_name ON categories (tree_scope, normalized_name) WHERE is_active`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_brands_active_name ON brands (normalized_name) WHERE is_active`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_attributes_active_name ON attributes (normalized_name) WHERE is_active`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_attribute_values_active_name ON attribute_values (attribute_id, normalized_name) WHERE is_active`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_price_types_active_name ON price_types (normalized_name) WHERE is_active`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_products_active_name ON products (normalized_name) WHERE is_active`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_product_variants_active_name ON product_variants (product_id, normalized_name) WHERE is_active`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_import_sessions_active ON import_sessions (import_type) WHERE status IN ('pending', 'started', 'in_progress')`,
}

// AllModels lists every table the exchange owns, in creation order.
func AllModels() []any {
	tables := []any{
		&models.CategoryModel{},
		&models.BrandModel{},
		&models.AttributeModel{},
		&models.AttributeValueModel{},
		&models.PriceTypeModel{},
		&models.ProductModel{},
		&models.VariantModel{},
		&models.ProductAttributeValueModel{},
		&models.VariantAttributeValueModel{},
		&models.ProductImageModel{},
		&models.ImportSessionModel{},
		&models.OrderModel{},
		&models.OrderItemModel{},
		&models.ExportBatchModel{},
		&models.ExportBatchOrderModel{},
	}
	return append(tables, models.MappingModels()...)
}

// AutoMigrate creates the schema from the models. Production databases are
// migrated with the SQL files under migrations/; AutoMigrate serves tests and
// local development.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for _, stmt := range partialIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create partial index: %w", err)
		}
	}
	return nil
}
