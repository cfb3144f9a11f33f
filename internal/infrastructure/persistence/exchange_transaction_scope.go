package persistence

import (
	"context"

	appexchange "github.com/shop/backend/internal/application/exchange"
	"github.com/shop/backend/internal/domain/catalog"
	"github.com/shop/backend/internal/domain/exchange"
	"github.com/shop/backend/internal/domain/trade"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// A call nested in an outer transaction runs in a savepoint.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appexchange.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) CategoryRepo() catalog.CategoryRepository {
	return NewGormCategoryRepository(r.tx)
}

func (r *gormTransactionalRepositories) BrandRepo() catalog.BrandRepository {
	return NewGormBrandRepository(r.tx)
}

func (r *gormTransactionalRepositories) AttributeRepo() catalog.AttributeRepository {
	return NewGormAttributeRepository(r.tx)
}

func (r *gormTransactionalRepositories) AttributeValueRepo() catalog.AttributeValueRepository {
	return NewGormAttributeValueRepository(r.tx)
}

func (r *gormTransactionalRepositories) PriceTypeRepo() catalog.PriceTypeRepository {
	return NewGormPriceTypeRepository(r.tx)
}

func (r *gormTransactionalRepositories) ProductRepo() catalog.ProductRepository {
	return NewGormProductRepository(r.tx)
}

func (r *gormTransactionalRepositories) VariantRepo() catalog.VariantRepository {
	return NewGormVariantRepository(r.tx)
}

func (r *gormTransactionalRepositories) ImageRepo() catalog.ImageRepository {
	return NewGormImageRepository(r.tx)
}

func (r *gormTransactionalRepositories) MappingRepo() catalog.MappingRepository {
	return NewGormMappingRepository(r.tx)
}

func (r *gormTransactionalRepositories) SessionRepo() exchange.SessionRepository {
	return NewGormImportSessionRepository(r.tx)
}

func (r *gormTransactionalRepositories) OrderRepo() trade.OrderRepository {
	return NewGormOrderRepository(r.tx)
}

func (r *gormTransactionalRepositories) ExportBatchRepo() trade.ExportBatchRepository {
	return NewGormExportBatchRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appexchange.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appexchange.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
