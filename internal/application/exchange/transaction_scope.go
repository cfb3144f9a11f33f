package exchange

import (
	"context"

	"github.com/shop/backend/internal/domain/catalog"
	"github.com/shop/backend/internal/domain/exchange"
	"github.com/shop/backend/internal/domain/trade"
)

// TransactionScope defines the interface for executing operations within a transaction.
type TransactionScope interface {
	// Execute runs fn within a database transaction. The transaction is
	// rolled back when fn returns an error and committed otherwise.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the exchange repositories
// within a transaction. All repositories returned share the same transaction.
type TransactionalRepositories interface {
	CategoryRepo() catalog.CategoryRepository
	BrandRepo() catalog.BrandRepository
	AttributeRepo() catalog.AttributeRepository
	AttributeValueRepo() catalog.AttributeValueRepository
	PriceTypeRepo() catalog.PriceTypeRepository
	ProductRepo() catalog.ProductRepository
	VariantRepo() catalog.VariantRepository
	ImageRepo() catalog.ImageRepository
	MappingRepo() catalog.MappingRepository
	SessionRepo() exchange.SessionRepository
	OrderRepo() trade.OrderRepository
	ExportBatchRepo() trade.ExportBatchRepository
}
