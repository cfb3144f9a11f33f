package catalog

import (
	"context"

	"github.com/google/uuid"
)

// NamedRepository is the storage contract shared by all deduplicated entities.
type NamedRepository[E any] interface {
	FindByID(ctx context.Context, id uuid.UUID) (*E, error)
	// FindActiveByKey looks up an active entity by normalized name within scope.
	FindActiveByKey(ctx context.Context, scope, key string) (*E, error)
	// Create inserts e. A uniqueness violation yields shared.ErrAlreadyExists.
	Create(ctx context.Context, e *E) error
	Save(ctx context.Context, e *E) error
	// Delete removes e together with its external mappings.
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int64, error)
}

// BrandRepository persists brands.
type BrandRepository = NamedRepository[Brand]

// AttributeRepository persists attributes.
type AttributeRepository = NamedRepository[Attribute]

// AttributeValueRepository persists attribute values.
type AttributeValueRepository = NamedRepository[AttributeValue]

// PriceTypeRepository persists price types.
type PriceTypeRepository = NamedRepository[PriceType]

// ProductRepository persists products.
type ProductRepository interface {
	NamedRepository[Product]
	SetAttributeValues(ctx context.Context, productID uuid.UUID, valueIDs []uuid.UUID) error
	AttributeValueIDs(ctx context.Context, productID uuid.UUID) ([]uuid.UUID, error)
}

// VariantRepository persists product variants.
type VariantRepository interface {
	NamedRepository[ProductVariant]
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]ProductVariant, error)
	SetAttributeValues(ctx context.Context, variantID uuid.UUID, valueIDs []uuid.UUID) error
}

// ImageRepository persists product images.
type ImageRepository interface {
	FindByProduct(ctx context.Context, productID uuid.UUID) ([]ProductImage, error)
	// Upsert inserts the image or refreshes the existing row with the same owner and path.
	Upsert(ctx context.Context, img *ProductImage) (created bool, err error)
}
