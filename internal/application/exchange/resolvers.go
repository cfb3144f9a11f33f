package exchange

import (
	"context"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/catalog"
)

// CategoryExtra carries the resolved parent of a category (nil for a root).
type CategoryExtra struct {
	Parent *catalog.Category
}

// AttributeValueExtra carries the owning attribute.
type AttributeValueExtra struct {
	AttributeID uuid.UUID
}

// PriceTypeExtra carries the currency and the variant field a price type feeds.
type PriceTypeExtra struct {
	Currency string
	Field    catalog.PriceField
}

// VariantExtra carries the owning product and identifiers of a variant.
type VariantExtra struct {
	ProductID uuid.UUID
	SKU       string
	Barcode   string
}

type (
	CategoryResolver       = Resolver[catalog.Category, *catalog.Category, CategoryExtra]
	BrandResolver          = Resolver[catalog.Brand, *catalog.Brand, struct{}]
	AttributeResolver      = Resolver[catalog.Attribute, *catalog.Attribute, struct{}]
	AttributeValueResolver = Resolver[catalog.AttributeValue, *catalog.AttributeValue, AttributeValueExtra]
	PriceTypeResolver      = Resolver[catalog.PriceType, *catalog.PriceType, PriceTypeExtra]
	ProductResolver        = Resolver[catalog.Product, *catalog.Product, catalog.ProductDetails]
	VariantResolver        = Resolver[catalog.ProductVariant, *catalog.ProductVariant, VariantExtra]
)

// Resolvers bundles one resolver per entity kind.
type Resolvers struct {
	Category       *CategoryResolver
	Brand          *BrandResolver
	Attribute      *AttributeResolver
	AttributeValue *AttributeValueResolver
	PriceType      *PriceTypeResolver
	Product        *ProductResolver
	Variant        *VariantResolver
}

// NewResolvers builds the resolvers of every catalog kind.
func NewResolvers() *Resolvers {
	return &Resolvers{
		Category:       NewResolver(categorySpec()),
		Brand:          NewResolver(brandSpec()),
		Attribute:      NewResolver(attributeSpec()),
		AttributeValue: NewResolver(attributeValueSpec()),
		PriceType:      NewResolver(priceTypeSpec()),
		Product:        NewResolver(productSpec()),
		Variant:        NewResolver(variantSpec()),
	}
}

func categorySpec() ResolverSpec[catalog.Category, *catalog.Category, CategoryExtra] {
	return ResolverSpec[catalog.Category, *catalog.Category, CategoryExtra]{
		Kind: catalog.KindCategory,
		Repo: func(repos TransactionalRepositories) catalog.NamedRepository[catalog.Category] {
			return repos.CategoryRepo()
		},
		New: func(in ResolveInput[CategoryExtra]) (*catalog.Category, error) {
			return catalog.NewCategory(in.Name, in.Extra.Parent)
		},
		Refresh: func(ctx context.Context, repos TransactionalRepositories, c *catalog.Category, in ResolveInput[CategoryExtra]) (bool, error) {
			var parentID *uuid.UUID
			if in.Extra.Parent != nil {
				id := in.Extra.Parent.ID
				parentID = &id
			}
			moved := false
			if !c.SameParent(parentID) {
				circular, err := catalog.HasCircularReference(ctx, repos.CategoryRepo(), c.ID, parentID)
				if err != nil {
					return false, err
				}
				if circular {
					return false, catalog.ErrCircularReference
				}
				if err := c.MoveTo(in.Extra.Parent); err != nil {
					return false, err
				}
				if _, err := catalog.RelevelDescendants(ctx, repos.CategoryRepo(), c); err != nil {
					return false, err
				}
				moved = true
			}
			renamed, err := c.Rename(in.Name)
			if err != nil {
				return false, err
			}
			return moved || renamed, nil
		},
	}
}

func brandSpec() ResolverSpec[catalog.Brand, *catalog.Brand, struct{}] {
	return ResolverSpec[catalog.Brand, *catalog.Brand, struct{}]{
		Kind: catalog.KindBrand,
		Repo: func(repos TransactionalRepositories) catalog.NamedRepository[catalog.Brand] {
			return repos.BrandRepo()
		},
		New: func(in ResolveInput[struct{}]) (*catalog.Brand, error) {
			return catalog.NewBrand(in.Name)
		},
		Refresh: func(_ context.Context, _ TransactionalRepositories, b *catalog.Brand, in ResolveInput[struct{}]) (bool, error) {
			return b.Rename(in.Name)
		},
	}
}

func attributeSpec() ResolverSpec[catalog.Attribute, *catalog.Attribute, struct{}] {
	return ResolverSpec[catalog.Attribute, *catalog.Attribute, struct{}]{
		Kind: catalog.KindAttribute,
		Repo: func(repos TransactionalRepositories) catalog.NamedRepository[catalog.Attribute] {
			return repos.AttributeRepo()
		},
		New: func(in ResolveInput[struct{}]) (*catalog.Attribute, error) {
			return catalog.NewAttribute(in.Name)
		},
		Refresh: func(_ context.Context, _ TransactionalRepositories, a *catalog.Attribute, in ResolveInput[struct{}]) (bool, error) {
			return a.Rename(in.Name)
		},
	}
}

func attributeValueSpec() ResolverSpec[catalog.AttributeValue, *catalog.AttributeValue, AttributeValueExtra] {
	return ResolverSpec[catalog.AttributeValue, *catalog.AttributeValue, AttributeValueExtra]{
		Kind: catalog.KindAttributeValue,
		Repo: func(repos TransactionalRepositories) catalog.NamedRepository[catalog.AttributeValue] {
			return repos.AttributeValueRepo()
		},
		New: func(in ResolveInput[AttributeValueExtra]) (*catalog.AttributeValue, error) {
			return catalog.NewAttributeValue(in.Extra.AttributeID, in.Name)
		},
		Refresh: func(_ context.Context, _ TransactionalRepositories, v *catalog.AttributeValue, in ResolveInput[AttributeValueExtra]) (bool, error) {
			return v.Rename(in.Name)
		},
	}
}

func priceTypeSpec() ResolverSpec[catalog.PriceType, *catalog.PriceType, PriceTypeExtra] {
	return ResolverSpec[catalog.PriceType, *catalog.PriceType, PriceTypeExtra]{
		Kind: catalog.KindPriceType,
		Repo: func(repos TransactionalRepositories) catalog.NamedRepository[catalog.PriceType] {
			return repos.PriceTypeRepo()
		},
		New: func(in ResolveInput[PriceTypeExtra]) (*catalog.PriceType, error) {
			return catalog.NewPriceType(in.Name, in.Extra.Currency, in.Extra.Field)
		},
		Refresh: func(_ context.Context, _ TransactionalRepositories, p *catalog.PriceType, in ResolveInput[PriceTypeExtra]) (bool, error) {
			return p.Update(in.Name, in.Extra.Currency, in.Extra.Field)
		},
	}
}

func productSpec() ResolverSpec[catalog.Product, *catalog.Product, catalog.ProductDetails] {
	return ResolverSpec[catalog.Product, *catalog.Product, catalog.ProductDetails]{
		Kind: catalog.KindProduct,
		Repo: func(repos TransactionalRepositories) catalog.NamedRepository[catalog.Product] {
			return repos.ProductRepo()
		},
		New: func(in ResolveInput[catalog.ProductDetails]) (*catalog.Product, error) {
			return catalog.NewProduct(in.Name, in.Extra)
		},
		Refresh: func(_ context.Context, _ TransactionalRepositories, p *catalog.Product, in ResolveInput[catalog.ProductDetails]) (bool, error) {
			return p.Update(in.Name, in.Extra)
		},
	}
}

func variantSpec() ResolverSpec[catalog.ProductVariant, *catalog.ProductVariant, VariantExtra] {
	return ResolverSpec[catalog.ProductVariant, *catalog.ProductVariant, VariantExtra]{
		Kind: catalog.KindVariant,
		Repo: func(repos TransactionalRepositories) catalog.NamedRepository[catalog.ProductVariant] {
			return repos.VariantRepo()
		},
		New: func(in ResolveInput[VariantExtra]) (*catalog.ProductVariant, error) {
			return catalog.NewProductVariant(in.Extra.ProductID, in.Name, in.Extra.SKU, in.Extra.Barcode)
		},
		Refresh: func(_ context.Context, _ TransactionalRepositories, v *catalog.ProductVariant, in ResolveInput[VariantExtra]) (bool, error) {
			return v.Update(in.Name, in.Extra.SKU, in.Extra.Barcode)
		},
	}
}
