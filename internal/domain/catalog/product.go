package catalog

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/shared"
)

// Product is a sellable item; concrete SKUs live in ProductVariant.
type Product struct {
	shared.BaseAggregateRoot
	Naming
	SKU         string
	Description string
	BrandID     *uuid.UUID
	CategoryID  *uuid.UUID
}

// ProductDetails are the mutable, non-name fields refreshed on every import.
type ProductDetails struct {
	SKU         string
	Description string
	BrandID     *uuid.UUID
	CategoryID  *uuid.UUID
}

// NewProduct creates an active product.
func NewProduct(name string, details ProductDetails) (*Product, error) {
	naming, err := NewNaming(name)
	if err != nil {
		return nil, err
	}
	p := &Product{BaseAggregateRoot: shared.NewBaseAggregateRoot(), Naming: naming}
	p.applyDetails(details)
	return p, nil
}

// Scope implements Named.
func (p *Product) Scope() string { return "" }

// Update refreshes name and details and reports whether anything changed.
// Nil references in details keep the current value.
func (p *Product) Update(name string, details ProductDetails) (bool, error) {
	changed, err := p.Naming.Rename(name)
	if err != nil {
		return false, err
	}
	if p.applyDetails(details) {
		changed = true
	}
	if changed {
		p.Touch()
		p.IncrementVersion()
	}
	return changed, nil
}

func (p *Product) applyDetails(d ProductDetails) bool {
	changed := false
	if sku := strings.TrimSpace(d.SKU); sku != "" && sku != p.SKU {
		p.SKU = sku
		changed = true
	}
	if desc := strings.TrimSpace(d.Description); desc != "" && desc != p.Description {
		p.Description = desc
		changed = true
	}
	if d.BrandID != nil && !sameID(p.BrandID, d.BrandID) {
		id := *d.BrandID
		p.BrandID = &id
		changed = true
	}
	if d.CategoryID != nil && !sameID(p.CategoryID, d.CategoryID) {
		id := *d.CategoryID
		p.CategoryID = &id
		changed = true
	}
	return changed
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ProductImage is a stored picture of a product, optionally of one variant.
type ProductImage struct {
	shared.BaseEntity
	ProductID  uuid.UUID
	VariantID  *uuid.UUID
	Path       string
	StorageKey string
	SortOrder  int
}

// NewProductImage creates an image row for an already normalized path.
func NewProductImage(productID uuid.UUID, variantID *uuid.UUID, path string, sortOrder int) (*ProductImage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, shared.NewDomainError("INVALID_IMAGE_PATH", "Image path cannot be empty")
	}
	return &ProductImage{
		BaseEntity: shared.NewBaseEntity(),
		ProductID:  productID,
		VariantID:  variantID,
		Path:       path,
		SortOrder:  sortOrder,
	}, nil
}
