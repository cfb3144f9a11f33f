package catalog

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/shared"
	"github.com/shop/backend/internal/domain/shared/textnorm"
)

// ErrEmptyName is returned when a display name normalizes to an empty key.
var ErrEmptyName = shared.NewDomainError("EMPTY_NAME", "Name must contain at least one letter or digit")

// Naming carries the display name of a catalog entity together with its
// deduplication key. NormalizedName is always derived from Name.
type Naming struct {
	Name           string
	NormalizedName string
	IsActive       bool
}

// NewNaming builds an active Naming for name.
func NewNaming(name string) (Naming, error) {
	n := Naming{IsActive: true}
	if _, err := n.Rename(name); err != nil {
		return Naming{}, err
	}
	return n, nil
}

// Rename sets the display name and recomputes the key.
// It reports whether anything changed.
func (n *Naming) Rename(name string) (bool, error) {
	name = strings.TrimSpace(name)
	key := textnorm.Normalize(name)
	if key == "" {
		return false, ErrEmptyName
	}
	if n.Name == name && n.NormalizedName == key {
		return false, nil
	}
	n.Name = name
	n.NormalizedName = key
	return true, nil
}

// Key returns the normalized name.
func (n *Naming) Key() string {
	return n.NormalizedName
}

// DisplayName returns the name as stored.
func (n *Naming) DisplayName() string {
	return n.Name
}

// Deactivate takes the entity out of the active uniqueness set.
func (n *Naming) Deactivate() {
	n.IsActive = false
}

// Named is implemented by every deduplicated catalog entity.
type Named interface {
	GetID() uuid.UUID
	Key() string
	DisplayName() string
	// Scope is the uniqueness scope of Key; "" means global.
	Scope() string
}

// Kind enumerates the catalog entity kinds that carry external mappings.
type Kind string

const (
	KindCategory       Kind = "category"
	KindBrand          Kind = "brand"
	KindAttribute      Kind = "attribute"
	KindAttributeValue Kind = "attribute_value"
	KindPriceType      Kind = "price_type"
	KindProduct        Kind = "product"
	KindVariant        Kind = "variant"
)

// AllKinds lists every kind in dependency order.
var AllKinds = []Kind{
	KindCategory,
	KindBrand,
	KindAttribute,
	KindAttributeValue,
	KindPriceType,
	KindProduct,
	KindVariant,
}

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	for _, known := range AllKinds {
		if k == known {
			return true
		}
	}
	return false
}

// MappingTable is the table holding external mappings of this kind.
func (k Kind) MappingTable() string {
	return string(k) + "_mappings"
}

func (k Kind) String() string {
	return string(k)
}
