package catalog

import "github.com/shop/backend/internal/domain/shared"

// Brand is a manufacturer or trade mark. Brand names are unique globally.
type Brand struct {
	shared.BaseAggregateRoot
	Naming
}

// NewBrand creates an active brand.
func NewBrand(name string) (*Brand, error) {
	naming, err := NewNaming(name)
	if err != nil {
		return nil, err
	}
	return &Brand{BaseAggregateRoot: shared.NewBaseAggregateRoot(), Naming: naming}, nil
}

// Scope implements Named.
func (b *Brand) Scope() string { return "" }

// Rename changes the display name.
func (b *Brand) Rename(name string) (bool, error) {
	changed, err := b.Naming.Rename(name)
	if changed {
		b.Touch()
		b.IncrementVersion()
	}
	return changed, err
}
