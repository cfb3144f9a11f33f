package catalog

import (
	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/shared"
)

// Attribute is a product property such as "Color" or "Size".
type Attribute struct {
	shared.BaseAggregateRoot
	Naming
}

// NewAttribute creates an active attribute.
func NewAttribute(name string) (*Attribute, error) {
	naming, err := NewNaming(name)
	if err != nil {
		return nil, err
	}
	return &Attribute{BaseAggregateRoot: shared.NewBaseAggregateRoot(), Naming: naming}, nil
}

// Scope implements Named.
func (a *Attribute) Scope() string { return "" }

// Rename changes the display name.
func (a *Attribute) Rename(name string) (bool, error) {
	changed, err := a.Naming.Rename(name)
	if changed {
		a.Touch()
		a.IncrementVersion()
	}
	return changed, err
}

// AttributeValue is one allowed value of an Attribute. Values are unique
// within their attribute.
type AttributeValue struct {
	shared.BaseAggregateRoot
	Naming
	AttributeID uuid.UUID
}

// NewAttributeValue creates a value of attributeID.
func NewAttributeValue(attributeID uuid.UUID, value string) (*AttributeValue, error) {
	if attributeID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ATTRIBUTE", "Attribute value requires an attribute")
	}
	naming, err := NewNaming(value)
	if err != nil {
		return nil, err
	}
	return &AttributeValue{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Naming:            naming,
		AttributeID:       attributeID,
	}, nil
}

// Scope implements Named.
func (v *AttributeValue) Scope() string { return v.AttributeID.String() }

// Rename changes the display value.
func (v *AttributeValue) Rename(value string) (bool, error) {
	changed, err := v.Naming.Rename(value)
	if changed {
		v.Touch()
		v.IncrementVersion()
	}
	return changed, err
}
