package catalog

import (
	"strings"

	"github.com/shop/backend/internal/domain/shared"
)

// PriceField names the variant column a price type feeds.
type PriceField string

const (
	PriceFieldNone    PriceField = ""
	PriceFieldRetail  PriceField = "retail_price"
	PriceFieldOpt1    PriceField = "opt1_price"
	PriceFieldOpt2    PriceField = "opt2_price"
	PriceFieldOpt3    PriceField = "opt3_price"
	PriceFieldTrainer PriceField = "trainer_price"
	PriceFieldRRP     PriceField = "rrp"
	PriceFieldMSRP    PriceField = "msrp"
)

// PriceFields lists every assignable field.
var PriceFields = []PriceField{
	PriceFieldRetail,
	PriceFieldOpt1,
	PriceFieldOpt2,
	PriceFieldOpt3,
	PriceFieldTrainer,
	PriceFieldRRP,
	PriceFieldMSRP,
}

// IsValid reports whether f is a known field. PriceFieldNone is valid and
// means the price type is stored but its prices are ignored.
func (f PriceField) IsValid() bool {
	if f == PriceFieldNone {
		return true
	}
	for _, known := range PriceFields {
		if f == known {
			return true
		}
	}
	return false
}

// ParsePriceField parses a configured field name.
func ParsePriceField(s string) (PriceField, error) {
	f := PriceField(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return PriceFieldNone, shared.NewDomainError("INVALID_PRICE_FIELD", "Unknown price field: "+s)
	}
	return f, nil
}

// PriceType is an ERP price list such as "Розничная" or "Оптовая".
type PriceType struct {
	shared.BaseAggregateRoot
	Naming
	Currency string
	Field    PriceField
}

// NewPriceType creates an active price type.
func NewPriceType(name, currency string, field PriceField) (*PriceType, error) {
	naming, err := NewNaming(name)
	if err != nil {
		return nil, err
	}
	if !field.IsValid() {
		return nil, shared.NewDomainError("INVALID_PRICE_FIELD", "Unknown price field: "+string(field))
	}
	return &PriceType{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Naming:            naming,
		Currency:          strings.TrimSpace(currency),
		Field:             field,
	}, nil
}

// Scope implements Named.
func (p *PriceType) Scope() string { return "" }

// Update refreshes mutable fields and reports whether anything changed.
func (p *PriceType) Update(name, currency string, field PriceField) (bool, error) {
	changed, err := p.Naming.Rename(name)
	if err != nil {
		return false, err
	}
	currency = strings.TrimSpace(currency)
	if currency != "" && currency != p.Currency {
		p.Currency = currency
		changed = true
	}
	// an unmapped name keeps a field set earlier by an operator
	if field != PriceFieldNone && field != p.Field {
		p.Field = field
		changed = true
	}
	if changed {
		p.Touch()
		p.IncrementVersion()
	}
	return changed, nil
}
