package catalog

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// VariantSeparator splits a variant external id into product and variant parts.
const VariantSeparator = "#"

var (
	// ErrStockBelowReserved is returned when new stock would not cover existing reservations.
	ErrStockBelowReserved = shared.NewDomainError("STOCK_BELOW_RESERVED", "Stock quantity cannot be lower than reserved quantity")
	// ErrNegativeQuantity is returned for negative stock or reservation amounts.
	ErrNegativeQuantity = shared.NewDomainError("NEGATIVE_QUANTITY", "Quantity cannot be negative")
	// ErrInsufficientStock is returned when a reservation exceeds available stock.
	ErrInsufficientStock = shared.NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock available")
)

// SplitVariantExternalID returns the product part of an offer id
// ("prod#var" -> "prod"). Ids without a separator belong to the product itself.
func SplitVariantExternalID(externalID string) (productID string, variantPart string) {
	productID, variantPart, _ = strings.Cut(externalID, VariantSeparator)
	return productID, variantPart
}

// ProductVariant is a concrete SKU of a Product with its own prices and stock.
type ProductVariant struct {
	shared.BaseAggregateRoot
	Naming
	ProductID        uuid.UUID
	SKU              string
	Barcode          string
	RetailPrice      *decimal.Decimal
	Opt1Price        *decimal.Decimal
	Opt2Price        *decimal.Decimal
	Opt3Price        *decimal.Decimal
	TrainerPrice     *decimal.Decimal
	RRP              *decimal.Decimal
	MSRP             *decimal.Decimal
	StockQuantity    decimal.Decimal
	ReservedQuantity decimal.Decimal
}

// NewProductVariant creates a variant of productID with zero stock.
func NewProductVariant(productID uuid.UUID, name, sku, barcode string) (*ProductVariant, error) {
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Variant requires a product")
	}
	naming, err := NewNaming(name)
	if err != nil {
		return nil, err
	}
	return &ProductVariant{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Naming:            naming,
		ProductID:         productID,
		SKU:               strings.TrimSpace(sku),
		Barcode:           strings.TrimSpace(barcode),
		StockQuantity:     decimal.Zero,
		ReservedQuantity:  decimal.Zero,
	}, nil
}

// Scope implements Named.
func (v *ProductVariant) Scope() string { return v.ProductID.String() }

// Update refreshes the name and identifiers.
func (v *ProductVariant) Update(name, sku, barcode string) (bool, error) {
	changed, err := v.Naming.Rename(name)
	if err != nil {
		return false, err
	}
	if sku = strings.TrimSpace(sku); sku != "" && sku != v.SKU {
		v.SKU = sku
		changed = true
	}
	if barcode = strings.TrimSpace(barcode); barcode != "" && barcode != v.Barcode {
		v.Barcode = barcode
		changed = true
	}
	if changed {
		v.touch()
	}
	return changed, nil
}

func (v *ProductVariant) priceSlot(field PriceField) **decimal.Decimal {
	switch field {
	case PriceFieldRetail:
		return &v.RetailPrice
	case PriceFieldOpt1:
		return &v.Opt1Price
	case PriceFieldOpt2:
		return &v.Opt2Price
	case PriceFieldOpt3:
		return &v.Opt3Price
	case PriceFieldTrainer:
		return &v.TrainerPrice
	case PriceFieldRRP:
		return &v.RRP
	case PriceFieldMSRP:
		return &v.MSRP
	}
	return nil
}

// Price returns the value of field, nil when unset or unknown.
func (v *ProductVariant) Price(field PriceField) *decimal.Decimal {
	slot := v.priceSlot(field)
	if slot == nil {
		return nil
	}
	return *slot
}

// SetPrice assigns field and reports whether the stored value changed.
func (v *ProductVariant) SetPrice(field PriceField, value decimal.Decimal) (bool, error) {
	slot := v.priceSlot(field)
	if slot == nil {
		return false, shared.NewDomainError("INVALID_PRICE_FIELD", "Unknown price field: "+string(field))
	}
	if value.IsNegative() {
		return false, shared.NewDomainError("NEGATIVE_PRICE", "Price cannot be negative")
	}
	if *slot != nil && (*slot).Equal(value) {
		return false, nil
	}
	val := value
	*slot = &val
	v.touch()
	return true, nil
}

// SetStock replaces the on-hand quantity. Reservations are never dropped:
// stock below the reserved quantity is rejected.
func (v *ProductVariant) SetStock(quantity decimal.Decimal) (bool, error) {
	if quantity.IsNegative() {
		return false, ErrNegativeQuantity
	}
	if quantity.LessThan(v.ReservedQuantity) {
		return false, ErrStockBelowReserved
	}
	if quantity.Equal(v.StockQuantity) {
		return false, nil
	}
	v.StockQuantity = quantity
	v.touch()
	return true, nil
}

// Available returns stock minus reservations.
func (v *ProductVariant) Available() decimal.Decimal {
	return v.StockQuantity.Sub(v.ReservedQuantity)
}

// Reserve holds quantity for a cart or order.
func (v *ProductVariant) Reserve(quantity decimal.Decimal) error {
	if quantity.IsNegative() {
		return ErrNegativeQuantity
	}
	if quantity.GreaterThan(v.Available()) {
		return ErrInsufficientStock
	}
	v.ReservedQuantity = v.ReservedQuantity.Add(quantity)
	v.touch()
	return nil
}

// Release gives back a previous reservation.
func (v *ProductVariant) Release(quantity decimal.Decimal) error {
	if quantity.IsNegative() {
		return ErrNegativeQuantity
	}
	if quantity.GreaterThan(v.ReservedQuantity) {
		quantity = v.ReservedQuantity
	}
	v.ReservedQuantity = v.ReservedQuantity.Sub(quantity)
	v.touch()
	return nil
}

func (v *ProductVariant) touch() {
	v.Touch()
	v.IncrementVersion()
}
