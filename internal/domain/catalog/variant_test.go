package catalog

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVariant(t *testing.T) *ProductVariant {
	t.Helper()
	v, err := NewProductVariant(uuid.New(), "Red / 42", "SKU-1", "4600000000001")
	require.NoError(t, err)
	return v
}

func TestSplitVariantExternalID(t *testing.T) {
	p, v := SplitVariantExternalID("abc-123#var-9")
	assert.Equal(t, "abc-123", p)
	assert.Equal(t, "var-9", v)

	p, v = SplitVariantExternalID("abc-123")
	assert.Equal(t, "abc-123", p)
	assert.Equal(t, "", v)
}

func TestProductVariant_SetPrice(t *testing.T) {
	v := newTestVariant(t)

	changed, err := v.SetPrice(PriceFieldRetail, decimal.RequireFromString("1990.50"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, v.RetailPrice.Equal(decimal.RequireFromString("1990.5")))

	changed, err = v.SetPrice(PriceFieldRetail, decimal.RequireFromString("1990.5"))
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = v.SetPrice(PriceFieldNone, decimal.NewFromInt(1))
	assert.Error(t, err)

	_, err = v.SetPrice(PriceFieldRRP, decimal.NewFromInt(-1))
	assert.Error(t, err)
	assert.Nil(t, v.Price(PriceFieldRRP))
}

func TestProductVariant_Stock(t *testing.T) {
	v := newTestVariant(t)

	_, err := v.SetStock(decimal.NewFromInt(10))
	require.NoError(t, err)
	require.NoError(t, v.Reserve(decimal.NewFromInt(4)))
	assert.True(t, v.Available().Equal(decimal.NewFromInt(6)))

	t.Run("stock below reserved is rejected", func(t *testing.T) {
		_, err := v.SetStock(decimal.NewFromInt(3))
		assert.ErrorIs(t, err, ErrStockBelowReserved)
		assert.True(t, v.StockQuantity.Equal(decimal.NewFromInt(10)))
	})

	t.Run("negative stock is rejected", func(t *testing.T) {
		_, err := v.SetStock(decimal.NewFromInt(-1))
		assert.ErrorIs(t, err, ErrNegativeQuantity)
	})

	t.Run("reserve beyond available", func(t *testing.T) {
		assert.ErrorIs(t, v.Reserve(decimal.NewFromInt(7)), ErrInsufficientStock)
	})

	t.Run("release caps at reserved", func(t *testing.T) {
		require.NoError(t, v.Release(decimal.NewFromInt(100)))
		assert.True(t, v.ReservedQuantity.IsZero())
	})
}

func TestPriceField(t *testing.T) {
	f, err := ParsePriceField(" RRP ")
	require.NoError(t, err)
	assert.Equal(t, PriceFieldRRP, f)

	_, err = ParsePriceField("wholesale")
	assert.Error(t, err)
}

func TestPriceType_Update(t *testing.T) {
	pt, err := NewPriceType("Розничная", "RUB", PriceFieldRetail)
	require.NoError(t, err)

	changed, err := pt.Update("Розничная", "", PriceFieldNone)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, PriceFieldRetail, pt.Field)

	changed, err = pt.Update("Розничная ", "RUB", PriceFieldOpt1)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, PriceFieldOpt1, pt.Field)
}

func TestProduct_Update(t *testing.T) {
	brand := uuid.New()
	p, err := NewProduct("Sneaker", ProductDetails{SKU: "A-1", BrandID: &brand})
	require.NoError(t, err)

	changed, err := p.Update("Sneaker", ProductDetails{SKU: "A-1"})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, brand, *p.BrandID)

	other := uuid.New()
	changed, err = p.Update("Sneaker", ProductDetails{BrandID: &other})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, other, *p.BrandID)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "brand_mappings", KindBrand.MappingTable())
	assert.Equal(t, "attribute_value_mappings", KindAttributeValue.MappingTable())
	assert.True(t, KindVariant.IsValid())
	assert.False(t, Kind("warehouse").IsValid())
}
