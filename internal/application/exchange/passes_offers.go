package exchange

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/catalog"
	"github.com/shop/backend/internal/domain/shared"
	"github.com/shop/backend/internal/domain/shared/textnorm"
	"github.com/shop/backend/internal/infrastructure/commerceml"
)

// characteristicPrefix namespaces attributes created from offer characteristics.
const characteristicPrefix = "characteristic:"

// PriceFieldMap maps normalized price type names onto variant price fields.
type PriceFieldMap map[string]catalog.PriceField

// NewPriceFieldMap builds the map from configuration, where keys are price
// type names in any spelling and values are field names.
func NewPriceFieldMap(raw map[string]string) (PriceFieldMap, error) {
	m := make(PriceFieldMap, len(raw))
	for name, field := range raw {
		f, err := catalog.ParsePriceField(field)
		if err != nil {
			return nil, err
		}
		if key := textnorm.Normalize(name); key != "" {
			m[key] = f
		}
	}
	return m, nil
}

// FieldFor returns the field a price type feeds, PriceFieldNone when unmapped.
func (m PriceFieldMap) FieldFor(name string) catalog.PriceField {
	return m[textnorm.Normalize(name)]
}

type priceTypeHandler struct {
	resolvers *Resolvers
	fields    PriceFieldMap
}

func (h *priceTypeHandler) Pass() Pass         { return PassPriceTypes }
func (h *priceTypeHandler) Kind() string       { return string(catalog.KindPriceType) }
func (h *priceTypeHandler) Feeds() []FeedDir   { return []FeedDir{FeedDirOffers, FeedDirPrices} }
func (h *priceTypeHandler) ParallelSafe() bool { return true }
func (h *priceTypeHandler) Accepts(t commerceml.RecordType) bool {
	return t == commerceml.RecordPriceType
}

func (h *priceTypeHandler) Process(ctx context.Context, repos TransactionalRepositories, rec commerceml.Record) (Outcome, error) {
	r, ok := rec.(commerceml.PriceTypeRecord)
	if !ok {
		return "", unexpectedRecord(h.Pass(), rec)
	}
	res, err := h.resolvers.PriceType.Resolve(ctx, repos, ResolveInput[PriceTypeExtra]{
		ExternalID: r.ExternalID,
		Name:       r.Name,
		Extra:      PriceTypeExtra{Currency: r.Currency, Field: h.fields.FieldFor(r.Name)},
	})
	if err != nil {
		return "", err
	}
	return res.Outcome(), nil
}

// variantHandler imports offers as variants of already imported products.
type variantHandler struct {
	resolvers *Resolvers
}

func (h *variantHandler) Pass() Pass         { return PassVariants }
func (h *variantHandler) Kind() string       { return string(catalog.KindVariant) }
func (h *variantHandler) Feeds() []FeedDir   { return []FeedDir{FeedDirOffers} }
func (h *variantHandler) ParallelSafe() bool { return true }
func (h *variantHandler) Accepts(t commerceml.RecordType) bool {
	return t == commerceml.RecordOffer
}

func (h *variantHandler) Process(ctx context.Context, repos TransactionalRepositories, rec commerceml.Record) (Outcome, error) {
	r, ok := rec.(commerceml.OfferRecord)
	if !ok {
		return "", unexpectedRecord(h.Pass(), rec)
	}
	productExt := r.ProductExternalID
	if productExt == "" {
		productExt, _ = catalog.SplitVariantExternalID(r.ExternalID)
	}
	product, err := lookupRef(ctx, repos, h.resolvers.Product, r.ExternalID, productExt)
	if err != nil {
		return "", err
	}

	res, err := h.resolvers.Variant.Resolve(ctx, repos, ResolveInput[VariantExtra]{
		ExternalID: r.ExternalID,
		Name:       variantName(r, product),
		Scope:      product.ID.String(),
		Extra:      VariantExtra{ProductID: product.ID, SKU: r.SKU, Barcode: r.Barcode},
	})
	if err != nil {
		return "", err
	}
	outcome := res.Outcome()

	if len(r.Characteristics) > 0 {
		ids, err := h.characteristicValues(ctx, repos, r.Characteristics)
		if err != nil {
			return "", err
		}
		if err := repos.VariantRepo().SetAttributeValues(ctx, res.Entity.ID, ids); err != nil {
			return "", err
		}
	}
	return outcome, nil
}

// variantName uses the offer name, or builds one from the product name and
// the characteristic values so sibling variants do not collapse into one.
func variantName(r commerceml.OfferRecord, product *catalog.Product) string {
	if name := strings.TrimSpace(r.Name); textnorm.Normalize(name) != "" {
		return name
	}
	parts := []string{product.Name}
	for _, c := range r.Characteristics {
		if v := strings.TrimSpace(c.Value); v != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 1 {
		if _, variant := catalog.SplitVariantExternalID(r.ExternalID); variant != "" {
			parts = append(parts, variant)
		}
	}
	return strings.Join(parts, " ")
}

func (h *variantHandler) characteristicValues(ctx context.Context, repos TransactionalRepositories, chars []commerceml.Characteristic) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(chars))
	for _, c := range chars {
		nameKey := textnorm.Normalize(c.Name)
		if nameKey == "" || textnorm.Normalize(c.Value) == "" {
			continue
		}
		attrExt := characteristicPrefix + nameKey
		attr, err := h.resolvers.Attribute.Resolve(ctx, repos, ResolveInput[struct{}]{ExternalID: attrExt, Name: c.Name})
		if err != nil {
			return nil, err
		}
		val, err := h.resolvers.AttributeValue.Resolve(ctx, repos, ResolveInput[AttributeValueExtra]{
			ExternalID: attributeValueExternalID(attrExt, "", c.Value),
			Name:       c.Value,
			Scope:      attr.Entity.ID.String(),
			Extra:      AttributeValueExtra{AttributeID: attr.Entity.ID},
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, val.Entity.ID)
	}
	return ids, nil
}

// priceHandler writes prices into the variant fields mapped by their price types.
type priceHandler struct {
	resolvers *Resolvers
}

func (h *priceHandler) Pass() Pass         { return PassPrices }
func (h *priceHandler) Kind() string       { return "price" }
func (h *priceHandler) Feeds() []FeedDir   { return []FeedDir{FeedDirOffers, FeedDirPrices} }
func (h *priceHandler) ParallelSafe() bool { return true }
func (h *priceHandler) Accepts(t commerceml.RecordType) bool {
	return t == commerceml.RecordPrice
}

func (h *priceHandler) Process(ctx context.Context, repos TransactionalRepositories, rec commerceml.Record) (Outcome, error) {
	r, ok := rec.(commerceml.PriceRecord)
	if !ok {
		return "", unexpectedRecord(h.Pass(), rec)
	}
	variant, err := lookupRef(ctx, repos, h.resolvers.Variant, r.ExternalID, r.ExternalID)
	if err != nil {
		return "", err
	}

	var (
		applied       int
		changed       bool
		explicitRRP   bool
		retailApplied bool
	)
	for _, p := range r.Prices {
		pt, err := h.resolvers.PriceType.Lookup(ctx, repos, p.PriceTypeExternalID)
		if errors.Is(err, shared.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		if pt.Field == catalog.PriceFieldNone {
			continue
		}
		c, err := variant.SetPrice(pt.Field, p.Value)
		if err != nil {
			return "", err
		}
		applied++
		changed = changed || c
		switch pt.Field {
		case catalog.PriceFieldRRP:
			explicitRRP = true
		case catalog.PriceFieldRetail:
			retailApplied = true
		}
	}
	if applied == 0 {
		return OutcomeSkipped, nil
	}
	if retailApplied && !explicitRRP {
		c, err := variant.SetPrice(catalog.PriceFieldRRP, *variant.Price(catalog.PriceFieldRetail))
		if err != nil {
			return "", err
		}
		changed = changed || c
	}
	if !changed {
		return OutcomeUnchanged, nil
	}
	if err := repos.VariantRepo().Save(ctx, variant); err != nil {
		return "", err
	}
	return OutcomeUpdated, nil
}

// stockHandler replaces on-hand quantities.
type stockHandler struct {
	resolvers *Resolvers
}

func (h *stockHandler) Pass() Pass         { return PassStock }
func (h *stockHandler) Kind() string       { return "stock" }
func (h *stockHandler) Feeds() []FeedDir   { return []FeedDir{FeedDirOffers, FeedDirRests} }
func (h *stockHandler) ParallelSafe() bool { return true }
func (h *stockHandler) Accepts(t commerceml.RecordType) bool {
	return t == commerceml.RecordStock
}

func (h *stockHandler) Process(ctx context.Context, repos TransactionalRepositories, rec commerceml.Record) (Outcome, error) {
	r, ok := rec.(commerceml.StockRecord)
	if !ok {
		return "", unexpectedRecord(h.Pass(), rec)
	}
	variant, err := lookupRef(ctx, repos, h.resolvers.Variant, r.ExternalID, r.ExternalID)
	if err != nil {
		return "", err
	}
	changed, err := variant.SetStock(r.Quantity)
	switch {
	case errors.Is(err, catalog.ErrStockBelowReserved):
		return "", newRecordError(CodeStockBelowReserved, r.ExternalID,
			"stock %s is below reserved quantity %s", r.Quantity.String(), variant.ReservedQuantity.String())
	case errors.Is(err, catalog.ErrNegativeQuantity):
		return "", newRecordError(CodeInvalidQuantity, r.ExternalID, "negative stock %s", r.Quantity.String())
	case err != nil:
		return "", err
	}
	if !changed {
		return OutcomeUnchanged, nil
	}
	if err := repos.VariantRepo().Save(ctx, variant); err != nil {
		return "", err
	}
	return OutcomeUpdated, nil
}
