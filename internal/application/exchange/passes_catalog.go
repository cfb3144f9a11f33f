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

// lookupRef resolves a referenced entity or reports REFERENCE_NOT_FOUND
// against the record being processed.
func lookupRef[E any, P namedEntity[E], X any](ctx context.Context, repos TransactionalRepositories, r *Resolver[E, P, X], recordID, ref string) (*E, error) {
	e, err := r.Lookup(ctx, repos, ref)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, referenceNotFound(recordID, r.Kind(), ref)
	}
	return e, err
}

// attributeValueExternalID composes the mapping key of a property value.
// Dictionary values carry their own id; free text is keyed by its normalized form.
func attributeValueExternalID(attributeExternalID, valueExternalID, value string) string {
	if valueExternalID = strings.TrimSpace(valueExternalID); valueExternalID != "" {
		return attributeExternalID + ":" + valueExternalID
	}
	key := textnorm.Normalize(value)
	if key == "" {
		return ""
	}
	return attributeExternalID + ":" + key
}

// categoryHandler imports the classifier tree. Parents precede children in
// the feed, so the pass runs sequentially.
type categoryHandler struct {
	resolvers *Resolvers
}

func (h *categoryHandler) Pass() Pass         { return PassCategories }
func (h *categoryHandler) Kind() string       { return string(catalog.KindCategory) }
func (h *categoryHandler) Feeds() []FeedDir   { return []FeedDir{FeedDirGoods} }
func (h *categoryHandler) ParallelSafe() bool { return false }
func (h *categoryHandler) Accepts(t commerceml.RecordType) bool {
	return t == commerceml.RecordCategory
}

func (h *categoryHandler) Process(ctx context.Context, repos TransactionalRepositories, rec commerceml.Record) (Outcome, error) {
	r, ok := rec.(commerceml.CategoryRecord)
	if !ok {
		return "", unexpectedRecord(h.Pass(), rec)
	}
	var parent *catalog.Category
	if r.ParentExternalID != "" {
		p, err := lookupRef(ctx, repos, h.resolvers.Category, r.ExternalID, r.ParentExternalID)
		if err != nil {
			return "", err
		}
		parent = p
	}
	scope := catalog.TreeScope(nil)
	if parent != nil {
		scope = catalog.TreeScope(&parent.ID)
	}
	res, err := h.resolvers.Category.Resolve(ctx, repos, ResolveInput[CategoryExtra]{
		ExternalID: r.ExternalID,
		Name:       r.Name,
		Scope:      scope,
		Extra:      CategoryExtra{Parent: parent},
	})
	if err != nil {
		return "", err
	}
	return res.Outcome(), nil
}

type brandHandler struct {
	resolvers *Resolvers
}

func (h *brandHandler) Pass() Pass         { return PassBrands }
func (h *brandHandler) Kind() string       { return string(catalog.KindBrand) }
func (h *brandHandler) Feeds() []FeedDir   { return []FeedDir{FeedDirGoods} }
func (h *brandHandler) ParallelSafe() bool { return true }
func (h *brandHandler) Accepts(t commerceml.RecordType) bool {
	return t == commerceml.RecordBrand
}

func (h *brandHandler) Process(ctx context.Context, repos TransactionalRepositories, rec commerceml.Record) (Outcome, error) {
	r, ok := rec.(commerceml.BrandRecord)
	if !ok {
		return "", unexpectedRecord(h.Pass(), rec)
	}
	res, err := h.resolvers.Brand.Resolve(ctx, repos, ResolveInput[struct{}]{ExternalID: r.ExternalID, Name: r.Name})
	if err != nil {
		return "", err
	}
	return res.Outcome(), nil
}

// attributeHandler imports classifier properties with their dictionary values.
type attributeHandler struct {
	resolvers *Resolvers
}

func (h *attributeHandler) Pass() Pass         { return PassAttributes }
func (h *attributeHandler) Kind() string       { return string(catalog.KindAttribute) }
func (h *attributeHandler) Feeds() []FeedDir   { return []FeedDir{FeedDirGoods} }
func (h *attributeHandler) ParallelSafe() bool { return true }
func (h *attributeHandler) Accepts(t commerceml.RecordType) bool {
	return t == commerceml.RecordAttribute
}

func (h *attributeHandler) Process(ctx context.Context, repos TransactionalRepositories, rec commerceml.Record) (Outcome, error) {
	r, ok := rec.(commerceml.AttributeRecord)
	if !ok {
		return "", unexpectedRecord(h.Pass(), rec)
	}
	res, err := h.resolvers.Attribute.Resolve(ctx, repos, ResolveInput[struct{}]{ExternalID: r.ExternalID, Name: r.Name})
	if err != nil {
		return "", err
	}
	outcome := res.Outcome()
	attrID := res.Entity.ID
	for _, v := range r.Values {
		ext := attributeValueExternalID(r.ExternalID, v.ExternalID, v.Value)
		if ext == "" || textnorm.Normalize(v.Value) == "" {
			continue
		}
		vr, err := h.resolvers.AttributeValue.Resolve(ctx, repos, ResolveInput[AttributeValueExtra]{
			ExternalID: ext,
			Name:       v.Value,
			Scope:      attrID.String(),
			Extra:      AttributeValueExtra{AttributeID: attrID},
		})
		if err != nil {
			return "", err
		}
		if vr.Outcome() != OutcomeUnchanged && outcome == OutcomeUnchanged {
			outcome = OutcomeUpdated
		}
	}
	return outcome, nil
}

// productHandler imports catalog items and links their property values.
type productHandler struct {
	resolvers *Resolvers
}

func (h *productHandler) Pass() Pass         { return PassProducts }
func (h *productHandler) Kind() string       { return string(catalog.KindProduct) }
func (h *productHandler) Feeds() []FeedDir   { return []FeedDir{FeedDirGoods} }
func (h *productHandler) ParallelSafe() bool { return true }
func (h *productHandler) Accepts(t commerceml.RecordType) bool {
	return t == commerceml.RecordProduct
}

func (h *productHandler) Process(ctx context.Context, repos TransactionalRepositories, rec commerceml.Record) (Outcome, error) {
	r, ok := rec.(commerceml.ProductRecord)
	if !ok {
		return "", unexpectedRecord(h.Pass(), rec)
	}

	details := catalog.ProductDetails{SKU: r.SKU, Description: r.Description}
	if r.CategoryExternalID != "" {
		c, err := lookupRef(ctx, repos, h.resolvers.Category, r.ExternalID, r.CategoryExternalID)
		if err != nil {
			return "", err
		}
		details.CategoryID = &c.ID
	}
	if r.BrandExternalID != "" {
		b, err := lookupRef(ctx, repos, h.resolvers.Brand, r.ExternalID, r.BrandExternalID)
		if err != nil {
			return "", err
		}
		details.BrandID = &b.ID
	}

	res, err := h.resolvers.Product.Resolve(ctx, repos, ResolveInput[catalog.ProductDetails]{
		ExternalID: r.ExternalID,
		Name:       r.Name,
		Extra:      details,
	})
	if err != nil {
		return "", err
	}
	outcome := res.Outcome()

	valueIDs, err := h.propertyValues(ctx, repos, r.Properties)
	if err != nil {
		return "", err
	}
	productID := res.Entity.ID
	current, err := repos.ProductRepo().AttributeValueIDs(ctx, productID)
	if err != nil {
		return "", err
	}
	if !sameIDSet(current, valueIDs) {
		if err := repos.ProductRepo().SetAttributeValues(ctx, productID, valueIDs); err != nil {
			return "", err
		}
		if outcome == OutcomeUnchanged {
			outcome = OutcomeUpdated
		}
	}
	return outcome, nil
}

// propertyValues resolves the property values of a product. Properties of
// attributes that were never imported are skipped.
func (h *productHandler) propertyValues(ctx context.Context, repos TransactionalRepositories, props []commerceml.PropertyValue) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, p := range props {
		attr, err := h.resolvers.Attribute.Lookup(ctx, repos, p.AttributeExternalID)
		if errors.Is(err, shared.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		ext := attributeValueExternalID(p.AttributeExternalID, p.ValueExternalID, p.Value)
		if ext == "" {
			continue
		}
		if p.ValueExternalID != "" {
			v, err := h.resolvers.AttributeValue.Lookup(ctx, repos, ext)
			if err == nil {
				ids = append(ids, v.ID)
				continue
			}
			if !errors.Is(err, shared.ErrNotFound) {
				return nil, err
			}
		}
		if textnorm.Normalize(p.Value) == "" {
			continue
		}
		res, err := h.resolvers.AttributeValue.Resolve(ctx, repos, ResolveInput[AttributeValueExtra]{
			ExternalID: ext,
			Name:       p.Value,
			Scope:      attr.ID.String(),
			Extra:      AttributeValueExtra{AttributeID: attr.ID},
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, res.Entity.ID)
	}
	return ids, nil
}

func sameIDSet(a, b []uuid.UUID) bool {
	seen := make(map[uuid.UUID]struct{}, len(a))
	for _, id := range a {
		seen[id] = struct{}{}
	}
	other := make(map[uuid.UUID]struct{}, len(b))
	for _, id := range b {
		other[id] = struct{}{}
	}
	if len(seen) != len(other) {
		return false
	}
	for id := range other {
		if _, ok := seen[id]; !ok {
			return false
		}
	}
	return true
}
