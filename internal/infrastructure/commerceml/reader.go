// Package commerceml reads the XML documents exchanged with the 1C ERP
// (CommerceML 2) into typed records.
//
// The reader is a single-pass stream. DTDs are rejected outright and the
// decoder runs in strict mode without custom entities, so neither entity
// expansion nor external resolution can happen.
package commerceml

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shop/backend/internal/domain/shared/textnorm"
	"github.com/shopspring/decimal"
)

// DefaultMaxDocumentBytes bounds a single document.
const DefaultMaxDocumentBytes int64 = 512 << 20

// properties whose values name the manufacturer
var brandPropertyKeys = map[string]bool{
	textnorm.Normalize("Бренд"):          true,
	textnorm.Normalize("Brand"):          true,
	textnorm.Normalize("Производитель"):  true,
	textnorm.Normalize("Торговая марка"): true,
}

type item struct {
	rec Record
	err error
}

// Reader yields the records of one document.
type Reader struct {
	dec      *xml.Decoder
	kind     FeedKind
	loc      *time.Location
	queue    []item
	stack    []string
	rootSeen bool
	done     bool
	fatal    error

	seenBrands map[string]struct{}
	// property id -> dictionary value id -> display value
	dictionaries map[string]map[string]string
	brandProps   map[string]bool
}

// Option configures a Reader.
type Option func(*readerOptions)

type readerOptions struct {
	loc      *time.Location
	maxBytes int64
}

// WithLocation sets the time zone dates without offset are read in.
func WithLocation(loc *time.Location) Option {
	return func(o *readerOptions) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// WithMaxBytes bounds the document size; zero or less keeps the default.
func WithMaxBytes(n int64) Option {
	return func(o *readerOptions) {
		if n > 0 {
			o.maxBytes = n
		}
	}
}

// NewReader creates a Reader over r for documents of the given kind.
func NewReader(r io.Reader, kind FeedKind, opts ...Option) (*Reader, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("unknown feed kind %q", kind)
	}
	o := readerOptions{loc: time.UTC, maxBytes: DefaultMaxDocumentBytes}
	for _, opt := range opts {
		opt(&o)
	}

	br := bufio.NewReader(&sizeLimitedReader{r: r, remaining: o.maxBytes})
	// UTF-8 BOM: 0xEF, 0xBB, 0xBF
	if head, err := br.Peek(3); err == nil && bytes.Equal(head, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}

	dec := xml.NewDecoder(br)
	dec.Strict = true
	dec.CharsetReader = charsetReader

	return &Reader{
		dec:          dec,
		kind:         kind,
		loc:          o.loc,
		seenBrands:   make(map[string]struct{}),
		dictionaries: make(map[string]map[string]string),
		brandProps:   make(map[string]bool),
	}, nil
}

// Kind returns the declared feed kind.
func (r *Reader) Kind() FeedKind { return r.kind }

// Next returns the next record. A *RecordError means one record was skipped
// and reading may continue; a *ParseError is final. io.EOF marks the end,
// and the reader cannot be rewound.
func (r *Reader) Next() (Record, error) {
	for {
		if len(r.queue) > 0 {
			it := r.queue[0]
			r.queue = r.queue[1:]
			return it.rec, it.err
		}
		if r.fatal != nil {
			return nil, r.fatal
		}
		if r.done {
			return nil, io.EOF
		}
		r.advance()
	}
}

func (r *Reader) line() int {
	line, _ := r.dec.InputPos()
	return line
}

func (r *Reader) fail(err error) {
	r.fatal = &ParseError{Line: r.line(), Err: err}
}

func (r *Reader) emit(rec Record) {
	r.queue = append(r.queue, item{rec: rec})
}

func (r *Reader) reject(err *RecordError) {
	r.queue = append(r.queue, item{err: err})
}

func (r *Reader) parent() string {
	if len(r.stack) == 0 {
		return ""
	}
	return r.stack[len(r.stack)-1]
}

func (r *Reader) within(name string) bool {
	for _, s := range r.stack {
		if s == name {
			return true
		}
	}
	return false
}

// advance consumes tokens until at least one item is queued or the document ends.
func (r *Reader) advance() {
	for len(r.queue) == 0 && r.fatal == nil && !r.done {
		tok, err := r.dec.Token()
		if err == io.EOF {
			switch {
			case !r.rootSeen:
				r.fail(fmt.Errorf("%w: document is empty", ErrUnexpectedRoot))
			case len(r.stack) > 0:
				r.fail(io.ErrUnexpectedEOF)
			default:
				r.done = true
			}
			return
		}
		if err != nil {
			r.fail(err)
			return
		}

		switch t := tok.(type) {
		case xml.Directive:
			r.fail(ErrDTDNotAllowed)
		case xml.StartElement:
			r.start(t)
		case xml.EndElement:
			if len(r.stack) > 0 {
				r.stack = r.stack[:len(r.stack)-1]
			}
		}
	}
}

func (r *Reader) start(t xml.StartElement) {
	name := t.Name.Local
	if !r.rootSeen {
		if name != rootElement {
			r.fail(fmt.Errorf("%w: <%s>", ErrUnexpectedRoot, name))
			return
		}
		r.rootSeen = true
		r.stack = append(r.stack, name)
		return
	}
	if len(r.stack) == 0 {
		r.fail(fmt.Errorf("%w: second root <%s>", ErrUnexpectedRoot, name))
		return
	}

	line := r.line()
	parent := r.parent()
	var err error
	switch {
	case name == "Группа" && parent == "Группы" && r.within(classifierElement):
		err = r.readGroup(t, line)
	case name == "Свойство" && parent == "Свойства":
		err = r.readProperty(t, line)
	case name == "Товар" && parent == "Товары":
		err = r.readProduct(t, line)
	case name == "ТипЦены" && parent == "ТипыЦен":
		err = r.readPriceType(t, line)
	case name == "Предложение" && parent == "Предложения":
		err = r.readOffer(t, line)
	case name == "Документ":
		err = r.readDocument(t, line)
	default:
		r.stack = append(r.stack, name)
		return
	}
	if err != nil {
		r.fail(err)
	}
}

// decode reads the element t into v, or skips it when the feed does not
// yield any of the given record types.
func (r *Reader) decode(t xml.StartElement, v any, types ...RecordType) (bool, error) {
	wanted := false
	for _, rt := range types {
		if r.kind.Yields(rt) {
			wanted = true
			break
		}
	}
	if !wanted {
		return false, r.dec.Skip()
	}
	if err := r.dec.DecodeElement(v, &t); err != nil {
		return false, err
	}
	return true, nil
}

func (r *Reader) readGroup(t xml.StartElement, line int) error {
	var g xmlGroup
	ok, err := r.decode(t, &g, RecordCategory)
	if !ok || err != nil {
		return err
	}
	r.flattenGroup(g, "", line)
	return nil
}

// flattenGroup emits g before its children so parents always come first.
func (r *Reader) flattenGroup(g xmlGroup, parentID string, line int) {
	id := strings.TrimSpace(g.ID)
	name := strings.TrimSpace(g.Name)
	switch {
	case id == "":
		r.reject(missingField(line, "Группа", "", "Ид"))
	case name == "":
		r.reject(missingField(line, "Группа", id, "Наименование"))
	default:
		r.emit(CategoryRecord{
			Position:         Position{Line: line, ExternalID: id},
			Name:             name,
			ParentExternalID: parentID,
		})
	}
	for _, child := range g.Children {
		r.flattenGroup(child, id, line)
	}
}

func (r *Reader) readProperty(t xml.StartElement, line int) error {
	var p xmlProperty
	// property dictionaries are needed to resolve brand values on products
	if r.kind != FeedCatalog {
		return r.dec.Skip()
	}
	if err := r.dec.DecodeElement(&p, &t); err != nil {
		return err
	}
	id := strings.TrimSpace(p.ID)
	name := strings.TrimSpace(p.Name)
	if id == "" {
		r.reject(missingField(line, "Свойство", "", "Ид"))
		return nil
	}
	if name == "" {
		r.reject(missingField(line, "Свойство", id, "Наименование"))
		return nil
	}

	rec := AttributeRecord{Position: Position{Line: line, ExternalID: id}, Name: name}
	dict := make(map[string]string, len(p.Values))
	for _, v := range p.Values {
		vid, val := strings.TrimSpace(v.ID), strings.TrimSpace(v.Value)
		if vid == "" || val == "" {
			continue
		}
		dict[vid] = val
		rec.Values = append(rec.Values, AttributeValueRef{ExternalID: vid, Value: val})
	}
	r.dictionaries[id] = dict
	if brandPropertyKeys[textnorm.Normalize(name)] {
		r.brandProps[id] = true
	}
	r.emit(rec)
	return nil
}

func (r *Reader) readProduct(t xml.StartElement, line int) error {
	var p xmlProduct
	ok, err := r.decode(t, &p, RecordProduct, RecordBrand)
	if !ok || err != nil {
		return err
	}

	id := strings.TrimSpace(p.ID)
	name := strings.TrimSpace(p.Name)
	if id == "" {
		r.reject(missingField(line, "Товар", "", "Ид"))
		return nil
	}
	if name == "" {
		r.reject(missingField(line, "Товар", id, "Наименование"))
		return nil
	}

	rec := ProductRecord{
		Position:    Position{Line: line, ExternalID: id},
		SKU:         strings.TrimSpace(p.SKU),
		Name:        name,
		Description: strings.TrimSpace(p.Description),
		Images:      cleanPaths(p.Images),
	}
	for _, g := range p.Groups {
		if g = strings.TrimSpace(g); g != "" {
			rec.CategoryExternalID = g
			break
		}
	}

	var brand *BrandRecord
	if m := p.Manufacturer; m != nil && strings.TrimSpace(m.Name) != "" {
		bid := strings.TrimSpace(m.ID)
		if bid == "" {
			bid = strings.TrimSpace(m.Name)
		}
		brand = &BrandRecord{Position: Position{Line: line, ExternalID: bid}, Name: strings.TrimSpace(m.Name)}
	}

	for _, pv := range p.Properties {
		propID := strings.TrimSpace(pv.ID)
		if propID == "" {
			continue
		}
		for _, raw := range pv.Values {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			value := PropertyValue{AttributeExternalID: propID, Value: raw}
			if display, ok := r.dictionaries[propID][raw]; ok {
				value.ValueExternalID = raw
				value.Value = display
			}
			rec.Properties = append(rec.Properties, value)
			if brand == nil && r.brandProps[propID] {
				bid := value.ValueExternalID
				if bid == "" {
					bid = value.Value
				}
				brand = &BrandRecord{Position: Position{Line: line, ExternalID: bid}, Name: value.Value}
			}
		}
	}

	if brand != nil {
		rec.BrandExternalID = brand.ExternalID
		if _, seen := r.seenBrands[brand.ExternalID]; !seen && r.kind.Yields(RecordBrand) {
			r.seenBrands[brand.ExternalID] = struct{}{}
			r.emit(*brand)
		}
	}
	r.emit(rec)
	return nil
}

func (r *Reader) readPriceType(t xml.StartElement, line int) error {
	var p xmlPriceType
	ok, err := r.decode(t, &p, RecordPriceType)
	if !ok || err != nil {
		return err
	}
	id := strings.TrimSpace(p.ID)
	name := strings.TrimSpace(p.Name)
	if id == "" {
		r.reject(missingField(line, "ТипЦены", "", "Ид"))
		return nil
	}
	if name == "" {
		r.reject(missingField(line, "ТипЦены", id, "Наименование"))
		return nil
	}
	r.emit(PriceTypeRecord{
		Position: Position{Line: line, ExternalID: id},
		Name:     name,
		Currency: strings.TrimSpace(p.Currency),
	})
	return nil
}

func (r *Reader) readOffer(t xml.StartElement, line int) error {
	var o xmlOffer
	ok, err := r.decode(t, &o, RecordOffer, RecordPrice, RecordStock)
	if !ok || err != nil {
		return err
	}
	id := strings.TrimSpace(o.ID)
	if id == "" {
		r.reject(missingField(line, "Предложение", "", "Ид"))
		return nil
	}
	pos := Position{Line: line, ExternalID: id}

	if r.kind.Yields(RecordOffer) {
		r.offerRecord(o, pos)
	}
	if r.kind.Yields(RecordPrice) && (len(o.Prices) > 0 || r.kind == FeedPrices) {
		r.priceRecord(o, pos)
	}
	if r.kind.Yields(RecordStock) {
		r.stockRecord(o, pos)
	}
	return nil
}

func (r *Reader) offerRecord(o xmlOffer, pos Position) {
	productID, _ := splitOfferID(pos.ExternalID)
	rec := OfferRecord{
		Position:          pos,
		ProductExternalID: productID,
		SKU:               strings.TrimSpace(o.SKU),
		Barcode:           strings.TrimSpace(o.Barcode),
		Name:              strings.TrimSpace(o.Name),
		Images:            cleanPaths(o.Images),
	}
	var values []string
	for _, c := range o.Characteristics {
		name, value := strings.TrimSpace(c.Name), strings.TrimSpace(c.Value)
		if name == "" || value == "" {
			continue
		}
		rec.Characteristics = append(rec.Characteristics, Characteristic{Name: name, Value: value})
		values = append(values, value)
	}
	if rec.Name == "" {
		rec.Name = strings.Join(values, " / ")
	}
	if rec.Name == "" {
		r.reject(missingField(pos.Line, "Предложение", pos.ExternalID, "Наименование"))
		return
	}
	r.emit(rec)
}

func (r *Reader) priceRecord(o xmlOffer, pos Position) {
	if len(o.Prices) == 0 {
		r.reject(missingField(pos.Line, "Предложение", pos.ExternalID, "Цены"))
		return
	}
	rec := PriceRecord{Position: pos}
	for _, p := range o.Prices {
		typeID := strings.TrimSpace(p.PriceTypeID)
		if typeID == "" {
			r.reject(missingField(pos.Line, "Цена", pos.ExternalID, "ИдТипаЦены"))
			return
		}
		value, err := ParseDecimal(p.PerUnit)
		if err != nil {
			r.reject(newRecordError(pos.Line, "Цена", pos.ExternalID, ErrCodeInvalidNumber,
				fmt.Sprintf("ЦенаЗаЕдиницу: %v", err)))
			return
		}
		rec.Prices = append(rec.Prices, PriceValue{
			PriceTypeExternalID: typeID,
			Value:               value,
			Currency:            strings.TrimSpace(p.Currency),
		})
	}
	r.emit(rec)
}

func (r *Reader) stockRecord(o xmlOffer, pos Position) {
	var raws []string
	for _, rest := range o.Rests {
		switch {
		case rest.Quantity != nil:
			raws = append(raws, *rest.Quantity)
		case rest.Warehouse != nil:
			raws = append(raws, rest.Warehouse.Quantity)
		}
	}
	if len(raws) == 0 {
		for _, w := range o.Warehouses {
			raws = append(raws, w.Quantity)
		}
	}
	if len(raws) == 0 && o.Quantity != nil {
		raws = append(raws, *o.Quantity)
	}
	if len(raws) == 0 {
		// offers documents may legitimately carry no stock
		if r.kind == FeedStock {
			r.reject(missingField(pos.Line, "Предложение", pos.ExternalID, "Количество"))
		}
		return
	}

	total := decimal.Zero
	for _, raw := range raws {
		q, err := ParseDecimal(raw)
		if err != nil {
			r.reject(newRecordError(pos.Line, "Количество", pos.ExternalID, ErrCodeInvalidNumber, err.Error()))
			return
		}
		total = total.Add(q)
	}
	r.emit(StockRecord{Position: pos, Quantity: total})
}

func (r *Reader) readDocument(t xml.StartElement, line int) error {
	var d xmlDocument
	ok, err := r.decode(t, &d, RecordOrderStatus)
	if !ok || err != nil {
		return err
	}
	ref := strings.TrimSpace(d.Number)
	if ref == "" {
		r.reject(missingField(line, "Документ", strings.TrimSpace(d.ID), "Номер"))
		return nil
	}
	rec := OrderStatusRecord{Position: Position{Line: line, ExternalID: ref}, Reference: ref}

	requisites := make(map[string]string, len(d.Requisites))
	for _, req := range d.Requisites {
		requisites[textnorm.Normalize(req.Name)] = strings.TrimSpace(req.Value)
	}
	rec.Status = firstValue(requisites, "Статус заказа", "Статус", "Статус заказа 1С")
	if rec.Status == "" {
		r.reject(missingField(line, "Документ", ref, "Статус заказа"))
		return nil
	}

	dates := []struct {
		dst   **time.Time
		value string
		field string
	}{
		{&rec.PaidAt, firstValue(requisites, "Дата оплаты"), "Дата оплаты"},
		{&rec.ShippedAt, firstValue(requisites, "Дата отгрузки"), "Дата отгрузки"},
		{&rec.ReportedAt, firstValue(requisites, "Дата изменения статуса"), "Дата изменения статуса"},
	}
	for _, dt := range dates {
		if dt.value == "" {
			continue
		}
		parsed, err := ParseDate(dt.value, r.loc)
		if err != nil {
			r.reject(newRecordError(line, dt.field, ref, ErrCodeInvalidDate, err.Error()))
			return nil
		}
		*dt.dst = &parsed
	}
	if rec.ReportedAt == nil && strings.TrimSpace(d.Date) != "" {
		raw := strings.TrimSpace(d.Date)
		if tm := strings.TrimSpace(d.Time); tm != "" {
			raw += " " + tm
		}
		parsed, err := ParseDate(raw, r.loc)
		if err != nil {
			r.reject(newRecordError(line, "Дата", ref, ErrCodeInvalidDate, err.Error()))
			return nil
		}
		rec.ReportedAt = &parsed
	}
	r.emit(rec)
	return nil
}

func firstValue(m map[string]string, names ...string) string {
	for _, n := range names {
		if v := m[textnorm.Normalize(n)]; v != "" {
			return v
		}
	}
	return ""
}

func cleanPaths(paths []string) []string {
	var out []string
	for _, p := range paths {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitOfferID(id string) (string, string) {
	product, variant, _ := strings.Cut(id, "#")
	return product, variant
}

// Count reads src to the end and returns how many records of the accepted
// types it holds, counting skipped records too.
func Count(src Source, kind FeedKind, accept func(RecordType) bool, opts ...Option) (int, error) {
	rc, err := src.Open()
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	rd, err := NewReader(rc, kind, opts...)
	if err != nil {
		return 0, err
	}
	n := 0
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			if IsRecordError(err) {
				n++
				continue
			}
			return n, err
		}
		if accept == nil || accept(rec.Type()) {
			n++
		}
	}
}
