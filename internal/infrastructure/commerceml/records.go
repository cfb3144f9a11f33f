package commerceml

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeedKind declares which document a byte stream holds.
type FeedKind string

const (
	FeedCatalog     FeedKind = "catalog"
	FeedOffers      FeedKind = "offers"
	FeedPrices      FeedKind = "prices"
	FeedStock       FeedKind = "stock"
	FeedOrderStatus FeedKind = "order_status"
)

// IsValid checks if the feed kind is valid
func (k FeedKind) IsValid() bool {
	switch k {
	case FeedCatalog, FeedOffers, FeedPrices, FeedStock, FeedOrderStatus:
		return true
	}
	return false
}

// RecordType tags the concrete type of a Record.
type RecordType string

const (
	RecordCategory    RecordType = "category"
	RecordAttribute   RecordType = "attribute"
	RecordBrand       RecordType = "brand"
	RecordProduct     RecordType = "product"
	RecordPriceType   RecordType = "price_type"
	RecordOffer       RecordType = "offer"
	RecordPrice       RecordType = "price"
	RecordStock       RecordType = "stock"
	RecordOrderStatus RecordType = "order_status"
)

// feedRecords lists the record types each feed kind yields.
var feedRecords = map[FeedKind][]RecordType{
	FeedCatalog:     {RecordCategory, RecordAttribute, RecordBrand, RecordProduct},
	FeedOffers:      {RecordPriceType, RecordOffer, RecordPrice, RecordStock},
	FeedPrices:      {RecordPriceType, RecordPrice},
	FeedStock:       {RecordStock},
	FeedOrderStatus: {RecordOrderStatus},
}

// Yields reports whether documents of kind k produce records of type t.
func (k FeedKind) Yields(t RecordType) bool {
	for _, rt := range feedRecords[k] {
		if rt == t {
			return true
		}
	}
	return false
}

// Record is one typed item read from a feed.
type Record interface {
	Type() RecordType
	Pos() Position
}

// Position locates a record in its source document.
type Position struct {
	Line       int
	ExternalID string
}

// Pos returns p; embedding types satisfy Record through it.
func (p Position) Pos() Position { return p }

// CategoryRecord is one node of the classifier tree. Parents precede children.
type CategoryRecord struct {
	Position
	Name             string
	ParentExternalID string
}

func (CategoryRecord) Type() RecordType { return RecordCategory }

// AttributeValueRef is one dictionary value of a property.
type AttributeValueRef struct {
	ExternalID string
	Value      string
}

// AttributeRecord is a classifier property with its dictionary values.
type AttributeRecord struct {
	Position
	Name   string
	Values []AttributeValueRef
}

func (AttributeRecord) Type() RecordType { return RecordAttribute }

// BrandRecord is a manufacturer referenced by products.
type BrandRecord struct {
	Position
	Name string
}

func (BrandRecord) Type() RecordType { return RecordBrand }

// PropertyValue is a product property value. ValueExternalID is set for
// dictionary properties; Value always carries the display text when known.
type PropertyValue struct {
	AttributeExternalID string
	ValueExternalID     string
	Value               string
}

// ProductRecord is a catalog item.
type ProductRecord struct {
	Position
	SKU                string
	Name               string
	Description        string
	CategoryExternalID string
	BrandExternalID    string
	Images             []string
	Properties         []PropertyValue
}

func (ProductRecord) Type() RecordType { return RecordProduct }

// PriceTypeRecord is a price list declaration.
type PriceTypeRecord struct {
	Position
	Name     string
	Currency string
}

func (PriceTypeRecord) Type() RecordType { return RecordPriceType }

// Characteristic is a name/value pair distinguishing a variant.
type Characteristic struct {
	Name  string
	Value string
}

// OfferRecord is a variant of a product. ExternalID has the form product#variant.
type OfferRecord struct {
	Position
	ProductExternalID string
	SKU               string
	Barcode           string
	Name              string
	Characteristics   []Characteristic
	Images            []string
}

func (OfferRecord) Type() RecordType { return RecordOffer }

// PriceValue is one price of a variant in one price list.
type PriceValue struct {
	PriceTypeExternalID string
	Value               decimal.Decimal
	Currency            string
}

// PriceRecord carries every price supplied for one variant.
type PriceRecord struct {
	Position
	Prices []PriceValue
}

func (PriceRecord) Type() RecordType { return RecordPrice }

// StockRecord is the on-hand quantity of a variant summed over warehouses.
type StockRecord struct {
	Position
	Quantity decimal.Decimal
}

func (StockRecord) Type() RecordType { return RecordStock }

// OrderStatusRecord is an ERP status report for one order.
type OrderStatusRecord struct {
	Position
	Reference  string
	Status     string
	ReportedAt *time.Time
	PaidAt     *time.Time
	ShippedAt  *time.Time
}

func (OrderStatusRecord) Type() RecordType { return RecordOrderStatus }
