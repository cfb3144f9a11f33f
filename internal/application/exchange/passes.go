package exchange

import (
	"context"
	"fmt"

	"github.com/shop/backend/internal/domain/exchange"
	"github.com/shop/backend/internal/infrastructure/commerceml"
)

// Pass is one step of an import run. Passes always run in the order of AllPasses.
type Pass string

const (
	PassCategories Pass = "categories"
	PassBrands     Pass = "brands"
	PassAttributes Pass = "attributes"
	PassPriceTypes Pass = "price_types"
	PassProducts   Pass = "products"
	PassVariants   Pass = "variants"
	PassPrices     Pass = "prices"
	PassStock      Pass = "stock"
	PassImages     Pass = "images"

	// PassOrderStatus is the single pass of order_status sessions.
	PassOrderStatus Pass = "order_status"
)

// AllPasses lists every pass in dependency order.
var AllPasses = []Pass{
	PassCategories,
	PassBrands,
	PassAttributes,
	PassPriceTypes,
	PassProducts,
	PassVariants,
	PassPrices,
	PassStock,
	PassImages,
}

var importPasses = map[exchange.ImportType][]Pass{
	exchange.ImportTypeCatalog:    {PassCategories, PassBrands, PassAttributes, PassProducts, PassImages},
	exchange.ImportTypeAttributes: {PassAttributes},
	exchange.ImportTypeOffers:     {PassPriceTypes, PassVariants, PassImages},
	exchange.ImportTypePrices:     {PassPriceTypes, PassPrices},
	exchange.ImportTypeStock:      {PassStock},
	exchange.ImportTypeFull:       AllPasses,

	exchange.ImportTypeOrderStatus: {PassOrderStatus},
}

// PassesFor returns the passes of an import type in execution order.
func PassesFor(t exchange.ImportType) []Pass {
	return importPasses[t]
}

func (p Pass) String() string { return string(p) }

// FeedDir is a directory of the exchange root holding one kind of document.
type FeedDir string

const (
	FeedDirGoods  FeedDir = "goods"
	FeedDirOffers FeedDir = "offers"
	FeedDirPrices FeedDir = "prices"
	FeedDirRests  FeedDir = "rests"
	FeedDirOrders FeedDir = "orders"
)

// Kind is the document kind stored in the directory.
func (d FeedDir) Kind() commerceml.FeedKind {
	switch d {
	case FeedDirGoods:
		return commerceml.FeedCatalog
	case FeedDirOffers:
		return commerceml.FeedOffers
	case FeedDirPrices:
		return commerceml.FeedPrices
	case FeedDirRests:
		return commerceml.FeedStock
	}
	return commerceml.FeedOrderStatus
}

// importDirs restricts which directories an import type reads.
var importDirs = map[exchange.ImportType][]FeedDir{
	exchange.ImportTypeCatalog:    {FeedDirGoods},
	exchange.ImportTypeAttributes: {FeedDirGoods},
	exchange.ImportTypeOffers:     {FeedDirOffers},
	exchange.ImportTypePrices:     {FeedDirPrices},
	exchange.ImportTypeStock:      {FeedDirRests},
	exchange.ImportTypeFull:       {FeedDirGoods, FeedDirOffers, FeedDirPrices, FeedDirRests},

	exchange.ImportTypeOrderStatus: {FeedDirOrders},
}

// Outcome is what a handler did with one record.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeAliased   Outcome = "aliased"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
)

func (o Outcome) apply(s *exchange.EntityStats) {
	switch o {
	case OutcomeCreated:
		s.Created++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeAliased:
		s.Aliased++
	case OutcomeSkipped:
		s.Skipped++
	default:
		s.Unchanged++
	}
}

// merge returns the more significant of two outcomes of the same record.
func (o Outcome) merge(other Outcome) Outcome {
	rank := func(x Outcome) int {
		switch x {
		case OutcomeCreated:
			return 4
		case OutcomeAliased:
			return 3
		case OutcomeUpdated:
			return 2
		case OutcomeUnchanged:
			return 1
		}
		return 0
	}
	if rank(other) > rank(o) {
		return other
	}
	return o
}

// PassHandler applies the records of one pass. Process runs inside the
// record's transaction and must only use repos.
type PassHandler interface {
	Pass() Pass
	// Kind names the report counters the pass feeds.
	Kind() string
	// Feeds lists the directories the pass reads, in order.
	Feeds() []FeedDir
	Accepts(t commerceml.RecordType) bool
	Process(ctx context.Context, repos TransactionalRepositories, rec commerceml.Record) (Outcome, error)
	// ParallelSafe reports whether records may be applied concurrently.
	ParallelSafe() bool
}

// passBeginner is implemented by handlers that need to inspect the exchange
// root before their first record.
type passBeginner interface {
	Begin(ctx context.Context, note func(string)) error
}

// PassTable is the lookup table of handlers keyed by pass.
type PassTable map[Pass]PassHandler

// Register adds h to the table.
func (t PassTable) Register(h PassHandler) {
	t[h.Pass()] = h
}

// Handler returns the handler of pass p.
func (t PassTable) Handler(p Pass) (PassHandler, error) {
	h, ok := t[p]
	if !ok {
		return nil, fmt.Errorf("no handler registered for pass %s", p)
	}
	return h, nil
}

// feedsFor intersects the directories of h with those enabled for importType.
func feedsFor(h PassHandler, importType exchange.ImportType) []FeedDir {
	enabled := importDirs[importType]
	var out []FeedDir
	for _, d := range h.Feeds() {
		for _, e := range enabled {
			if d == e {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

// unexpectedRecord is returned when the table routes a record to the wrong handler.
func unexpectedRecord(p Pass, rec commerceml.Record) error {
	return fmt.Errorf("pass %s cannot process %s records", p, rec.Type())
}
