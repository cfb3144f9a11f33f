package exchange

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/catalog"
	"github.com/shop/backend/internal/domain/shared"
	"github.com/shop/backend/internal/domain/trade"
	"github.com/shop/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	exportKeyPrefix     = "exports/"
	exportSchemaVersion = "2.08"
	defaultExportLimit  = 500
)

// ExportRequest selects what one export run produces.
type ExportRequest struct {
	Compress bool
	// Limit caps the number of orders; zero uses the configured limit.
	Limit int
}

// ExportResult describes an export run. Batch is nil when there was nothing to export.
type ExportResult struct {
	Batch  *trade.ExportBatch
	Orders int
}

// OrderExporterConfig holds the export settings.
type OrderExporterConfig struct {
	OrderPrefix   string
	Limit         int
	SkipCancelled bool
	Location      *time.Location
}

// OrderExporter renders unsent orders into ERP documents and records
// acknowledgements.
type OrderExporter struct {
	scope   TransactionScope
	storage ObjectStorage
	cfg     OrderExporterConfig
	clock   shared.Clock
	metrics *telemetry.SyncMetrics
	logger  *zap.Logger
}

// NewOrderExporter creates an OrderExporter.
func NewOrderExporter(scope TransactionScope, storage ObjectStorage, cfg OrderExporterConfig, clock shared.Clock, logger *zap.Logger) *OrderExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = shared.SystemClock
	}
	if cfg.OrderPrefix == "" {
		cfg.OrderPrefix = DefaultOrderPrefix
	}
	if cfg.Limit <= 0 {
		cfg.Limit = defaultExportLimit
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &OrderExporter{scope: scope, storage: storage, cfg: cfg, clock: clock, logger: logger}
}

// SetMetrics attaches sync metrics.
func (e *OrderExporter) SetMetrics(m *telemetry.SyncMetrics) {
	e.metrics = m
}

// Export writes every unsent order not already waiting in an unacknowledged
// batch into one document and records the batch. Orders stay unsent until
// the batch is acknowledged.
func (e *OrderExporter) Export(ctx context.Context, req ExportRequest) (_ *ExportResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "exchange", "ExportOrders",
		telemetry.WithAttribute("compress", req.Compress))
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	limit := req.Limit
	if limit <= 0 || limit > e.cfg.Limit {
		limit = e.cfg.Limit
	}
	now := e.clock()
	result := &ExportResult{}

	err = e.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		pending, err := repos.ExportBatchRepo().PendingOrderIDs(ctx)
		if err != nil {
			return fmt.Errorf("load pending batches: %w", err)
		}
		orders, err := repos.OrderRepo().FindUnsent(ctx, trade.UnsentFilter{
			Limit:         limit,
			Exclude:       pending,
			SkipCancelled: e.cfg.SkipCancelled,
		})
		if err != nil {
			return fmt.Errorf("load unsent orders: %w", err)
		}
		if len(orders) == 0 {
			return nil
		}

		doc, err := e.render(ctx, repos.MappingRepo(), orders, now)
		if err != nil {
			return err
		}
		name := "orders_" + now.In(e.cfg.Location).Format("20060102T150405") + "_" + uuid.NewString()[:8]
		data, contentType := doc, "application/xml"
		fileName := name + ".xml"
		if req.Compress {
			if data, err = zipDocument(fileName, doc, now); err != nil {
				return err
			}
			fileName, contentType = name+".zip", "application/zip"
		}

		ids := make([]uuid.UUID, len(orders))
		for i := range orders {
			ids[i] = orders[i].ID
		}
		batch, err := trade.NewExportBatch(ids, fileName, exportKeyPrefix+fileName, req.Compress, int64(len(data)))
		if err != nil {
			return err
		}
		if err := e.storage.Upload(ctx, batch.StorageKey, data, contentType); err != nil {
			return fmt.Errorf("upload export %s: %w", batch.StorageKey, err)
		}
		if err := repos.ExportBatchRepo().Create(ctx, batch); err != nil {
			return err
		}
		result.Batch, result.Orders = batch, len(orders)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Batch != nil {
		span.SetAttributes(attribute.String(telemetry.SpanAttrBatchID, result.Batch.ID.String()),
			attribute.Int("orders", result.Orders))
		e.metrics.RecordOrdersExported(ctx, result.Orders)
		e.logger.Info("Orders exported",
			zap.String("batch_id", result.Batch.ID.String()),
			zap.String("file", result.Batch.FileName),
			zap.Int("orders", result.Orders),
			zap.Bool("compressed", result.Batch.Compressed))
	}
	return result, nil
}

// Acknowledge marks every order of a batch as sent. Acknowledging a batch
// twice returns it unchanged.
func (e *OrderExporter) Acknowledge(ctx context.Context, batchID uuid.UUID) (*trade.ExportBatch, error) {
	var batch *trade.ExportBatch
	err := e.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		b, err := repos.ExportBatchRepo().FindByID(ctx, batchID)
		if err != nil {
			return err
		}
		batch = b
		now := e.clock()
		if !b.Acknowledge(now) {
			return nil
		}
		n, err := repos.OrderRepo().MarkSent(ctx, b.OrderIDs, now)
		if err != nil {
			return err
		}
		e.logger.Info("Export batch acknowledged",
			zap.String("batch_id", b.ID.String()),
			zap.Int64("orders_marked", n))
		return repos.ExportBatchRepo().Save(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

type exportDocument struct {
	XMLName       xml.Name         `xml:"КоммерческаяИнформация"`
	SchemaVersion string           `xml:"ВерсияСхемы,attr"`
	GeneratedAt   string           `xml:"ДатаФормирования,attr"`
	Documents     []exportOrderDoc `xml:"Документ"`
}

type exportOrderDoc struct {
	ID           string             `xml:"Ид"`
	Number       string             `xml:"Номер"`
	Date         string             `xml:"Дата"`
	Time         string             `xml:"Время"`
	Operation    string             `xml:"ХозОперация"`
	Role         string             `xml:"Роль"`
	Currency     string             `xml:"Валюта"`
	Total        string             `xml:"Сумма"`
	Counterparty exportCounterparty `xml:"Контрагенты>Контрагент"`
	Comment      string             `xml:"Комментарий,omitempty"`
	Items        []exportItem       `xml:"Товары>Товар"`
	Requisites   []exportRequisite  `xml:"ЗначенияРеквизитов>ЗначениеРеквизита"`
}

type exportCounterparty struct {
	Name     string          `xml:"Наименование"`
	Role     string          `xml:"Роль"`
	Contacts []exportContact `xml:"Контакты>Контакт,omitempty"`
}

type exportContact struct {
	Type  string `xml:"Тип"`
	Value string `xml:"Значение"`
}

type exportItem struct {
	ID       string `xml:"Ид"`
	SKU      string `xml:"Артикул,omitempty"`
	Name     string `xml:"Наименование"`
	Price    string `xml:"ЦенаЗаЕдиницу"`
	Quantity string `xml:"Количество"`
	Amount   string `xml:"Сумма"`
}

type exportRequisite struct {
	Name  string `xml:"Наименование"`
	Value string `xml:"Значение"`
}

func (e *OrderExporter) render(ctx context.Context, mappings catalog.MappingRepository, orders []trade.Order, now time.Time) ([]byte, error) {
	doc := exportDocument{
		SchemaVersion: exportSchemaVersion,
		GeneratedAt:   now.In(e.cfg.Location).Format("2006-01-02T15:04:05"),
	}
	for i := range orders {
		o := &orders[i]
		created := o.CreatedAt.In(e.cfg.Location)
		d := exportOrderDoc{
			ID:        o.ID.String(),
			Number:    o.Reference(e.cfg.OrderPrefix),
			Date:      created.Format("2006-01-02"),
			Time:      created.Format("15:04:05"),
			Operation: "Заказ товара",
			Role:      "Продавец",
			Currency:  "руб",
			Total:     o.TotalAmount.StringFixed(2),
			Comment:   o.Comment,
			Counterparty: exportCounterparty{
				Name: o.CustomerName,
				Role: "Покупатель",
			},
			Requisites: []exportRequisite{{Name: "Статус заказа", Value: string(o.Status)}},
		}
		if o.CustomerEmail != "" {
			d.Counterparty.Contacts = append(d.Counterparty.Contacts, exportContact{Type: "Почта", Value: o.CustomerEmail})
		}
		if o.CustomerPhone != "" {
			d.Counterparty.Contacts = append(d.Counterparty.Contacts, exportContact{Type: "Телефон", Value: o.CustomerPhone})
		}
		for _, item := range o.Items {
			id, err := itemExternalID(ctx, mappings, item)
			if err != nil {
				return nil, err
			}
			d.Items = append(d.Items, exportItem{
				ID:       id,
				SKU:      item.SKU,
				Name:     item.Name,
				Price:    item.Price.StringFixed(2),
				Quantity: item.Quantity.String(),
				Amount:   item.Amount().StringFixed(2),
			})
		}
		doc.Documents = append(doc.Documents, d)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("render order document: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// itemExternalID prefers the ERP id of the ordered variant and falls back to its SKU.
func itemExternalID(ctx context.Context, mappings catalog.MappingRepository, item trade.OrderItem) (string, error) {
	if item.VariantID != nil {
		ms, err := mappings.FindByEntity(ctx, catalog.KindVariant, *item.VariantID)
		if err != nil {
			return "", fmt.Errorf("load variant mapping: %w", err)
		}
		if len(ms) > 0 {
			return ms[0].ExternalID, nil
		}
	}
	if sku := strings.TrimSpace(item.SKU); sku != "" {
		return sku, nil
	}
	if item.VariantID != nil {
		return item.VariantID.String(), nil
	}
	return item.ID.String(), nil
}

func zipDocument(name string, doc []byte, at time.Time) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: at})
	if err != nil {
		return nil, fmt.Errorf("compress export: %w", err)
	}
	if _, err := w.Write(doc); err != nil {
		return nil, fmt.Errorf("compress export: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress export: %w", err)
	}
	return buf.Bytes(), nil
}
