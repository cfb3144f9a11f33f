package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/shared"
	"github.com/shop/backend/internal/domain/trade"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model for the Order domain entity.
type OrderModel struct {
	AggregateModel
	Number            int64             `gorm:"not null;uniqueIndex"`
	Status            trade.OrderStatus `gorm:"type:varchar(20);not null"`
	CustomerName      string            `gorm:"type:varchar(200)"`
	CustomerEmail     string            `gorm:"type:varchar(200)"`
	CustomerPhone     string            `gorm:"type:varchar(50)"`
	TotalAmount       decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	Comment           string            `gorm:"type:text"`
	SentTo1C          bool              `gorm:"column:sent_to_1c;not null;index"`
	SentTo1CAt        *time.Time        `gorm:"column:sent_to_1c_at"`
	Status1C          trade.ERPStatus   `gorm:"column:status_1c;type:varchar(20)"`
	Status1CUpdatedAt *time.Time        `gorm:"column:status_1c_updated_at"`
	PaidAt            *time.Time
	ShippedAt         *time.Time
	Items             []OrderItemModel `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order entity.
func (m *OrderModel) ToDomain() *trade.Order {
	o := &trade.Order{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Number:            m.Number,
		Status:            m.Status,
		CustomerName:      m.CustomerName,
		CustomerEmail:     m.CustomerEmail,
		CustomerPhone:     m.CustomerPhone,
		TotalAmount:       m.TotalAmount,
		Comment:           m.Comment,
		SentTo1C:          m.SentTo1C,
		SentTo1CAt:        m.SentTo1CAt,
		Status1C:          m.Status1C,
		Status1CUpdatedAt: m.Status1CUpdatedAt,
		PaidAt:            m.PaidAt,
		ShippedAt:         m.ShippedAt,
	}
	for _, item := range m.Items {
		o.Items = append(o.Items, item.ToDomain())
	}
	return o
}

// FromDomain populates the persistence model from a domain Order entity.
func (m *OrderModel) FromDomain(o *trade.Order) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.Number = o.Number
	m.Status = o.Status
	m.CustomerName = o.CustomerName
	m.CustomerEmail = o.CustomerEmail
	m.CustomerPhone = o.CustomerPhone
	m.TotalAmount = o.TotalAmount
	m.Comment = o.Comment
	m.SentTo1C = o.SentTo1C
	m.SentTo1CAt = o.SentTo1CAt
	m.Status1C = o.Status1C
	m.Status1CUpdatedAt = o.Status1CUpdatedAt
	m.PaidAt = o.PaidAt
	m.ShippedAt = o.ShippedAt
	m.Items = make([]OrderItemModel, 0, len(o.Items))
	for _, item := range o.Items {
		m.Items = append(m.Items, OrderItemModelFromDomain(item))
	}
}

// OrderItemModel is the persistence model for an order line.
type OrderItemModel struct {
	ID        uuid.UUID       `gorm:"type:uuid;primary_key"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	VariantID *uuid.UUID      `gorm:"type:uuid"`
	SKU       string          `gorm:"column:sku;type:varchar(100)"`
	Name      string          `gorm:"type:varchar(500);not null"`
	Quantity  decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Price     decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// ToDomain converts the persistence model to a domain OrderItem.
func (m OrderItemModel) ToDomain() trade.OrderItem {
	return trade.OrderItem{
		ID:        m.ID,
		OrderID:   m.OrderID,
		VariantID: m.VariantID,
		SKU:       m.SKU,
		Name:      m.Name,
		Quantity:  m.Quantity,
		Price:     m.Price,
	}
}

// OrderItemModelFromDomain creates a persistence model from a domain OrderItem.
func OrderItemModelFromDomain(i trade.OrderItem) OrderItemModel {
	return OrderItemModel{
		ID:        i.ID,
		OrderID:   i.OrderID,
		VariantID: i.VariantID,
		SKU:       i.SKU,
		Name:      i.Name,
		Quantity:  i.Quantity,
		Price:     i.Price,
	}
}

// ExportBatchModel is the persistence model for the ExportBatch domain entity.
type ExportBatchModel struct {
	BaseModel
	FileName       string                  `gorm:"type:varchar(255);not null"`
	StorageKey     string                  `gorm:"type:varchar(1000);not null"`
	Compressed     bool                    `gorm:"not null"`
	SizeBytes      int64                   `gorm:"not null;default:0"`
	AcknowledgedAt *time.Time              `gorm:"index"`
	Orders         []ExportBatchOrderModel `gorm:"foreignKey:BatchID;references:ID"`
}

// TableName returns the table name for GORM
func (ExportBatchModel) TableName() string {
	return "order_export_batches"
}

// ToDomain converts the persistence model to a domain ExportBatch entity.
func (m *ExportBatchModel) ToDomain() *trade.ExportBatch {
	b := &trade.ExportBatch{
		BaseEntity:     shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
		FileName:       m.FileName,
		StorageKey:     m.StorageKey,
		Compressed:     m.Compressed,
		SizeBytes:      m.SizeBytes,
		AcknowledgedAt: m.AcknowledgedAt,
	}
	for _, o := range m.Orders {
		b.OrderIDs = append(b.OrderIDs, o.OrderID)
	}
	return b
}

// FromDomain populates the persistence model from a domain ExportBatch entity.
func (m *ExportBatchModel) FromDomain(b *trade.ExportBatch) {
	m.FromDomainBaseEntity(b.BaseEntity)
	m.FileName = b.FileName
	m.StorageKey = b.StorageKey
	m.Compressed = b.Compressed
	m.SizeBytes = b.SizeBytes
	m.AcknowledgedAt = b.AcknowledgedAt
	m.Orders = make([]ExportBatchOrderModel, 0, len(b.OrderIDs))
	for _, id := range b.OrderIDs {
		m.Orders = append(m.Orders, ExportBatchOrderModel{BatchID: b.ID, OrderID: id})
	}
}

// ExportBatchOrderModel links an export batch to the orders it carries.
type ExportBatchOrderModel struct {
	BatchID uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

// TableName returns the table name for GORM
func (ExportBatchOrderModel) TableName() string {
	return "order_export_batch_orders"
}
