package trade

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// OrderStatus is the storefront status of an order.
type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusReturned   OrderStatus = "returned"
)

// ErrInvalidReference is returned for ERP references not matching prefix+number.
var ErrInvalidReference = shared.NewDomainError("INVALID_REFERENCE", "Order reference does not match the configured prefix")

// Order is a customer order. The ERP fields are written only by the status
// reconciler and the export acknowledgement.
type Order struct {
	shared.BaseAggregateRoot
	Number            int64
	Status            OrderStatus
	CustomerName      string
	CustomerEmail     string
	CustomerPhone     string
	TotalAmount       decimal.Decimal
	Comment           string
	Items             []OrderItem
	SentTo1C          bool
	SentTo1CAt        *time.Time
	Status1C          ERPStatus
	Status1CUpdatedAt *time.Time
	PaidAt            *time.Time
	ShippedAt         *time.Time
}

// OrderItem is one line of an order.
type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	VariantID *uuid.UUID
	SKU       string
	Name      string
	Quantity  decimal.Decimal
	Price     decimal.Decimal
}

// Amount returns quantity * price.
func (i OrderItem) Amount() decimal.Decimal {
	return i.Quantity.Mul(i.Price)
}

// NewOrder creates an order with its lines and computes the total.
func NewOrder(number int64, customerName string, items []OrderItem) (*Order, error) {
	if number <= 0 {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number must be positive")
	}
	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Number:            number,
		Status:            OrderStatusNew,
		CustomerName:      strings.TrimSpace(customerName),
		TotalAmount:       decimal.Zero,
	}
	for _, item := range items {
		item.ID = uuid.New()
		item.OrderID = o.ID
		o.Items = append(o.Items, item)
		o.TotalAmount = o.TotalAmount.Add(item.Amount())
	}
	return o, nil
}

// Reference renders the ERP-facing order reference.
func (o *Order) Reference(prefix string) string {
	return prefix + strconv.FormatInt(o.Number, 10)
}

// ParseOrderReference extracts the order number from prefix+digits.
func ParseOrderReference(prefix, reference string) (int64, error) {
	reference = strings.TrimSpace(reference)
	digits, ok := strings.CutPrefix(reference, prefix)
	if !ok || digits == "" {
		return 0, fmt.Errorf("%w: %q", ErrInvalidReference, reference)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidReference, reference)
		}
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidReference, reference)
	}
	return n, nil
}

// ERPUpdate is one status report for an order.
type ERPUpdate struct {
	Status     ERPStatus
	ReportedAt time.Time
	PaidAt     *time.Time
	ShippedAt  *time.Time
}

// ApplyERPStatus validates and applies an ERP status report. A repeated
// status is a no-op (changed=false). paid_at and shipped_at are set only the
// first time the matching status is reached.
func (o *Order) ApplyERPStatus(u ERPUpdate) (bool, error) {
	if u.Status == o.Status1C {
		return false, nil
	}
	if o.Status1CUpdatedAt != nil && u.ReportedAt.Before(*o.Status1CUpdatedAt) {
		return false, &TransitionError{Code: TransitionStale, From: o.Status1C, To: u.Status,
			Reason: fmt.Sprintf("update dated %s is older than the last applied one (%s)",
				u.ReportedAt.UTC().Format(time.RFC3339), o.Status1CUpdatedAt.UTC().Format(time.RFC3339))}
	}
	if !o.Status1C.CanTransitionTo(u.Status) {
		return false, &TransitionError{Code: TransitionInvalid, From: o.Status1C, To: u.Status}
	}

	reported := u.ReportedAt.UTC()
	o.Status1C = u.Status
	o.Status1CUpdatedAt = &reported
	o.Status = OrderStatus(u.Status)

	switch u.Status {
	case ERPStatusPaid:
		if o.PaidAt == nil {
			o.PaidAt = firstNonNil(u.PaidAt, reported)
		}
	case ERPStatusShipped, ERPStatusDelivered:
		if o.ShippedAt == nil {
			o.ShippedAt = firstNonNil(u.ShippedAt, reported)
		}
	}

	o.UpdatedAt = reported
	o.IncrementVersion()
	return true, nil
}

func firstNonNil(t *time.Time, fallback time.Time) *time.Time {
	if t != nil {
		v := t.UTC()
		return &v
	}
	v := fallback
	return &v
}

// MarkSent records the ERP acknowledgement of an export.
func (o *Order) MarkSent(at time.Time) {
	if o.SentTo1C {
		return
	}
	at = at.UTC()
	o.SentTo1C = true
	o.SentTo1CAt = &at
	o.IncrementVersion()
}

// UnsentFilter narrows FindUnsent.
type UnsentFilter struct {
	Limit         int
	Exclude       []uuid.UUID
	SkipCancelled bool
}

// OrderRepository persists orders for the exchange.
type OrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByNumber(ctx context.Context, number int64) (*Order, error)
	// FindUnsent returns orders not yet acknowledged by the ERP with their
	// items, ordered by number.
	FindUnsent(ctx context.Context, filter UnsentFilter) ([]Order, error)
	Create(ctx context.Context, o *Order) error
	// SaveERPFields writes status, status_1c and the ERP timestamps.
	SaveERPFields(ctx context.Context, o *Order) error
	// MarkSent flags every id as sent at the given time and returns how many changed.
	MarkSent(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error)
}
