package trade

import (
	"fmt"

	"github.com/shop/backend/internal/domain/shared/textnorm"
)

// ERPStatus is an order status as reported by the ERP.
type ERPStatus string

const (
	ERPStatusNone       ERPStatus = ""
	ERPStatusNew        ERPStatus = "new"
	ERPStatusConfirmed  ERPStatus = "confirmed"
	ERPStatusPaid       ERPStatus = "paid"
	ERPStatusProcessing ERPStatus = "processing"
	ERPStatusShipped    ERPStatus = "shipped"
	ERPStatusDelivered  ERPStatus = "delivered"
	ERPStatusCancelled  ERPStatus = "cancelled"
	ERPStatusReturned   ERPStatus = "returned"
)

// erpTransitions is the complete table of forward moves. Anything missing is
// rejected, including every backward move.
var erpTransitions = map[ERPStatus][]ERPStatus{
	ERPStatusNew:        {ERPStatusConfirmed, ERPStatusPaid, ERPStatusProcessing, ERPStatusCancelled},
	ERPStatusConfirmed:  {ERPStatusPaid, ERPStatusProcessing, ERPStatusShipped, ERPStatusCancelled},
	ERPStatusPaid:       {ERPStatusProcessing, ERPStatusShipped, ERPStatusCancelled, ERPStatusReturned},
	ERPStatusProcessing: {ERPStatusShipped, ERPStatusCancelled},
	ERPStatusShipped:    {ERPStatusDelivered, ERPStatusReturned},
	ERPStatusDelivered:  {ERPStatusReturned},
}

// erpLabels maps normalized ERP labels onto statuses.
var erpLabels = map[string]ERPStatus{}

func init() {
	labels := map[ERPStatus][]string{
		ERPStatusNew:        {"new", "Новый", "Новый заказ", "Принят"},
		ERPStatusConfirmed:  {"confirmed", "Подтвержден", "Согласован"},
		ERPStatusPaid:       {"paid", "Оплачен"},
		ERPStatusProcessing: {"processing", "В работе", "Собирается", "В сборке", "Комплектуется"},
		ERPStatusShipped:    {"shipped", "Отгружен", "Отправлен", "Передан в доставку"},
		ERPStatusDelivered:  {"delivered", "Доставлен", "Выполнен", "Закрыт"},
		ERPStatusCancelled:  {"cancelled", "canceled", "Отменен", "Аннулирован"},
		ERPStatusReturned:   {"returned", "Возврат", "Возвращен"},
	}
	for status, names := range labels {
		for _, name := range names {
			erpLabels[textnorm.Normalize(name)] = status
		}
	}
}

// ParseERPStatus maps an ERP label ("Отгружен", "ОТГРУЖЁН", "shipped") to a status.
func ParseERPStatus(label string) (ERPStatus, error) {
	status, ok := erpLabels[textnorm.Normalize(label)]
	if !ok {
		return ERPStatusNone, &TransitionError{Code: TransitionUnknownStatus, To: ERPStatus(label),
			Reason: fmt.Sprintf("unknown ERP status %q", label)}
	}
	return status, nil
}

// IsValid checks if the status is valid
func (s ERPStatus) IsValid() bool {
	_, ok := erpTransitions[s]
	return ok || s == ERPStatusCancelled || s == ERPStatusReturned
}

// IsTerminal returns true if no further ERP status is accepted.
func (s ERPStatus) IsTerminal() bool {
	return s == ERPStatusCancelled || s == ERPStatusReturned
}

// CanTransitionTo reports whether s -> to is in the table. The first report
// for an order (s == ERPStatusNone) accepts any known status.
func (s ERPStatus) CanTransitionTo(to ERPStatus) bool {
	if !to.IsValid() {
		return false
	}
	if s == ERPStatusNone {
		return true
	}
	for _, next := range erpTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition codes reported in TransitionError.Code.
const (
	TransitionInvalid       = "INVALID_TRANSITION"
	TransitionStale         = "STALE_UPDATE"
	TransitionUnknownStatus = "UNKNOWN_STATUS"
)

// TransitionError rejects an ERP status update.
type TransitionError struct {
	Code   string
	From   ERPStatus
	To     ERPStatus
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("status transition %q -> %q is not allowed", e.From, e.To)
}
