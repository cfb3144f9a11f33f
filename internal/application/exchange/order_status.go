package exchange

import (
	"context"
	"errors"

	"github.com/shop/backend/internal/domain/shared"
	"github.com/shop/backend/internal/domain/trade"
	"github.com/shop/backend/internal/infrastructure/commerceml"
	"github.com/shop/backend/internal/infrastructure/telemetry"
)

// DefaultOrderPrefix precedes order numbers in ERP references.
const DefaultOrderPrefix = "SHOP-"

// OrderStatusReconciler applies ERP order status reports. It is the handler
// of the order_status pass, so reports run through the same per-record
// transactions, error budget and checkpoints as catalog imports.
type OrderStatusReconciler struct {
	prefix  string
	clock   shared.Clock
	metrics *telemetry.SyncMetrics
}

// NewOrderStatusReconciler creates a reconciler for references of the form prefix+number.
func NewOrderStatusReconciler(prefix string, clock shared.Clock, metrics *telemetry.SyncMetrics) *OrderStatusReconciler {
	if prefix == "" {
		prefix = DefaultOrderPrefix
	}
	if clock == nil {
		clock = shared.SystemClock
	}
	return &OrderStatusReconciler{prefix: prefix, clock: clock, metrics: metrics}
}

func (r *OrderStatusReconciler) Pass() Pass         { return PassOrderStatus }
func (r *OrderStatusReconciler) Kind() string       { return "order" }
func (r *OrderStatusReconciler) Feeds() []FeedDir   { return []FeedDir{FeedDirOrders} }
func (r *OrderStatusReconciler) ParallelSafe() bool { return false }
func (r *OrderStatusReconciler) Accepts(t commerceml.RecordType) bool {
	return t == commerceml.RecordOrderStatus
}

func (r *OrderStatusReconciler) Process(ctx context.Context, repos TransactionalRepositories, rec commerceml.Record) (Outcome, error) {
	report, ok := rec.(commerceml.OrderStatusRecord)
	if !ok {
		return "", unexpectedRecord(r.Pass(), rec)
	}
	return r.Reconcile(ctx, repos.OrderRepo(), report)
}

// Reconcile validates one status report and applies it to its order.
// A repeated status is unchanged; invalid, backward and stale reports are
// returned as *trade.TransitionError.
func (r *OrderStatusReconciler) Reconcile(ctx context.Context, orders trade.OrderRepository, report commerceml.OrderStatusRecord) (Outcome, error) {
	ref := report.Reference
	if ref == "" {
		ref = report.ExternalID
	}
	number, err := trade.ParseOrderReference(r.prefix, ref)
	if err != nil {
		return "", newRecordError(CodeInvalidReference, ref, "reference must be %q followed by the order number", r.prefix)
	}
	status, err := trade.ParseERPStatus(report.Status)
	if err != nil {
		return "", err
	}

	order, err := orders.FindByNumber(ctx, number)
	if errors.Is(err, shared.ErrNotFound) {
		return "", newRecordError(CodeReferenceNotFound, ref, "order %d does not exist", number)
	}
	if err != nil {
		return "", err
	}

	reportedAt := r.clock().UTC()
	if report.ReportedAt != nil {
		reportedAt = report.ReportedAt.UTC()
	}
	changed, err := order.ApplyERPStatus(trade.ERPUpdate{
		Status:     status,
		ReportedAt: reportedAt,
		PaidAt:     report.PaidAt,
		ShippedAt:  report.ShippedAt,
	})
	if err != nil {
		var te *trade.TransitionError
		if errors.As(err, &te) {
			r.metrics.RecordOrderStatusUpdate(ctx, string(status), te.Code)
		}
		return "", err
	}
	if !changed {
		r.metrics.RecordOrderStatusUpdate(ctx, string(status), string(OutcomeUnchanged))
		return OutcomeUnchanged, nil
	}
	if err := orders.SaveERPFields(ctx, order); err != nil {
		return "", err
	}
	r.metrics.RecordOrderStatusUpdate(ctx, string(status), string(OutcomeUpdated))
	return OutcomeUpdated, nil
}
