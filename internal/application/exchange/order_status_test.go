package exchange_test

import (
	"context"
	"testing"
	"time"

	appexchange "github.com/shop/backend/internal/application/exchange"
	"github.com/shop/backend/internal/domain/exchange"
	"github.com/shop/backend/internal/domain/trade"
	"github.com/shop/backend/internal/infrastructure/commerceml"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createOrder(t *testing.T, env *testEnv, number int64) *trade.Order {
	t.Helper()
	o, err := trade.NewOrder(number, "Иван Петров", []trade.OrderItem{
		{SKU: "A-1", Name: "Кроссовки", Quantity: decimal.NewFromInt(2), Price: decimal.NewFromInt(1500)},
	})
	require.NoError(t, err)
	env.inTx(t, func(repos appexchange.TransactionalRepositories) error {
		return repos.OrderRepo().Create(context.Background(), o)
	})
	return o
}

func loadOrder(t *testing.T, env *testEnv, number int64) *trade.Order {
	t.Helper()
	var o *trade.Order
	env.inTx(t, func(repos appexchange.TransactionalRepositories) error {
		var err error
		o, err = repos.OrderRepo().FindByNumber(context.Background(), number)
		return err
	})
	return o
}

func TestOrderStatusReconciler_Reconcile(t *testing.T) {
	env := newTestEnv(t)
	clock := newFakeClock()
	r := appexchange.NewOrderStatusReconciler("SHOP-", clock.Now, nil)
	ctx := context.Background()
	createOrder(t, env, 42)

	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		v := t0.Add(d)
		return &v
	}
	reconcile := func(status string, reportedAt *time.Time) (appexchange.Outcome, error) {
		var (
			outcome appexchange.Outcome
			rerr    error
		)
		env.inTx(t, func(repos appexchange.TransactionalRepositories) error {
			outcome, rerr = r.Reconcile(ctx, repos.OrderRepo(), commerceml.OrderStatusRecord{
				Reference:  "SHOP-42",
				Status:     status,
				ReportedAt: reportedAt,
			})
			return nil
		})
		return outcome, rerr
	}

	t.Run("first report sets paid_at", func(t *testing.T) {
		outcome, err := reconcile("Оплачен", at(0))
		require.NoError(t, err)
		assert.Equal(t, appexchange.OutcomeUpdated, outcome)

		o := loadOrder(t, env, 42)
		assert.Equal(t, trade.ERPStatusPaid, o.Status1C)
		assert.Equal(t, trade.OrderStatusPaid, o.Status)
		require.NotNil(t, o.PaidAt)
		assert.True(t, o.PaidAt.Equal(t0))
		assert.Nil(t, o.ShippedAt)
	})

	t.Run("repeated status is unchanged and keeps paid_at", func(t *testing.T) {
		outcome, err := reconcile("ОПЛАЧЕН", at(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, appexchange.OutcomeUnchanged, outcome)
		assert.True(t, loadOrder(t, env, 42).PaidAt.Equal(t0))
	})

	t.Run("forward move sets shipped_at", func(t *testing.T) {
		outcome, err := reconcile("Отгружен", at(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, appexchange.OutcomeUpdated, outcome)
		o := loadOrder(t, env, 42)
		require.NotNil(t, o.ShippedAt)
		assert.True(t, o.ShippedAt.Equal(t0.Add(2*time.Hour)))
	})

	t.Run("backward move is rejected", func(t *testing.T) {
		_, err := reconcile("Оплачен", at(3*time.Hour))
		var te *trade.TransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, trade.TransitionInvalid, te.Code)
		assert.Equal(t, trade.ERPStatusShipped, loadOrder(t, env, 42).Status1C)
	})

	t.Run("report older than the last applied one is rejected", func(t *testing.T) {
		_, err := reconcile("Доставлен", at(time.Hour))
		var te *trade.TransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, trade.TransitionStale, te.Code)
	})

	t.Run("unknown status is rejected", func(t *testing.T) {
		_, err := reconcile("Потерян", at(4*time.Hour))
		var te *trade.TransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, trade.TransitionUnknownStatus, te.Code)
	})

	t.Run("missing report date uses the clock", func(t *testing.T) {
		clock.Advance(24 * time.Hour)
		outcome, err := reconcile("Доставлен", nil)
		require.NoError(t, err)
		assert.Equal(t, appexchange.OutcomeUpdated, outcome)
		o := loadOrder(t, env, 42)
		require.NotNil(t, o.Status1CUpdatedAt)
		assert.True(t, o.Status1CUpdatedAt.Equal(clock.Now()))
		assert.True(t, o.ShippedAt.Equal(t0.Add(2*time.Hour)), "shipped_at is never overwritten")
	})
}

func TestOrderStatusReconciler_References(t *testing.T) {
	env := newTestEnv(t)
	r := appexchange.NewOrderStatusReconciler("", nil, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		ref  string
		code string
	}{
		{name: "foreign prefix", ref: "XYZ-1", code: appexchange.CodeInvalidReference},
		{name: "no digits", ref: "SHOP-", code: appexchange.CodeInvalidReference},
		{name: "unknown order", ref: "SHOP-999", code: appexchange.CodeReferenceNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.scope.Execute(ctx, func(repos appexchange.TransactionalRepositories) error {
				_, err := r.Reconcile(ctx, repos.OrderRepo(), commerceml.OrderStatusRecord{Reference: tt.ref, Status: "Оплачен"})
				return err
			})
			var re *appexchange.RecordError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tt.code, re.Code)
		})
	}
}

const orderStatusFeed = `<?xml version="1.0" encoding="UTF-8"?>
<КоммерческаяИнформация>
<Документ><Номер>SHOP-1</Номер><Дата>2026-03-01</Дата><Время>09:00:00</Время>
  <ЗначенияРеквизитов><ЗначениеРеквизита><Наименование>Статус заказа</Наименование><Значение>Оплачен</Значение></ЗначениеРеквизита></ЗначенияРеквизитов>
</Документ>
<Документ><Номер>SHOP-2</Номер>
  <ЗначенияРеквизитов><ЗначениеРеквизита><Наименование>Статус заказа</Наименование><Значение>Потерян</Значение></ЗначениеРеквизита></ЗначенияРеквизитов>
</Документ>
<Документ><Номер>SHOP-99</Номер>
  <ЗначенияРеквизитов><ЗначениеРеквизита><Наименование>Статус заказа</Наименование><Значение>Оплачен</Значение></ЗначениеРеквизита></ЗначенияРеквизитов>
</Документ>
</КоммерческаяИнформация>`

func TestProcessor_OrderStatusSession(t *testing.T) {
	env := newTestEnv(t)
	createOrder(t, env, 1)
	createOrder(t, env, 2)
	env.writeFeed(t, "orders/status.xml", orderStatusFeed)
	p := env.processor(appexchange.ProcessorConfig{OrderPrefix: "SHOP-"})

	s := newSession(t, env, exchange.ImportTypeOrderStatus)
	require.NoError(t, p.Run(context.Background(), s))

	got := reload(t, env, s)
	assert.Equal(t, exchange.SessionStatusCompleted, got.Status)
	assert.Equal(t, 1, got.Details.Stats("order").Updated)
	assert.Equal(t, 2, got.Details.ErrorCount)

	codes := []string{}
	for _, issue := range got.Details.Errors {
		codes = append(codes, issue.Code)
	}
	assert.ElementsMatch(t, []string{trade.TransitionUnknownStatus, appexchange.CodeReferenceNotFound}, codes)

	assert.Equal(t, trade.ERPStatusPaid, loadOrder(t, env, 1).Status1C)
	assert.Equal(t, trade.ERPStatusNone, loadOrder(t, env, 2).Status1C)
}
