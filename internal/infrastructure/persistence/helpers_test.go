package persistence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/exchange"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func newPendingSession(t *testing.T, id uuid.UUID) *exchange.ImportSession {
	t.Helper()
	s, err := exchange.NewImportSession(exchange.ImportTypeCatalog, exchange.TriggerAPI, time.Now().UTC())
	require.NoError(t, err)
	s.ID = id
	return s
}
