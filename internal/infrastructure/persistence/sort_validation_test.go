package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shop/backend/internal/domain/exchange"
)

func TestValidateSortOrder(t *testing.T) {
	tests := map[string]string{
		"asc":   "ASC",
		" ASC ": "ASC",
		"desc":  "DESC",
		"":      "DESC",
		"up":    "DESC",
	}
	for in, want := range tests {
		assert.Equal(t, want, ValidateSortOrder(in), in)
	}
}

func TestValidateSortField(t *testing.T) {
	assert.Equal(t, "status", ValidateSortField(" status ", ImportSessionSortFields, "created_at"))
	assert.Equal(t, "created_at", ValidateSortField("", ImportSessionSortFields, "created_at"))
	assert.Equal(t, "created_at", ValidateSortField("report; DROP TABLE orders", ImportSessionSortFields, "created_at"))
	assert.Equal(t, "created_at", ValidateSortField("error_message", ImportSessionSortFields, "created_at"))
}

func TestSessionOrder(t *testing.T) {
	tests := []struct {
		name   string
		filter exchange.SessionFilter
		want   string
	}{
		{"default newest first", exchange.SessionFilter{}, "created_at DESC, id DESC"},
		{"field only", exchange.SessionFilter{SortBy: "finished_at"}, "finished_at DESC, id DESC"},
		{"ascending", exchange.SessionFilter{SortBy: "import_type", SortOrder: "asc"}, "import_type ASC, id ASC"},
		{"unknown field", exchange.SessionFilter{SortBy: "report", SortOrder: "asc"}, "created_at ASC, id ASC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sessionOrder(tt.filter))
		})
	}
}

func TestImportSessionRepository_ListSorted(t *testing.T) {
	db := setupExchangeTestDB(t)
	repo := NewGormImportSessionRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, it := range []exchange.ImportType{exchange.ImportTypeStock, exchange.ImportTypeCatalog, exchange.ImportTypePrices} {
		s, err := exchange.NewImportSession(it, exchange.TriggerScheduler, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, s))
	}

	types := func(filter exchange.SessionFilter) []exchange.ImportType {
		sessions, total, err := repo.List(ctx, filter)
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		out := make([]exchange.ImportType, 0, len(sessions))
		for _, s := range sessions {
			out = append(out, s.ImportType)
		}
		return out
	}

	assert.Equal(t,
		[]exchange.ImportType{exchange.ImportTypePrices, exchange.ImportTypeCatalog, exchange.ImportTypeStock},
		types(exchange.SessionFilter{}))
	assert.Equal(t,
		[]exchange.ImportType{exchange.ImportTypeCatalog, exchange.ImportTypePrices, exchange.ImportTypeStock},
		types(exchange.SessionFilter{SortBy: "import_type", SortOrder: "asc"}))
}
