package persistence

import (
	"strings"

	"github.com/shop/backend/internal/domain/exchange"
)

// ValidateSortOrder normalizes orderDir to ASC or DESC, defaulting to DESC.
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "ASC") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns sortField when allowed lists it, else defaultField.
// Column names are interpolated into ORDER BY, so nothing outside the
// whitelist may pass.
func ValidateSortField(sortField string, allowed map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if allowed[trimmed] {
		return trimmed
	}
	return defaultField
}

// ImportSessionSortFields are the sortable import_sessions columns.
var ImportSessionSortFields = map[string]bool{
	"created_at":  true,
	"updated_at":  true,
	"started_at":  true,
	"finished_at": true,
	"import_type": true,
	"status":      true,
}

// sessionOrder builds the ORDER BY clause for a session listing. id breaks
// ties so pages stay stable.
func sessionOrder(filter exchange.SessionFilter) string {
	field := ValidateSortField(filter.SortBy, ImportSessionSortFields, "created_at")
	dir := ValidateSortOrder(filter.SortOrder)
	return field + " " + dir + ", id " + dir
}
