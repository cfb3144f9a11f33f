package exchange

import (
	"fmt"
	"strings"

	"github.com/shop/backend/internal/domain/shared"
)

// ImportType identifies what a session synchronizes.
type ImportType string

const (
	ImportTypeCatalog     ImportType = "catalog"
	ImportTypeAttributes  ImportType = "attributes"
	ImportTypeOffers      ImportType = "offers"
	ImportTypePrices      ImportType = "prices"
	ImportTypeStock       ImportType = "stock"
	ImportTypeFull        ImportType = "full"
	ImportTypeOrderStatus ImportType = "order_status"
)

// ImportTypes lists every import type.
var ImportTypes = []ImportType{
	ImportTypeCatalog,
	ImportTypeAttributes,
	ImportTypeOffers,
	ImportTypePrices,
	ImportTypeStock,
	ImportTypeFull,
	ImportTypeOrderStatus,
}

// IsValid checks if the import type is valid
func (t ImportType) IsValid() bool {
	switch t {
	case ImportTypeCatalog, ImportTypeAttributes, ImportTypeOffers, ImportTypePrices,
		ImportTypeStock, ImportTypeFull, ImportTypeOrderStatus:
		return true
	}
	return false
}

// ParseImportType parses s into an ImportType.
func ParseImportType(s string) (ImportType, error) {
	t := ImportType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", shared.NewDomainError("INVALID_IMPORT_TYPE", fmt.Sprintf("Invalid import type: %s", s))
	}
	return t, nil
}

// Trigger records who asked for a session.
type Trigger string

const (
	TriggerScheduler Trigger = "scheduler"
	TriggerAdmin     Trigger = "admin"
	TriggerAPI       Trigger = "api"
)
