package exchange

import (
	"fmt"

	"github.com/shop/backend/internal/domain/shared"
)

// ErrImportInProgress is returned when a non-terminal session of the same
// import type already exists.
var ErrImportInProgress = shared.NewConflictError("IMPORT_IN_PROGRESS", "An import of this type is already running")

// NewImportInProgressError describes the session blocking a new run.
func NewImportInProgressError(active *ImportSession) error {
	return fmt.Errorf("%w: session %s is %s (last update %s)", ErrImportInProgress,
		active.ID, active.Status, active.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"))
}
