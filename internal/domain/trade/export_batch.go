package trade

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/shared"
)

// ExportBatch is one order document handed to the ERP. Its orders count as
// sent only after the ERP acknowledges the batch.
type ExportBatch struct {
	shared.BaseEntity
	OrderIDs       []uuid.UUID
	FileName       string
	StorageKey     string
	Compressed     bool
	SizeBytes      int64
	AcknowledgedAt *time.Time
}

// NewExportBatch creates an unacknowledged batch.
func NewExportBatch(orderIDs []uuid.UUID, fileName, storageKey string, compressed bool, size int64) (*ExportBatch, error) {
	if len(orderIDs) == 0 {
		return nil, shared.NewDomainError("EMPTY_EXPORT", "Export batch must contain at least one order")
	}
	return &ExportBatch{
		BaseEntity: shared.NewBaseEntity(),
		OrderIDs:   orderIDs,
		FileName:   fileName,
		StorageKey: storageKey,
		Compressed: compressed,
		SizeBytes:  size,
	}, nil
}

// IsAcknowledged reports whether the ERP confirmed receipt.
func (b *ExportBatch) IsAcknowledged() bool {
	return b.AcknowledgedAt != nil
}

// Acknowledge records receipt; it returns false when already acknowledged.
func (b *ExportBatch) Acknowledge(at time.Time) bool {
	if b.AcknowledgedAt != nil {
		return false
	}
	at = at.UTC()
	b.AcknowledgedAt = &at
	b.UpdatedAt = at
	return true
}

// ExportBatchRepository persists export batches.
type ExportBatchRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ExportBatch, error)
	Create(ctx context.Context, b *ExportBatch) error
	Save(ctx context.Context, b *ExportBatch) error
	// PendingOrderIDs returns orders already included in an unacknowledged batch.
	PendingOrderIDs(ctx context.Context) ([]uuid.UUID, error)
}
