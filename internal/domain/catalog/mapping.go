package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/shared"
)

// ExternalMapping binds an ERP identifier to a canonical entity.
// Several mappings may point at the same entity (aliases).
type ExternalMapping struct {
	ID           uuid.UUID
	EntityID     uuid.UUID
	ExternalID   string
	ExternalName string
	CreatedAt    time.Time
}

// NewExternalMapping creates a mapping of externalID onto entityID.
func NewExternalMapping(entityID uuid.UUID, externalID, externalName string) (*ExternalMapping, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, shared.NewDomainError("INVALID_EXTERNAL_ID", "External ID cannot be empty")
	}
	if entityID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ENTITY", "Mapping must reference an entity")
	}
	return &ExternalMapping{
		ID:           uuid.New(),
		EntityID:     entityID,
		ExternalID:   externalID,
		ExternalName: strings.TrimSpace(externalName),
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// MappingRepository stores external mappings for every Kind.
type MappingRepository interface {
	FindByExternalID(ctx context.Context, kind Kind, externalID string) (*ExternalMapping, error)
	FindByEntity(ctx context.Context, kind Kind, entityID uuid.UUID) ([]ExternalMapping, error)
	Create(ctx context.Context, kind Kind, m *ExternalMapping) error
	// Repoint moves every mapping of from onto to and returns how many moved.
	Repoint(ctx context.Context, kind Kind, from, to uuid.UUID) (int64, error)
	DeleteByEntity(ctx context.Context, kind Kind, entityID uuid.UUID) error
}
