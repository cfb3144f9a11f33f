package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries identity and timestamps for rows the exchange writes.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity creates an entity with a fresh ID stamped with the wall clock.
// Callers holding an injected clock overwrite the timestamps.
func NewBaseEntity() BaseEntity {
	now := SystemClock()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// GetID returns the entity ID. Resolvers use it to link mappings generically.
func (e *BaseEntity) GetID() uuid.UUID {
	return e.ID
}

// Touch moves UpdatedAt to the wall clock.
func (e *BaseEntity) Touch() {
	e.UpdatedAt = SystemClock()
}

// BaseAggregateRoot adds the optimistic-lock version. Repositories compare it
// on save and bump it on success.
type BaseAggregateRoot struct {
	BaseEntity
	Version int
}

// NewBaseAggregateRoot creates an aggregate at version 1.
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: NewBaseEntity(), Version: 1}
}

// IncrementVersion records a successful save.
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}
