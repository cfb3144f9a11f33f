package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/catalog"
	"github.com/shop/backend/internal/domain/shared"
	"github.com/shop/backend/internal/domain/shared/textnorm"
)

// maxResolveAttempts bounds the lookup/insert retries of one Resolve call
// when concurrent workers race on the same key.
const maxResolveAttempts = 3

// namedEntity is satisfied by pointers to the deduplicated catalog entities.
type namedEntity[E any] interface {
	*E
	catalog.Named
}

// ResolveInput is what a feed record says about one entity.
type ResolveInput[X any] struct {
	ExternalID string
	Name       string
	// Scope is the uniqueness scope of Name, "" for global entities.
	Scope string
	Extra X
}

// Resolution is the canonical entity a record resolved to.
type Resolution[E any] struct {
	Entity  *E
	Created bool
	Aliased bool
	Updated bool
}

// Outcome maps the resolution onto a record outcome.
func (r Resolution[E]) Outcome() Outcome {
	switch {
	case r.Created:
		return OutcomeCreated
	case r.Aliased:
		return OutcomeAliased
	case r.Updated:
		return OutcomeUpdated
	}
	return OutcomeUnchanged
}

// ResolverSpec describes one entity kind to the generic resolver.
type ResolverSpec[E any, P namedEntity[E], X any] struct {
	Kind catalog.Kind
	Repo func(repos TransactionalRepositories) catalog.NamedRepository[E]
	New  func(in ResolveInput[X]) (*E, error)
	// Refresh applies the mutable fields of in to an entity found through
	// its mapping and reports whether anything changed.
	Refresh func(ctx context.Context, repos TransactionalRepositories, e *E, in ResolveInput[X]) (bool, error)
}

// Resolver maps external identifiers onto canonical entities, deduplicating
// by normalized name within the entity's scope.
type Resolver[E any, P namedEntity[E], X any] struct {
	spec ResolverSpec[E, P, X]
}

// NewResolver creates a resolver for spec.
func NewResolver[E any, P namedEntity[E], X any](spec ResolverSpec[E, P, X]) *Resolver[E, P, X] {
	return &Resolver[E, P, X]{spec: spec}
}

// Kind returns the entity kind handled by the resolver.
func (r *Resolver[E, P, X]) Kind() catalog.Kind {
	return r.spec.Kind
}

// Resolve finds or creates the canonical entity for in.
//
// A known external id returns its entity with refreshed fields. Otherwise an
// active entity with the same key in scope gets an alias mapping, and only
// when none exists a new entity is created. Unique violations from a racing
// writer make the lookup run again so the loser attaches to the winner.
func (r *Resolver[E, P, X]) Resolve(ctx context.Context, repos TransactionalRepositories, in ResolveInput[X]) (Resolution[E], error) {
	in.ExternalID = strings.TrimSpace(in.ExternalID)
	if in.ExternalID == "" {
		return Resolution[E]{}, newRecordError(CodeRecordFailed, "", "%s without external id", r.spec.Kind)
	}

	entities := r.spec.Repo(repos)
	mappings := repos.MappingRepo()

	for attempt := 0; attempt < maxResolveAttempts; attempt++ {
		m, err := mappings.FindByExternalID(ctx, r.spec.Kind, in.ExternalID)
		if err == nil {
			return r.refresh(ctx, repos, entities, m.EntityID, in)
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return Resolution[E]{}, fmt.Errorf("find %s mapping %q: %w", r.spec.Kind, in.ExternalID, err)
		}

		key := textnorm.Normalize(in.Name)
		if key == "" {
			return Resolution[E]{}, catalog.ErrEmptyName
		}

		existing, err := entities.FindActiveByKey(ctx, in.Scope, key)
		switch {
		case err == nil:
			if err := r.attach(ctx, mappings, P(existing).GetID(), in); err != nil {
				if errors.Is(err, shared.ErrAlreadyExists) {
					continue
				}
				return Resolution[E]{}, err
			}
			return Resolution[E]{Entity: existing, Aliased: true}, nil
		case !errors.Is(err, shared.ErrNotFound):
			return Resolution[E]{}, fmt.Errorf("find %s by name: %w", r.spec.Kind, err)
		}

		created, err := r.spec.New(in)
		if err != nil {
			return Resolution[E]{}, err
		}
		if err := entities.Create(ctx, created); err != nil {
			if errors.Is(err, shared.ErrAlreadyExists) {
				continue
			}
			return Resolution[E]{}, fmt.Errorf("create %s: %w", r.spec.Kind, err)
		}
		id := P(created).GetID()
		if err := r.attach(ctx, mappings, id, in); err != nil {
			if errors.Is(err, shared.ErrAlreadyExists) {
				if delErr := entities.Delete(ctx, id); delErr != nil {
					return Resolution[E]{}, fmt.Errorf("discard duplicate %s: %w", r.spec.Kind, delErr)
				}
				continue
			}
			return Resolution[E]{}, err
		}
		return Resolution[E]{Entity: created, Created: true}, nil
	}
	return Resolution[E]{}, fmt.Errorf("%w: %s %q", ErrResolveContention, r.spec.Kind, in.ExternalID)
}

func (r *Resolver[E, P, X]) refresh(ctx context.Context, repos TransactionalRepositories, entities catalog.NamedRepository[E], id uuid.UUID, in ResolveInput[X]) (Resolution[E], error) {
	e, err := entities.FindByID(ctx, id)
	if err != nil {
		return Resolution[E]{}, fmt.Errorf("load mapped %s %s: %w", r.spec.Kind, id, err)
	}
	if r.spec.Refresh == nil {
		return Resolution[E]{Entity: e}, nil
	}
	// An alias spelling of the same key keeps the canonical display name.
	if textnorm.Normalize(in.Name) == P(e).Key() {
		in.Name = P(e).DisplayName()
	}
	changed, err := r.spec.Refresh(ctx, repos, e, in)
	if err != nil || !changed {
		return Resolution[E]{Entity: e}, err
	}
	if err := entities.Save(ctx, e); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return Resolution[E]{}, newRecordError(CodeNameConflict, in.ExternalID,
				"another active %s is already named %q", r.spec.Kind, in.Name)
		}
		return Resolution[E]{}, fmt.Errorf("save %s: %w", r.spec.Kind, err)
	}
	return Resolution[E]{Entity: e, Updated: true}, nil
}

func (r *Resolver[E, P, X]) attach(ctx context.Context, mappings catalog.MappingRepository, entityID uuid.UUID, in ResolveInput[X]) error {
	m, err := catalog.NewExternalMapping(entityID, in.ExternalID, in.Name)
	if err != nil {
		return err
	}
	if err := mappings.Create(ctx, r.spec.Kind, m); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return err
		}
		return fmt.Errorf("create %s mapping: %w", r.spec.Kind, err)
	}
	return nil
}

// Lookup returns the entity mapped to externalID without creating anything.
func (r *Resolver[E, P, X]) Lookup(ctx context.Context, repos TransactionalRepositories, externalID string) (*E, error) {
	m, err := repos.MappingRepo().FindByExternalID(ctx, r.spec.Kind, strings.TrimSpace(externalID))
	if err != nil {
		return nil, err
	}
	return r.spec.Repo(repos).FindByID(ctx, m.EntityID)
}
