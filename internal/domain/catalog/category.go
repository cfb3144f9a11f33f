package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/shared"
)

// RootScope is the tree scope of top-level categories.
const RootScope = "root"

// maxCategoryWalk bounds parent-chain walks so a corrupt loop already stored
// in the database cannot hang the walker.
const maxCategoryWalk = 1024

// ErrCircularReference is returned when a move would make a category its own ancestor.
var ErrCircularReference = shared.NewConflictError("CIRCULAR_REFERENCE", "Category cannot be moved under itself or one of its descendants")

// Category is a node of the catalog tree. Names are unique among active
// siblings, not globally.
type Category struct {
	shared.BaseAggregateRoot
	Naming
	ParentID *uuid.UUID
	Level    int
}

// TreeScope returns the uniqueness scope for children of parentID.
func TreeScope(parentID *uuid.UUID) string {
	if parentID == nil {
		return RootScope
	}
	return parentID.String()
}

// NewCategory creates a category under parent (nil for a root category).
func NewCategory(name string, parent *Category) (*Category, error) {
	naming, err := NewNaming(name)
	if err != nil {
		return nil, err
	}
	c := &Category{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Naming:            naming,
	}
	c.attach(parent)
	return c, nil
}

// Scope implements Named.
func (c *Category) Scope() string {
	return TreeScope(c.ParentID)
}

// Rename changes the display name.
func (c *Category) Rename(name string) (bool, error) {
	changed, err := c.Naming.Rename(name)
	if err != nil || !changed {
		return changed, err
	}
	c.Touch()
	c.IncrementVersion()
	return true, nil
}

// SameParent reports whether parentID is the current parent.
func (c *Category) SameParent(parentID *uuid.UUID) bool {
	if c.ParentID == nil || parentID == nil {
		return c.ParentID == nil && parentID == nil
	}
	return *c.ParentID == *parentID
}

// MoveTo re-parents the category. Callers must run HasCircularReference first
// and RelevelDescendants after.
func (c *Category) MoveTo(parent *Category) error {
	if parent != nil && parent.ID == c.ID {
		return ErrCircularReference
	}
	c.attach(parent)
	c.Touch()
	c.IncrementVersion()
	return nil
}

func (c *Category) attach(parent *Category) {
	if parent == nil {
		c.ParentID = nil
		c.Level = 0
		return
	}
	id := parent.ID
	c.ParentID = &id
	c.Level = parent.Level + 1
}

// CategoryTree loads and saves the children of a category.
type CategoryTree interface {
	FindChildren(ctx context.Context, parentID *uuid.UUID) ([]Category, error)
	Save(ctx context.Context, c *Category) error
}

// RelevelDescendants rewrites the level of every category below root after
// root moved. It returns the number of categories saved.
func RelevelDescendants(ctx context.Context, tree CategoryTree, root *Category) (int, error) {
	saved := 0
	queue := []*Category{root}
	visited := map[uuid.UUID]struct{}{root.ID: {}}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		id := parent.ID
		children, err := tree.FindChildren(ctx, &id)
		if err != nil {
			return saved, fmt.Errorf("load children of %s: %w", parent.ID, err)
		}
		for i := range children {
			child := &children[i]
			if _, seen := visited[child.ID]; seen {
				continue
			}
			visited[child.ID] = struct{}{}
			if want := parent.Level + 1; child.Level != want {
				child.Level = want
				child.Touch()
				if err := tree.Save(ctx, child); err != nil {
					return saved, fmt.Errorf("save category %s: %w", child.ID, err)
				}
				saved++
			}
			queue = append(queue, child)
		}
	}
	return saved, nil
}

// CategoryFinder loads categories by id.
type CategoryFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Category, error)
}

// HasCircularReference reports whether making newParentID the parent of
// nodeID would create a cycle. It walks upward from newParentID and returns
// true when it meets nodeID.
func HasCircularReference(ctx context.Context, finder CategoryFinder, nodeID uuid.UUID, newParentID *uuid.UUID) (bool, error) {
	if newParentID == nil {
		return false, nil
	}
	current := *newParentID
	visited := make(map[uuid.UUID]struct{})
	for i := 0; i < maxCategoryWalk; i++ {
		if current == nodeID {
			return true, nil
		}
		if _, seen := visited[current]; seen {
			// pre-existing loop above the new parent that does not include nodeID
			return true, nil
		}
		visited[current] = struct{}{}

		cat, err := finder.FindByID(ctx, current)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return false, nil
			}
			return false, fmt.Errorf("load category %s: %w", current, err)
		}
		if cat.ParentID == nil {
			return false, nil
		}
		current = *cat.ParentID
	}
	return true, nil
}

// CategoryRepository persists categories.
type CategoryRepository interface {
	NamedRepository[Category]
	FindChildren(ctx context.Context, parentID *uuid.UUID) ([]Category, error)
}
