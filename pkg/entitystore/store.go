package entitystore

import (
	"context"

	"github.com/google/uuid"
)

// DefaultPageSize bounds collection query pages when no limit is given.
const DefaultPageSize = 100

// Ref identifies an entity by type and id.
type Ref struct {
	Type string    `json:"type" bson:"type"`
	ID   uuid.UUID `json:"id" bson:"id"`
}

// NewRef builds an entity reference.
func NewRef(entityType string, id uuid.UUID) Ref {
	return Ref{Type: entityType, ID: id}
}

// IsZero reports whether the reference is empty.
func (r Ref) IsZero() bool {
	return r.Type == "" && r.ID == uuid.Nil
}

// Entity is a typed bag of properties. The engine treats all recipient
// entities (devices, users, groups, notifiers) uniformly through it.
type Entity struct {
	Ref        `json:",inline" bson:",inline"`
	Name       string         `json:"name,omitempty" bson:"name,omitempty"`
	Properties map[string]any `json:"properties,omitempty" bson:"properties,omitempty"`
}

// NewEntity creates an entity with a fresh id.
func NewEntity(entityType string) *Entity {
	return &Entity{
		Ref:        Ref{Type: entityType, ID: uuid.New()},
		Properties: make(map[string]any),
	}
}

// Property returns a property value, nil when unset.
func (e *Entity) Property(name string) any {
	if e.Properties == nil {
		return nil
	}
	return e.Properties[name]
}

// SetProperty sets a property value.
func (e *Entity) SetProperty(name string, value any) {
	if e.Properties == nil {
		e.Properties = make(map[string]any)
	}
	e.Properties[name] = value
}

// Query selects members of a collection. Filter matches property equality;
// an empty filter selects everything. Cursor resumes a previous page.
//
// The filter applies within each page window of Limit members, not across
// the whole collection: a filtered page may come back short or empty while
// more pages remain. Callers must drain pages until HasMore is false
// before concluding nothing matches.
type Query struct {
	Filter map[string]any
	Limit  int
	Cursor string
}

// Page is one page of collection query results. A non-empty Cursor means
// more pages exist.
type Page struct {
	Entities []*Entity
	Cursor   string
}

// HasMore reports whether another page can be fetched.
func (p Page) HasMore() bool {
	return p.Cursor != ""
}

// Store is the persistence surface the engine depends on.
type Store interface {
	// Get fetches an entity by reference.
	Get(ctx context.Context, ref Ref) (*Entity, error)

	// Create stores a new entity.
	Create(ctx context.Context, entity *Entity) error

	// Update replaces an entity's stored state.
	Update(ctx context.Context, entity *Entity) error

	// AddToCollection records membership of an entity in an owner's
	// collection (e.g. a device in a user's "devices").
	AddToCollection(ctx context.Context, owner Ref, collection string, member Ref) error

	// QueryCollection returns one page of an owner's collection members.
	QueryCollection(ctx context.Context, owner Ref, collection string, q Query) (Page, error)

	// GetProperty reads one property of an entity; nil when unset.
	GetProperty(ctx context.Context, ref Ref, name string) (any, error)

	// UpdateProperties patches a subset of an entity's properties without
	// replacing the rest.
	UpdateProperties(ctx context.Context, ref Ref, props map[string]any) error
}
