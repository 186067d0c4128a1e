package entitystore

import (
	"context"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore implements Store in process memory for tests and local
// development. Collection membership preserves insertion order, which keeps
// paging deterministic.
type MemoryStore struct {
	mu          sync.RWMutex
	entities    map[uuid.UUID]*Entity
	collections map[string][]Ref
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities:    make(map[uuid.UUID]*Entity),
		collections: make(map[string][]Ref),
	}
}

func collectionKey(owner Ref, collection string) string {
	return owner.ID.String() + "/" + collection
}

func cloneEntity(e *Entity) *Entity {
	clone := *e
	if e.Properties != nil {
		clone.Properties = make(map[string]any, len(e.Properties))
		for k, v := range e.Properties {
			clone.Properties[k] = v
		}
	}
	return &clone
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, ref Ref) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entity, ok := s.entities[ref.ID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneEntity(entity), nil
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, entity *Entity) error {
	if entity == nil {
		return ErrEntityNil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entities[entity.ID]; exists {
		return ErrAlreadyExists
	}
	s.entities[entity.ID] = cloneEntity(entity)
	return nil
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, entity *Entity) error {
	if entity == nil {
		return ErrEntityNil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entities[entity.ID]; !exists {
		return ErrNotFound
	}
	s.entities[entity.ID] = cloneEntity(entity)
	return nil
}

// AddToCollection implements Store.
func (s *MemoryStore) AddToCollection(ctx context.Context, owner Ref, collection string, member Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := collectionKey(owner, collection)
	for _, existing := range s.collections[key] {
		if existing.ID == member.ID {
			return nil
		}
	}
	s.collections[key] = append(s.collections[key], member)
	return nil
}

// QueryCollection implements Store. Like the durable store, the filter is
// applied within the page window of limit members, so a filtered page may
// come back short or empty while the cursor still advances.
func (s *MemoryStore) QueryCollection(ctx context.Context, owner Ref, collection string, q Query) (Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := s.collections[collectionKey(owner, collection)]

	offset := 0
	if q.Cursor != "" {
		parsed, err := strconv.Atoi(q.Cursor)
		if err != nil || parsed < 0 {
			return Page{}, ErrInvalidCursor
		}
		offset = parsed
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}

	var page Page
	i := offset
	for scanned := 0; i < len(members) && scanned < limit; i++ {
		scanned++
		entity, ok := s.entities[members[i].ID]
		if !ok {
			continue
		}
		if !matchesFilter(entity, q.Filter) {
			continue
		}
		page.Entities = append(page.Entities, cloneEntity(entity))
	}
	if i < len(members) {
		page.Cursor = strconv.Itoa(i)
	}
	return page, nil
}

func matchesFilter(entity *Entity, filter map[string]any) bool {
	for name, want := range filter {
		if name == "name" {
			if entity.Name != want {
				return false
			}
			continue
		}
		if entity.Property(name) != want {
			return false
		}
	}
	return true
}

// GetProperty implements Store.
func (s *MemoryStore) GetProperty(ctx context.Context, ref Ref, name string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entity, ok := s.entities[ref.ID]
	if !ok {
		return nil, ErrNotFound
	}
	return entity.Property(name), nil
}

// UpdateProperties implements Store.
func (s *MemoryStore) UpdateProperties(ctx context.Context, ref Ref, props map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entity, ok := s.entities[ref.ID]
	if !ok {
		return ErrNotFound
	}
	for name, value := range props {
		entity.SetProperty(name, value)
	}
	return nil
}
