package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/pushgate/pushgate/pkg/entitystore"
	"github.com/pushgate/pushgate/pkg/push"
)

// errStopWalk aborts an expansion walk early; it never escapes the
// resolver.
var errStopWalk = errors.New("stop walk")

// resolver expands a notification's target expression into a stream of
// device entities. Expansion is depth-first: devices are yielded directly,
// users via their "devices" collection, groups via their "users"
// collection and then each user's devices. Entities that no longer exist
// are skipped with a recorded soft error, never aborting the walk.
type resolver struct {
	store  entitystore.Store
	appRef entitystore.Ref
	path   push.TargetPath

	mu   sync.Mutex
	errs []string
}

func newResolver(store entitystore.Store, applicationID uuid.UUID, path push.TargetPath) *resolver {
	return &resolver{
		store:  store,
		appRef: applicationRef(applicationID),
		path:   path,
	}
}

// Paged reports whether the target expands to more devices than fit in one
// page, which is the fan-out engine's cue to hand off to a background job.
// The probe stops as soon as the threshold is crossed and leaves no soft
// errors behind.
func (r *resolver) Paged(ctx context.Context) (bool, error) {
	count := 0
	err := r.Devices(ctx, func(*entitystore.Entity) error {
		count++
		if count > entitystore.DefaultPageSize {
			return errStopWalk
		}
		return nil
	})

	r.mu.Lock()
	r.errs = nil
	r.mu.Unlock()

	if errors.Is(err, errStopWalk) {
		return true, nil
	}
	return false, err
}

// Devices walks the full expansion, invoking fn once per device entity.
// An error returned by fn stops the walk and is returned unchanged.
func (r *resolver) Devices(ctx context.Context, fn func(*entitystore.Entity) error) error {
	return r.walk(ctx, r.appRef, r.path.Chain(), fn)
}

// Errors returns the soft errors collected during the last walk.
func (r *resolver) Errors() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.errs))
	copy(out, r.errs)
	return out
}

func (r *resolver) softError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, msg)
}

func (r *resolver) walk(ctx context.Context, owner entitystore.Ref, tokens []push.PathToken, fn func(*entitystore.Entity) error) error {
	if len(tokens) == 0 {
		return nil
	}
	token, rest := tokens[0], tokens[1:]

	if token.HasIdentifier() {
		entity, err := r.resolveOne(ctx, owner, token)
		if err != nil {
			return err
		}
		if entity == nil {
			return nil
		}
		if len(rest) == 0 {
			return r.expand(ctx, entity, fn)
		}
		return r.walk(ctx, entity.Ref, rest, fn)
	}

	q := entitystore.Query{Limit: entitystore.DefaultPageSize}
	for {
		page, err := r.store.QueryCollection(ctx, owner, token.Collection, q)
		if err != nil {
			return fmt.Errorf("failed to query %s of %s: %w", token.Collection, owner.ID, err)
		}
		for _, entity := range page.Entities {
			if len(rest) == 0 {
				err = r.expand(ctx, entity, fn)
			} else {
				err = r.walk(ctx, entity.Ref, rest, fn)
			}
			if err != nil {
				return err
			}
		}
		if !page.HasMore() {
			break
		}
		q.Cursor = page.Cursor
	}
	return nil
}

// resolveOne fetches the single entity a token identifies. A missing
// entity records a soft error and returns nil.
func (r *resolver) resolveOne(ctx context.Context, owner entitystore.Ref, token push.PathToken) (*entitystore.Entity, error) {
	if token.ID != uuid.Nil {
		entity, err := r.store.Get(ctx, entitystore.NewRef(typeForCollection(token.Collection), token.ID))
		if errors.Is(err, entitystore.ErrNotFound) {
			r.softError(fmt.Sprintf("Failed to add devices for entity: %s", token.ID))
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch entity %s: %w", token.ID, err)
		}
		return entity, nil
	}

	// Name filters apply within each page window, so an empty page does
	// not mean the entity is absent; drain until the cursor is exhausted.
	q := entitystore.Query{
		Filter: map[string]any{"name": token.Name},
		Limit:  entitystore.DefaultPageSize,
	}
	for {
		page, err := r.store.QueryCollection(ctx, owner, token.Collection, q)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s of %s: %w", token.Collection, owner.ID, err)
		}
		if len(page.Entities) > 0 {
			return page.Entities[0], nil
		}
		if !page.HasMore() {
			break
		}
		q.Cursor = page.Cursor
	}
	r.softError(fmt.Sprintf("Failed to add devices for entity: %s", token.Name))
	return nil, nil
}

// expand descends from an entity to its devices.
func (r *resolver) expand(ctx context.Context, entity *entitystore.Entity, fn func(*entitystore.Entity) error) error {
	switch entity.Type {
	case push.TypeDevice:
		return fn(entity)
	case push.TypeUser:
		return r.expandMembers(ctx, entity, push.CollectionDevices, fn)
	case push.TypeGroup:
		return r.expandMembers(ctx, entity, push.CollectionUsers, fn)
	default:
		r.softError(fmt.Sprintf("Failed to add devices for entity: %s", entity.ID))
		return nil
	}
}

func (r *resolver) expandMembers(ctx context.Context, owner *entitystore.Entity, collection string, fn func(*entitystore.Entity) error) error {
	q := entitystore.Query{Limit: entitystore.DefaultPageSize}
	for {
		page, err := r.store.QueryCollection(ctx, owner.Ref, collection, q)
		if err != nil {
			if errors.Is(err, entitystore.ErrNotFound) {
				r.softError(fmt.Sprintf("Could not find devices for entity: %s", owner.ID))
				return nil
			}
			return fmt.Errorf("failed to query %s of %s: %w", collection, owner.ID, err)
		}
		for _, member := range page.Entities {
			if err := r.expand(ctx, member, fn); err != nil {
				return err
			}
		}
		if !page.HasMore() {
			break
		}
		q.Cursor = page.Cursor
	}
	return nil
}

func typeForCollection(collection string) string {
	switch collection {
	case push.CollectionDevices:
		return push.TypeDevice
	case push.CollectionUsers:
		return push.TypeUser
	case push.CollectionGroups:
		return push.TypeGroup
	}
	return collection
}
