package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pushgate/pushgate/pkg/cache"
	"github.com/pushgate/pushgate/pkg/entitystore"
	"github.com/pushgate/pushgate/pkg/push"
)

// notifierCache caches the notifier map of each application scope for a
// short TTL. Reloads are wholesale: a miss for one key refreshes the whole
// scope, so a notifier created moments before a send becomes visible
// without waiting out the TTL.
type notifierCache struct {
	store entitystore.Store
	maps  *cache.TTLCache[uuid.UUID, map[string]*push.Notifier]
}

func newNotifierCache(store entitystore.Store, size int, ttl time.Duration) *notifierCache {
	return &notifierCache{
		store: store,
		maps:  cache.NewTTLCache[uuid.UUID, map[string]*push.Notifier](size, ttl),
	}
}

// Map returns the application's notifiers keyed by both lowercase name and
// id string.
func (c *notifierCache) Map(ctx context.Context, applicationID uuid.UUID) (map[string]*push.Notifier, error) {
	if m, ok := c.maps.Get(applicationID); ok {
		return m, nil
	}
	return c.reload(ctx, applicationID)
}

// Lookup resolves one notifier key. On a miss it invalidates the scope and
// retries once against fresh data before reporting the key absent.
func (c *notifierCache) Lookup(ctx context.Context, applicationID uuid.UUID, key string) (*push.Notifier, error) {
	m, err := c.Map(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if notifier, ok := m[strings.ToLower(key)]; ok {
		return notifier, nil
	}

	c.Invalidate(applicationID)
	m, err = c.reload(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if notifier, ok := m[strings.ToLower(key)]; ok {
		return notifier, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownNotifier, key)
}

// Invalidate drops the cached map for one application scope.
func (c *notifierCache) Invalidate(applicationID uuid.UUID) {
	c.maps.Remove(applicationID)
}

func (c *notifierCache) reload(ctx context.Context, applicationID uuid.UUID) (map[string]*push.Notifier, error) {
	m := make(map[string]*push.Notifier)

	q := entitystore.Query{Limit: entitystore.DefaultPageSize}
	for {
		page, err := c.store.QueryCollection(ctx, applicationRef(applicationID), push.CollectionNotifiers, q)
		if err != nil {
			return nil, fmt.Errorf("failed to load notifiers for application %s: %w", applicationID, err)
		}
		for _, entity := range page.Entities {
			notifier := notifierFromEntity(entity)
			m[notifier.Key()] = notifier
			m[notifier.ID.String()] = notifier
		}
		if !page.HasMore() {
			break
		}
		q.Cursor = page.Cursor
	}

	c.maps.Put(applicationID, m)
	return m, nil
}

func notifierFromEntity(entity *entitystore.Entity) *push.Notifier {
	notifier := &push.Notifier{ID: entity.ID, Name: entity.Name}
	if provider, ok := entity.Property("provider").(string); ok {
		notifier.Provider = provider
	}
	if config, ok := entity.Property("config").(map[string]any); ok {
		notifier.Config = config
	}
	return notifier
}
