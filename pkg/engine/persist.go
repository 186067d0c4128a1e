package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/pushgate/pushgate/pkg/entitystore"
	"github.com/pushgate/pushgate/pkg/push"
)

func applicationRef(id uuid.UUID) entitystore.Ref {
	return entitystore.NewRef(push.TypeApplication, id)
}

func notificationRef(id uuid.UUID) entitystore.Ref {
	return entitystore.NewRef(push.TypeNotification, id)
}

func deviceRef(id uuid.UUID) entitystore.Ref {
	return entitystore.NewRef(push.TypeDevice, id)
}

// encodeProps converts a domain value into an entity property bag via its
// JSON form, keeping the store free of engine types.
func encodeProps(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode entity properties: %w", err)
	}
	var props map[string]any
	if err := json.Unmarshal(raw, &props); err != nil {
		return nil, fmt.Errorf("failed to encode entity properties: %w", err)
	}
	return props, nil
}

func decodeProps(props map[string]any, v any) error {
	raw, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("failed to decode entity properties: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode entity properties: %w", err)
	}
	return nil
}

// createNotification persists a new notification and links it into the
// application's notifications collection.
func (e *Engine) createNotification(ctx context.Context, n *push.Notification) error {
	props, err := encodeProps(n)
	if err != nil {
		return err
	}
	entity := &entitystore.Entity{Ref: notificationRef(n.ID), Properties: props}
	if err := e.store.Create(ctx, entity); err != nil {
		return fmt.Errorf("failed to create notification %s: %w", n.ID, err)
	}
	if err := e.store.AddToCollection(ctx, applicationRef(n.ApplicationID), push.CollectionNotifications, entity.Ref); err != nil {
		return fmt.Errorf("failed to link notification %s: %w", n.ID, err)
	}
	return nil
}

// saveNotification replaces the stored state of an existing notification.
func (e *Engine) saveNotification(ctx context.Context, n *push.Notification) error {
	props, err := encodeProps(n)
	if err != nil {
		return err
	}
	entity := &entitystore.Entity{Ref: notificationRef(n.ID), Properties: props}
	if err := e.store.Update(ctx, entity); err != nil {
		return fmt.Errorf("failed to save notification %s: %w", n.ID, err)
	}
	return nil
}

// loadNotification re-fetches a notification's current stored state.
func (e *Engine) loadNotification(ctx context.Context, id uuid.UUID) (*push.Notification, error) {
	entity, err := e.store.Get(ctx, notificationRef(id))
	if err != nil {
		return nil, fmt.Errorf("failed to load notification %s: %w", id, err)
	}
	var n push.Notification
	if err := decodeProps(entity.Properties, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// saveReceipt upserts a delivery receipt. Receipt ids are deterministic
// per (notification, device), so a redelivered item updates in place
// instead of inserting a duplicate.
func (e *Engine) saveReceipt(ctx context.Context, n *push.Notification, r *push.Receipt) error {
	props, err := encodeProps(r)
	if err != nil {
		return err
	}
	entity := &entitystore.Entity{Ref: entitystore.NewRef(push.TypeReceipt, r.ID), Properties: props}

	err = e.store.Create(ctx, entity)
	switch {
	case errors.Is(err, entitystore.ErrAlreadyExists):
		if err := e.store.Update(ctx, entity); err != nil {
			return fmt.Errorf("failed to update receipt %s: %w", r.ID, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to create receipt %s: %w", r.ID, err)
	}

	if err := e.store.AddToCollection(ctx, notificationRef(n.ID), push.CollectionReceipts, entity.Ref); err != nil {
		return fmt.Errorf("failed to link receipt %s: %w", r.ID, err)
	}
	return nil
}

// deviceToken returns the device's provider token for the notifier, trying
// the name-keyed property first and the id-keyed one second.
func deviceToken(device *entitystore.Entity, notifier *push.Notifier) string {
	for _, prop := range notifier.TokenProperties() {
		if token, ok := device.Property(prop).(string); ok && token != "" {
			return token
		}
	}
	return ""
}
