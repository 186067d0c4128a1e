package push

import (
	"strings"

	"github.com/google/uuid"
)

// NotifierIDSuffix is appended to a notifier's name or id to form the device
// property that stores the provider-specific device token.
const NotifierIDSuffix = ".notifier.id"

// Notifier is a configured named channel for sending push payloads: a
// provider kind plus provider-specific connection config. Notifiers are
// read-mostly reference data owned by the management layer; the engine only
// reads them, through a short-TTL cache.
type Notifier struct {
	ID       uuid.UUID      `json:"id"`
	Name     string         `json:"name"`
	Provider string         `json:"provider"`
	Config   map[string]any `json:"config,omitempty"`
}

// Key returns the canonical lookup key for the notifier's name.
func (n *Notifier) Key() string {
	return strings.ToLower(n.Name)
}

// TokenProperties returns the device property names that may hold this
// notifier's provider device token, in lookup order. Devices historically
// stored the token under either the notifier name or its id.
func (n *Notifier) TokenProperties() []string {
	return []string{
		n.Name + NotifierIDSuffix,
		n.ID.String() + NotifierIDSuffix,
	}
}
