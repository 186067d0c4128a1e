package push

import (
	"time"

	"github.com/google/uuid"
)

// Entity types and collection names used across the engine.
const (
	TypeApplication  = "application"
	TypeDevice       = "device"
	TypeUser         = "user"
	TypeGroup        = "group"
	TypeNotifier     = "notifier"
	TypeNotification = "notification"
	TypeReceipt      = "receipt"

	CollectionDevices       = "devices"
	CollectionUsers         = "users"
	CollectionGroups        = "groups"
	CollectionNotifiers     = "notifiers"
	CollectionNotifications = "notifications"
	CollectionReceipts      = "receipts"
)

// State represents the derived lifecycle state of a notification.
type State string

const (
	StateCreated   State = "created"
	StateScheduled State = "scheduled"
	StateStarted   State = "started"
	StateFinished  State = "finished"
	StateCanceled  State = "canceled"
	StateExpired   State = "expired"
	StateFailed    State = "failed"
)

// Priority of a notification delivery. Providers may map it to their own
// priority scheme; the engine itself treats it as opaque.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// maxDeliveryErrors bounds the per-notification soft-error list so a huge
// fan-out with many missing entities cannot grow the entity unboundedly.
const maxDeliveryErrors = 100

// Statistics holds the running delivery counters for a notification.
// Sent+Errors increases monotonically until Finished is set, then freezes.
type Statistics struct {
	Sent   int64 `json:"sent"`
	Errors int64 `json:"errors"`
}

// Total returns the number of devices accounted for so far.
func (s Statistics) Total() int64 {
	return s.Sent + s.Errors
}

// Notification is one logical push targeted at a dynamic recipient set.
type Notification struct {
	ID            uuid.UUID      `json:"id"`
	ApplicationID uuid.UUID      `json:"application_id"`
	Target        TargetPath     `json:"target"`
	Payloads      map[string]any `json:"payloads"`

	Created  time.Time  `json:"created"`
	Started  *time.Time `json:"started,omitempty"`
	Queued   *time.Time `json:"queued,omitempty"`
	Modified time.Time  `json:"modified"`
	Finished *time.Time `json:"finished,omitempty"`

	// Deliver delays the send until the given time when set. The value is
	// snapshotted into scheduled job data; a mismatch on resumption means a
	// newer schedule superseded the job.
	Deliver *time.Time `json:"deliver,omitempty"`
	// Expire drops the notification entirely once passed.
	Expire *time.Time `json:"expire,omitempty"`

	Canceled bool     `json:"canceled,omitempty"`
	Debug    bool     `json:"debug,omitempty"`
	Priority Priority `json:"priority,omitempty"`

	// ExpectedCount is the number of devices the fan-out resolved for this
	// notification, including soft-skipped ones.
	ExpectedCount int64      `json:"expected_count"`
	Statistics    Statistics `json:"statistics"`

	ErrorMessage   string   `json:"error_message,omitempty"`
	DeliveryErrors []string `json:"delivery_errors,omitempty"`
}

// NewNotification creates a notification in the CREATED state.
func NewNotification(applicationID uuid.UUID, target TargetPath, payloads map[string]any) *Notification {
	now := time.Now()
	return &Notification{
		ID:            uuid.New(),
		ApplicationID: applicationID,
		Target:        target,
		Payloads:      payloads,
		Created:       now,
		Modified:      now,
		Priority:      PriorityNormal,
	}
}

// State derives the lifecycle state from the notification's fields.
func (n *Notification) State() State {
	switch {
	case n.ErrorMessage != "":
		return StateFailed
	case n.Canceled:
		return StateCanceled
	case n.Finished != nil:
		return StateFinished
	case n.Started != nil && n.Deliver == nil:
		return StateStarted
	case n.IsExpired():
		return StateExpired
	case n.Deliver != nil || n.Queued != nil:
		return StateScheduled
	}
	return StateCreated
}

// IsExpired reports whether the notification's absolute expiry has passed.
func (n *Notification) IsExpired() bool {
	return n.Expire != nil && n.Expire.Before(time.Now())
}

// IsFinished reports whether delivery has completed and state is frozen.
func (n *Notification) IsFinished() bool {
	return n.Finished != nil
}

// Cancel marks the notification canceled. Canceling an already finished
// notification is a no-op: its state is immutable.
func (n *Notification) Cancel() {
	if n.Finished != nil {
		return
	}
	n.Canceled = true
	n.Modified = time.Now()
}

// UpdateStatistics merges one batch's success and failure deltas into the
// running counters. Counters never decrease.
func (n *Notification) UpdateStatistics(sent, errors int64) {
	n.Statistics.Sent += sent
	n.Statistics.Errors += errors
}

// AddDeliveryError records a per-recipient soft failure. The list is bounded;
// once full, further messages are dropped silently since the list exists only
// for diagnostics and the counters remain authoritative.
func (n *Notification) AddDeliveryError(msg string) {
	if len(n.DeliveryErrors) >= maxDeliveryErrors {
		return
	}
	n.DeliveryErrors = append(n.DeliveryErrors, msg)
}
