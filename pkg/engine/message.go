package engine

import "github.com/google/uuid"

// workItem is one unit of delivery work: send this notification's payload
// for the chosen notifier to one device. Items are marshaled onto the
// notification-scoped queue during fan-out and decoded back in the batch
// processor.
type workItem struct {
	ApplicationID  uuid.UUID `json:"application_id"`
	NotificationID uuid.UUID `json:"notification_id"`
	DeviceID       uuid.UUID `json:"device_id"`
	NotifierKey    string    `json:"notifier_key"`
	NotifierID     uuid.UUID `json:"notifier_id"`
}
