package push

import (
	"time"

	"github.com/google/uuid"
)

// Receipt is the durable record of one device's delivery outcome for one
// notification. Failure receipts are always persisted; success receipts only
// when the notification's Debug flag is set, to avoid write amplification on
// high-fan-out sends.
type Receipt struct {
	ID             uuid.UUID  `json:"id"`
	NotificationID uuid.UUID  `json:"notification_id"`
	DeviceID       uuid.UUID  `json:"device_id"`
	ProviderID     string     `json:"provider_id,omitempty"`
	Payload        any        `json:"payload,omitempty"`
	MessageID      string     `json:"message_id,omitempty"`
	Sent           *time.Time `json:"sent,omitempty"`
	ErrorCode      int        `json:"error_code,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
}

// NewReceipt creates a receipt for a (notification, device) pair. The id is
// derived deterministically from the pair, so a redelivered work item maps to
// the same receipt and persistence becomes an upsert instead of a duplicate
// insert.
func NewReceipt(notificationID, deviceID uuid.UUID, providerID string, payload any) *Receipt {
	return &Receipt{
		ID:             uuid.NewSHA1(notificationID, deviceID[:]),
		NotificationID: notificationID,
		DeviceID:       deviceID,
		ProviderID:     providerID,
		Payload:        payload,
	}
}

// MarkSent records a successful delivery with the provider's message id.
func (r *Receipt) MarkSent(messageID string) {
	now := time.Now()
	r.Sent = &now
	r.MessageID = messageID
	r.ErrorCode = 0
	r.ErrorMessage = ""
}

// MarkFailed records a provider-reported terminal failure.
func (r *Receipt) MarkFailed(code int, message string) {
	r.Sent = nil
	r.ErrorCode = code
	r.ErrorMessage = message
}
