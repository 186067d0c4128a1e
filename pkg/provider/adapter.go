package provider

import (
	"context"
	"time"

	"github.com/pushgate/pushgate/pkg/push"
)

// Tracker is the per-delivery-attempt callback an adapter uses to report the
// outcome of one Send. Implementations expect exactly one call per attempt;
// a second call is ignored.
type Tracker interface {
	// Completed marks the delivery successful.
	Completed(ctx context.Context) error

	// CompletedWithToken marks the delivery successful and supplies a
	// replacement device token the provider returned (canonicalization).
	// The engine rewrites the device's stored token with it.
	CompletedWithToken(ctx context.Context, token string) error

	// Failed marks the delivery failed with a provider error code and
	// message. Provider failures are terminal at this layer; the work item
	// is not redelivered.
	Failed(ctx context.Context, code int, message string) error
}

// Adapter translates abstract payloads and delivers them for one provider
// kind.
type Adapter interface {
	// TranslatePayload validates and converts an abstract payload into the
	// provider's representation. It is called at submission time for
	// fail-fast validation and again at send time to build the batch's
	// payload map.
	TranslatePayload(payload any) (any, error)

	// Send delivers a payload to a single device. Outcomes, including any
	// internal error, must be reported through the tracker; Send never
	// returns an error itself. Implementations may buffer the actual wire
	// call until Flush.
	Send(ctx context.Context, providerDeviceID string, notifier *push.Notifier, payload any, n *push.Notification, tracker Tracker)

	// Flush is called once after a batch completes so providers that batch
	// internally can issue their bulk call.
	Flush(ctx context.Context) error

	// InactiveDevices returns provider device tokens reported permanently
	// invalid, with the time each went stale. Polled off the critical path.
	InactiveDevices(ctx context.Context, notifier *push.Notifier) (map[string]time.Time, error)

	// TestConnection verifies the notifier's credentials with the provider.
	TestConnection(ctx context.Context, notifier *push.Notifier) error
}
