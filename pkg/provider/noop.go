package provider

import (
	"context"
	"sync"
	"time"

	"github.com/pushgate/pushgate/pkg/push"
)

// NoopAdapter accepts every payload and reports success without contacting
// any provider. It records what it was asked to send and supports scripted
// failures and token replacements, which makes it the default adapter for
// tests and for the "noop" provider kind in staging setups.
type NoopAdapter struct {
	mu         sync.Mutex
	sent       []NoopSend
	flushes    int
	failures   map[string]noopFailure // providerDeviceID -> scripted failure
	replaced   map[string]string      // providerDeviceID -> replacement token
	inactive   map[string]time.Time
	connErr    error
}

// NoopSend is one recorded delivery attempt.
type NoopSend struct {
	ProviderDeviceID string
	NotificationID   string
	Payload          any
	Priority         push.Priority
}

type noopFailure struct {
	code    int
	message string
}

// NewNoopAdapter creates a no-op adapter.
func NewNoopAdapter() *NoopAdapter {
	return &NoopAdapter{
		failures: make(map[string]noopFailure),
		replaced: make(map[string]string),
		inactive: make(map[string]time.Time),
	}
}

// FailDevice scripts a terminal failure for a provider device id.
func (a *NoopAdapter) FailDevice(providerDeviceID string, code int, message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failures[providerDeviceID] = noopFailure{code: code, message: message}
}

// ReplaceToken scripts a replacement token returned on successful send.
func (a *NoopAdapter) ReplaceToken(providerDeviceID, replacement string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.replaced[providerDeviceID] = replacement
}

// SetInactiveDevice scripts a token the provider reports as stale.
func (a *NoopAdapter) SetInactiveDevice(providerDeviceID string, since time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inactive[providerDeviceID] = since
}

// SetConnectionError scripts a TestConnection failure.
func (a *NoopAdapter) SetConnectionError(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connErr = err
}

// Sent returns a copy of the recorded delivery attempts.
func (a *NoopAdapter) Sent() []NoopSend {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]NoopSend, len(a.sent))
	copy(out, a.sent)
	return out
}

// Flushes returns how many times Flush was called.
func (a *NoopAdapter) Flushes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushes
}

// TranslatePayload accepts any non-nil payload unchanged.
func (a *NoopAdapter) TranslatePayload(payload any) (any, error) {
	if payload == nil {
		return nil, ErrInvalidPayload
	}
	return payload, nil
}

// Send records the attempt and reports the scripted outcome via the tracker.
func (a *NoopAdapter) Send(ctx context.Context, providerDeviceID string, notifier *push.Notifier, payload any, n *push.Notification, tracker Tracker) {
	a.mu.Lock()
	a.sent = append(a.sent, NoopSend{
		ProviderDeviceID: providerDeviceID,
		NotificationID:   n.ID.String(),
		Payload:          payload,
		Priority:         n.Priority,
	})
	failure, failed := a.failures[providerDeviceID]
	replacement, replace := a.replaced[providerDeviceID]
	a.mu.Unlock()

	switch {
	case failed:
		_ = tracker.Failed(ctx, failure.code, failure.message)
	case replace:
		_ = tracker.CompletedWithToken(ctx, replacement)
	default:
		_ = tracker.Completed(ctx)
	}
}

// Flush counts the batch boundary; nothing is buffered.
func (a *NoopAdapter) Flush(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flushes++
	return nil
}

// InactiveDevices returns the scripted stale-token map.
func (a *NoopAdapter) InactiveDevices(ctx context.Context, notifier *push.Notifier) (map[string]time.Time, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]time.Time, len(a.inactive))
	for k, v := range a.inactive {
		out[k] = v
	}
	return out, nil
}

// TestConnection returns the scripted connection error, if any.
func (a *NoopAdapter) TestConnection(ctx context.Context, notifier *push.Notifier) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connErr
}
