package engine

import (
	"context"
	"sync"

	"github.com/pushgate/pushgate/pkg/entitystore"
	"github.com/pushgate/pushgate/pkg/logger"
	"github.com/pushgate/pushgate/pkg/push"
)

// batchTotals is one batch's outcome: successes and provider failures feed
// statistics; skipped items count as handled without touching statistics.
type batchTotals struct {
	sent       int64
	errors     int64
	skipped    int64
	softErrors []string
}

// batchTracker accumulates totals across the parallel item dispatches of
// one batch.
type batchTracker struct {
	mu     sync.Mutex
	totals batchTotals
}

func newBatchTracker() *batchTracker {
	return &batchTracker{}
}

func (b *batchTracker) addSent() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totals.sent++
}

// preemptSent backs out a success that a late failure report superseded
// before reconciliation.
func (b *batchTracker) preemptSent() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totals.sent--
}

func (b *batchTracker) addError() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totals.errors++
}

func (b *batchTracker) skip() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totals.skipped++
}

func (b *batchTracker) softError(msg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totals.softErrors = append(b.totals.softErrors, msg)
}

// snapshot returns a copy of the accumulated totals.
func (b *batchTracker) snapshot() batchTotals {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.totals
	out.softErrors = append([]string(nil), b.totals.softErrors...)
	return out
}

// deliveryTracker is the provider.Tracker bound to one work item. It
// enforces one settled outcome per delivery attempt, persists the receipt
// under the debug-flag rule, and commits the item's queue transaction once
// the outcome is durably recorded.
type deliveryTracker struct {
	engine   *Engine
	n        *push.Notification
	path     string
	txID     string
	item     workItem
	notifier *push.Notifier
	device   *entitystore.Entity
	payload  any
	batch    *batchTracker

	mu        sync.Mutex
	completed bool
	failed    bool
	committed bool
}

// Completed implements provider.Tracker.
func (t *deliveryTracker) Completed(ctx context.Context) error {
	return t.complete(ctx, "")
}

// CompletedWithToken implements provider.Tracker. The replacement token
// the provider returned is written back onto the device record.
func (t *deliveryTracker) CompletedWithToken(ctx context.Context, token string) error {
	return t.complete(ctx, token)
}

func (t *deliveryTracker) complete(ctx context.Context, replacement string) error {
	t.mu.Lock()
	if t.completed || t.failed {
		t.mu.Unlock()
		return nil
	}
	t.completed = true
	t.mu.Unlock()

	t.batch.addSent()

	// Success receipts are persisted only in debug mode; failures always.
	if t.n.Debug {
		receipt := push.NewReceipt(t.n.ID, t.item.DeviceID, deviceToken(t.device, t.notifier), t.payload)
		receipt.MarkSent(replacement)
		if err := t.engine.saveReceipt(ctx, t.n, receipt); err != nil {
			t.engine.logger.ErrorContext(ctx, "failed to persist success receipt",
				logger.NotificationID(t.n.ID), logger.DeviceID(t.item.DeviceID), logger.Error(err))
		}
	}

	if replacement != "" {
		t.rewriteDeviceToken(ctx, replacement)
	}

	t.commitOnce(ctx)
	return nil
}

// Failed implements provider.Tracker. Provider failures are terminal at
// this layer, so the transaction is still committed; the item must not be
// redelivered.
func (t *deliveryTracker) Failed(ctx context.Context, code int, message string) error {
	t.mu.Lock()
	if t.failed {
		t.mu.Unlock()
		return nil
	}
	wasCompleted := t.completed
	t.failed = true
	t.completed = false
	t.mu.Unlock()

	if wasCompleted {
		t.batch.preemptSent()
	}
	t.batch.addError()

	receipt := push.NewReceipt(t.n.ID, t.item.DeviceID, deviceToken(t.device, t.notifier), t.payload)
	receipt.MarkFailed(code, message)
	if err := t.engine.saveReceipt(ctx, t.n, receipt); err != nil {
		t.engine.logger.ErrorContext(ctx, "failed to persist failure receipt",
			logger.NotificationID(t.n.ID), logger.DeviceID(t.item.DeviceID), logger.Error(err))
	}

	t.commitOnce(ctx)
	return nil
}

// rewriteDeviceToken canonicalizes the device's stored provider token onto
// the property that held the old value.
func (t *deliveryTracker) rewriteDeviceToken(ctx context.Context, replacement string) {
	props := t.notifier.TokenProperties()
	target := props[0]
	for _, prop := range props {
		if token, ok := t.device.Property(prop).(string); ok && token != "" {
			target = prop
			break
		}
	}
	if err := t.engine.store.UpdateProperties(ctx, t.device.Ref, map[string]any{target: replacement}); err != nil {
		t.engine.logger.ErrorContext(ctx, "failed to rewrite device token",
			logger.DeviceID(t.item.DeviceID), logger.NotifierKey(t.notifier.Key()), logger.Error(err))
	}
}

func (t *deliveryTracker) commitOnce(ctx context.Context) {
	t.mu.Lock()
	if t.committed {
		t.mu.Unlock()
		return
	}
	t.committed = true
	t.mu.Unlock()
	t.engine.commitItem(ctx, t.path, t.txID)
}
