package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pushgate/pushgate/pkg/jobs"
	"github.com/pushgate/pushgate/pkg/logger"
	"github.com/pushgate/pushgate/pkg/provider"
	"github.com/pushgate/pushgate/pkg/push"
	"github.com/pushgate/pushgate/pkg/queue"
)

// errorMessageSummary is the human-readable summary stamped on a finished
// notification when any delivery failed. Statistics remain the
// authoritative machine-readable outcome.
const errorMessageSummary = "There was a problem delivering all of your notifications. See deliveryErrors in properties"

// batchPayload is the per-notifier-key delivery context shared by all
// items of one batch: the resolved notifier, its adapter, and the
// translated payload. A non-nil err marks the key undeliverable for this
// batch; its items are skipped and committed.
type batchPayload struct {
	notifier *push.Notifier
	adapter  provider.Adapter
	payload  any
	err      error
}

type batchResult struct {
	finished   bool
	reschedule bool
}

// ProcessBatchAndReschedule takes one bounded batch of delivery work for
// the notification, dispatches it to provider adapters, records outcomes,
// and either finalizes the notification or arranges the next batch.
// Inside a job execution it loops inline until done; outside one it
// schedules a delivery job for the remainder.
func (e *Engine) ProcessBatchAndReschedule(ctx context.Context, n *push.Notification, exec *jobs.Execution) error {
	if n == nil {
		return ErrNotificationNil
	}

	for {
		if !e.okToSend(n, exec) {
			if exec != nil {
				exec.Kill()
			}
			return nil
		}

		res, err := e.runBatches(ctx, n, exec)
		if err != nil {
			return err
		}
		if res.finished || !res.reschedule {
			return nil
		}
		if exec == nil {
			return e.scheduleDelivery(ctx, n)
		}
		// Inside a job execution the next batch runs inline, skipping the
		// scheduler round-trip.
	}
}

// okToSend is the terminal-state guard run before any queuing or
// delivery. A stale deliver snapshot means a newer schedule superseded
// this job, which is abandoned quietly.
func (e *Engine) okToSend(n *push.Notification, exec *jobs.Execution) bool {
	if n.IsFinished() || n.Canceled || n.IsExpired() {
		return false
	}
	if e.cfg.AutoExpireAfter > 0 && time.Since(n.Created) > e.cfg.AutoExpireAfter {
		return false
	}
	if exec != nil && !deliverMatches(exec.Data().Deliver, n.Deliver) {
		return false
	}
	return true
}

// runBatches takes one batch on the inline path and up to
// ConcurrentBatches in parallel inside a job execution. Each parallel
// batch reconciles against the stored notification independently;
// finishedBatch merges deltas by re-fetching, so the copies never race on
// shared state.
func (e *Engine) runBatches(ctx context.Context, n *push.Notification, exec *jobs.Execution) (batchResult, error) {
	workers := 1
	if exec != nil {
		workers = e.cfg.ConcurrentBatches
	}
	if workers <= 1 {
		return e.processBatch(ctx, n, exec)
	}

	results := make([]batchResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			local := *n
			results[i], errs[i] = e.processBatch(ctx, &local, exec)
		}(i)
	}
	wg.Wait()

	fresh, err := e.loadNotification(ctx, n.ID)
	if err != nil {
		return batchResult{}, err
	}
	*n = *fresh

	var out batchResult
	for i := range results {
		if errs[i] != nil {
			return batchResult{}, errs[i]
		}
		out.finished = out.finished || results[i].finished
		out.reschedule = out.reschedule || results[i].reschedule
	}
	if out.finished {
		out.reschedule = false
	}
	return out, nil
}

func (e *Engine) processBatch(ctx context.Context, n *push.Notification, exec *jobs.Execution) (batchResult, error) {
	size := e.cfg.BatchSize
	if exec == nil {
		// Throttle the first, request-driven pass.
		size = max(1, size/2)
	}
	path := e.queuePath(n.ID)

	msgs, err := e.queue.Get(ctx, path, queue.GetOptions{Limit: size, Timeout: e.cfg.QueueTimeout})
	if err != nil {
		return batchResult{}, fmt.Errorf("failed to take delivery batch for notification %s: %w", n.ID, err)
	}

	if len(msgs) == 0 {
		empty := e.bumpEmptyBatches(n.ID)
		drained, err := queue.Drained(ctx, e.queue, path)
		if err != nil {
			return batchResult{}, err
		}
		if drained || empty > e.cfg.MaxEmptyBatches {
			return e.finishedBatch(ctx, n, newBatchTracker(), nil, true)
		}
		return batchResult{reschedule: true}, nil
	}
	e.resetEmptyBatches(n.ID)

	e.logger.DebugContext(ctx, "processing delivery batch", append(e.logAttrs(n),
		slog.Int("size", len(msgs)))...)

	payloads, err := e.batchPayloads(ctx, n, msgs)
	if err != nil {
		return batchResult{}, err
	}

	bt := newBatchTracker()
	sem := make(chan struct{}, e.cfg.FanOutWorkers)
	var wg sync.WaitGroup
	for _, msg := range msgs {
		var item workItem
		if err := msg.Decode(&item); err != nil {
			e.logger.ErrorContext(ctx, "dropping undecodable work item", append(e.logAttrs(n), logger.Error(err))...)
			bt.skip()
			e.commitItem(ctx, path, msg.TxID)
			continue
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(txID string, item workItem) {
			defer func() {
				<-sem
				wg.Done()
			}()
			e.deliverItem(ctx, n, path, txID, item, payloads, bt)
		}(msg.TxID, item)
	}
	wg.Wait()

	for _, entry := range distinctAdapters(payloads) {
		if err := entry.Flush(ctx); err != nil {
			e.logger.ErrorContext(ctx, "provider flush failed", append(e.logAttrs(n), logger.Error(err))...)
		}
	}

	return e.finishedBatch(ctx, n, bt, notifiersUsed(payloads), false)
}

// batchPayloads resolves and translates the payload once per notifier key
// present in the batch. A key missing from the notifier cache triggers an
// invalidate-and-retry inside the cache before the key is marked bad,
// covering notifier creation racing with the send.
func (e *Engine) batchPayloads(ctx context.Context, n *push.Notification, msgs []queue.Message) (map[string]*batchPayload, error) {
	payloads := make(map[string]*batchPayload)
	for _, msg := range msgs {
		var item workItem
		if err := msg.Decode(&item); err != nil {
			continue
		}
		if _, ok := payloads[item.NotifierKey]; ok {
			continue
		}

		entry := &batchPayload{}
		payloads[item.NotifierKey] = entry

		notifier, err := e.notifiers.Lookup(ctx, n.ApplicationID, item.NotifierKey)
		if err != nil {
			if errors.Is(err, ErrUnknownNotifier) {
				entry.err = err
				continue
			}
			return nil, err
		}
		entry.notifier = notifier

		adapter, err := e.registry.Get(notifier.Provider)
		if err != nil {
			entry.err = err
			continue
		}
		entry.adapter = adapter

		translated, err := adapter.TranslatePayload(n.Payloads[item.NotifierKey])
		if err != nil {
			entry.err = err
			continue
		}
		entry.payload = translated
	}
	return payloads, nil
}

func (e *Engine) deliverItem(ctx context.Context, n *push.Notification, path, txID string, item workItem, payloads map[string]*batchPayload, bt *batchTracker) {
	entry := payloads[item.NotifierKey]
	if entry == nil || entry.err != nil {
		if entry != nil && entry.err != nil {
			bt.softError(fmt.Sprintf("Payload for notifier %s undeliverable: %v", item.NotifierKey, entry.err))
		}
		bt.skip()
		e.commitItem(ctx, path, txID)
		return
	}

	device, err := e.store.Get(ctx, deviceRef(item.DeviceID))
	if err != nil {
		bt.softError(fmt.Sprintf("Could not find devices for entity: %s", item.DeviceID))
		bt.skip()
		e.commitItem(ctx, path, txID)
		return
	}

	token := deviceToken(device, entry.notifier)
	if token == "" {
		// Token removed since enqueue. The device still counts as handled.
		bt.skip()
		e.commitItem(ctx, path, txID)
		return
	}

	tracker := &deliveryTracker{
		engine:   e,
		n:        n,
		path:     path,
		txID:     txID,
		item:     item,
		notifier: entry.notifier,
		device:   device,
		payload:  entry.payload,
		batch:    bt,
	}
	entry.adapter.Send(ctx, token, entry.notifier, entry.payload, n, tracker)
}

// finishedBatch reconciles one batch's outcome into the stored
// notification. The notification is re-fetched first so deltas from
// concurrent batches merge instead of clobbering each other. The
// notification finishes when the queue is fully drained, when statistics
// reach the expected count, or when the caller forces completion.
func (e *Engine) finishedBatch(ctx context.Context, n *push.Notification, bt *batchTracker, used []*push.Notifier, force bool) (batchResult, error) {
	totals := bt.snapshot()

	fresh, err := e.loadNotification(ctx, n.ID)
	if err != nil {
		return batchResult{}, err
	}

	fresh.UpdateStatistics(totals.sent, totals.errors)
	for _, msg := range totals.softErrors {
		fresh.AddDeliveryError(msg)
	}
	now := time.Now()
	fresh.Modified = now

	finish := force
	if !finish && fresh.ExpectedCount > 0 && fresh.Statistics.Total() >= fresh.ExpectedCount {
		finish = true
	}
	if !finish {
		drained, err := queue.Drained(ctx, e.queue, e.queuePath(n.ID))
		if err != nil {
			return batchResult{}, err
		}
		finish = drained
	}

	if finish {
		fresh.Finished = &now
		if fresh.Statistics.Errors > 0 {
			fresh.ErrorMessage = errorMessageSummary
		}
	}

	if err := e.saveNotification(ctx, fresh); err != nil {
		return batchResult{}, err
	}
	*n = *fresh

	if finish {
		e.clearEmptyBatches(n.ID)
		e.logger.InfoContext(ctx, "notification finished", append(e.logAttrs(n),
			slog.Int64("sent", fresh.Statistics.Sent),
			slog.Int64("errors", fresh.Statistics.Errors),
			slog.Int64("expected", fresh.ExpectedCount))...)
		e.startInactiveSweep(n.ApplicationID, used)
	}

	return batchResult{finished: finish, reschedule: !finish}, nil
}

func (e *Engine) commitItem(ctx context.Context, path, txID string) {
	err := e.queue.Commit(ctx, path, txID)
	switch {
	case errors.Is(err, queue.ErrUnknownTransaction):
		// Visibility timeout already passed; the redelivered copy will be
		// absorbed by the idempotent receipt upsert.
		e.logger.DebugContext(ctx, "commit raced visibility timeout", slog.String("path", path))
	case err != nil:
		e.logger.ErrorContext(ctx, "failed to commit work item", slog.String("path", path), logger.Error(err))
	}
}

func (e *Engine) bumpEmptyBatches(id uuid.UUID) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emptyBatches[id]++
	return e.emptyBatches[id]
}

func (e *Engine) resetEmptyBatches(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.emptyBatches, id)
}

func (e *Engine) clearEmptyBatches(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.emptyBatches, id)
}

func distinctAdapters(payloads map[string]*batchPayload) []provider.Adapter {
	var out []provider.Adapter
	seen := make(map[provider.Adapter]bool)
	for _, entry := range payloads {
		if entry.adapter == nil || entry.err != nil || seen[entry.adapter] {
			continue
		}
		seen[entry.adapter] = true
		out = append(out, entry.adapter)
	}
	return out
}

func notifiersUsed(payloads map[string]*batchPayload) []*push.Notifier {
	var out []*push.Notifier
	seen := make(map[uuid.UUID]bool)
	for _, entry := range payloads {
		if entry.notifier == nil || entry.err != nil || seen[entry.notifier.ID] {
			continue
		}
		seen[entry.notifier.ID] = true
		out = append(out, entry.notifier)
	}
	return out
}
