package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pushgate/pushgate/pkg/dedup"
	"github.com/pushgate/pushgate/pkg/entitystore"
	"github.com/pushgate/pushgate/pkg/jobs"
	"github.com/pushgate/pushgate/pkg/logger"
	"github.com/pushgate/pushgate/pkg/push"
)

// notifierCandidate pairs a payload key with its resolved notifier, in the
// order keys are tried when matching a device.
type notifierCandidate struct {
	key      string
	notifier *push.Notifier
}

// QueueNotification expands the notification's target into delivery work
// items, one per distinct device, on the notification-scoped queue. Small
// targets complete inline; a target spanning more than one page is handed
// off to a queue job unless this call already runs inside one. Zero
// resolved work finishes the notification immediately.
func (e *Engine) QueueNotification(ctx context.Context, n *push.Notification, exec *jobs.Execution) error {
	if n == nil {
		return ErrNotificationNil
	}
	if !e.okToSend(n, exec) {
		if exec != nil {
			exec.Kill()
		}
		return nil
	}
	if exec == nil && n.Deliver != nil && n.Deliver.After(time.Now()) {
		return e.scheduleQueueJob(ctx, n)
	}

	start := time.Now()
	e.logger.InfoContext(ctx, "starting fan-out", e.logAttrs(n)...)

	candidates, err := e.notifierCandidates(ctx, n)
	if err != nil {
		return err
	}

	r := newResolver(e.store, n.ApplicationID, n.Target)
	if exec == nil {
		paged, err := r.Paged(ctx)
		if err != nil {
			return err
		}
		if paged {
			e.logger.InfoContext(ctx, "target spans multiple pages, handing off to queue job", e.logAttrs(n)...)
			return e.scheduleQueueJob(ctx, n)
		}
	}

	var (
		filter      = dedup.NewFilter()
		path        = e.queuePath(n.ID)
		deviceCount atomic.Int64
		enqueued    atomic.Int64
		queuedOnce  sync.Once

		errMu    sync.Mutex
		softErrs []string
		postErr  error
	)

	devices := make(chan *entitystore.Entity)
	var wg sync.WaitGroup
	for i := 0; i < e.cfg.FanOutWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for device := range devices {
				if filter.Seen(device.ID.String()) {
					continue
				}
				deviceCount.Add(1)

				item, ok := matchNotifier(device, candidates, n)
				if !ok {
					errMu.Lock()
					softErrs = append(softErrs, fmt.Sprintf("No notifier matched for device %s", device.ID))
					errMu.Unlock()
					continue
				}

				if err := e.queue.Post(ctx, path, item); err != nil {
					errMu.Lock()
					if postErr == nil {
						postErr = err
					}
					errMu.Unlock()
					continue
				}
				queuedOnce.Do(func() {
					now := time.Now()
					n.Queued = &now
				})
				enqueued.Add(1)
			}
		}()
	}

	streamErr := r.Devices(ctx, func(device *entitystore.Entity) error {
		select {
		case devices <- device:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	close(devices)
	wg.Wait()

	if streamErr != nil {
		return streamErr
	}
	if postErr != nil {
		return postErr
	}

	n.ExpectedCount = deviceCount.Load()
	n.Modified = time.Now()
	for _, msg := range r.Errors() {
		n.AddDeliveryError(msg)
	}
	for _, msg := range softErrs {
		n.AddDeliveryError(msg)
	}

	if enqueued.Load() == 0 {
		e.logger.InfoContext(ctx, fmt.Sprintf("No devices for notification %s", n.ID), e.logAttrs(n)...)
		now := time.Now()
		n.Finished = &now
		n.Modified = now
		if err := e.saveNotification(ctx, n); err != nil {
			return err
		}
		return nil
	}

	if err := e.saveNotification(ctx, n); err != nil {
		return err
	}

	e.logger.InfoContext(ctx, "done queuing notification", append(e.logAttrs(n),
		slog.Int64("devices", deviceCount.Load()),
		slog.Int64("enqueued", enqueued.Load()),
		logger.Elapsed(time.Since(start)))...)

	return e.scheduleDelivery(ctx, n)
}

// notifierCandidates resolves the notification's payload keys against the
// application's notifiers, preserving a deterministic key order.
func (e *Engine) notifierCandidates(ctx context.Context, n *push.Notification) ([]notifierCandidate, error) {
	notifierMap, err := e.notifiers.Map(ctx, n.ApplicationID)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(n.Payloads))
	for key := range n.Payloads {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	candidates := make([]notifierCandidate, 0, len(keys))
	for _, key := range keys {
		notifier, ok := notifierMap[strings.ToLower(key)]
		if !ok {
			continue
		}
		candidates = append(candidates, notifierCandidate{key: key, notifier: notifier})
	}
	return candidates, nil
}

// matchNotifier picks the delivery target for one device: the first
// payload key whose notifier has a registered provider token on the
// device. A device gets at most one work item per notification.
func matchNotifier(device *entitystore.Entity, candidates []notifierCandidate, n *push.Notification) (workItem, bool) {
	for _, c := range candidates {
		if deviceToken(device, c.notifier) == "" {
			continue
		}
		return workItem{
			ApplicationID:  n.ApplicationID,
			NotificationID: n.ID,
			DeviceID:       device.ID,
			NotifierKey:    c.key,
			NotifierID:     c.notifier.ID,
		}, true
	}
	return workItem{}, false
}
