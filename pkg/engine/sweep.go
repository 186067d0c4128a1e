package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/pushgate/pushgate/pkg/entitystore"
	"github.com/pushgate/pushgate/pkg/logger"
	"github.com/pushgate/pushgate/pkg/push"
)

// startInactiveSweep launches the inactive-device sweep in the background.
// The sweep is best-effort housekeeping: it never affects the outcome of
// the notification that triggered it, and its failures are only logged.
func (e *Engine) startInactiveSweep(applicationID uuid.UUID, notifiers []*push.Notifier) {
	if len(notifiers) == 0 {
		return
	}
	e.sweeps.Add(1)
	go func() {
		defer e.sweeps.Done()
		e.sweepInactiveDevices(context.Background(), applicationID, notifiers)
	}()
}

// sweepInactiveDevices asks each notifier's provider for tokens it
// reported permanently invalid and clears them from the matching device
// records, so dead tokens stop being selected by future fan-outs.
func (e *Engine) sweepInactiveDevices(ctx context.Context, applicationID uuid.UUID, notifiers []*push.Notifier) {
	for _, notifier := range notifiers {
		adapter, err := e.registry.Get(notifier.Provider)
		if err != nil {
			e.logger.ErrorContext(ctx, "inactive sweep skipped notifier",
				logger.NotifierKey(notifier.Key()), logger.Error(err))
			continue
		}

		inactive, err := adapter.InactiveDevices(ctx, notifier)
		if err != nil {
			e.logger.ErrorContext(ctx, "failed to fetch inactive devices",
				logger.NotifierKey(notifier.Key()), logger.Error(err))
			continue
		}
		if len(inactive) == 0 {
			continue
		}

		e.logger.InfoContext(ctx, "clearing inactive device tokens",
			logger.ApplicationID(applicationID),
			logger.NotifierKey(notifier.Key()))

		for token := range inactive {
			e.clearDeviceToken(ctx, applicationID, notifier, token)
		}
	}
}

// clearDeviceToken finds every device holding the stale token under either
// of the notifier's property keys and clears both keys on each.
func (e *Engine) clearDeviceToken(ctx context.Context, applicationID uuid.UUID, notifier *push.Notifier, token string) {
	cleared := make(map[string]any)
	for _, prop := range notifier.TokenProperties() {
		cleared[prop] = nil
	}

	for _, prop := range notifier.TokenProperties() {
		q := entitystore.Query{
			Filter: map[string]any{prop: token},
			Limit:  entitystore.DefaultPageSize,
		}
		for {
			page, err := e.store.QueryCollection(ctx, applicationRef(applicationID), push.CollectionDevices, q)
			if err != nil {
				e.logger.ErrorContext(ctx, "failed to query devices for stale token",
					logger.NotifierKey(notifier.Key()), logger.Error(err))
				break
			}
			for _, device := range page.Entities {
				if err := e.store.UpdateProperties(ctx, device.Ref, cleared); err != nil {
					e.logger.ErrorContext(ctx, "failed to clear stale device token",
						logger.DeviceID(device.ID), logger.Error(err))
				}
			}
			if !page.HasMore() {
				break
			}
			q.Cursor = page.Cursor
		}
	}
}
