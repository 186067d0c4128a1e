package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pushgate/pushgate/pkg/entitystore"
	"github.com/pushgate/pushgate/pkg/jobs"
	"github.com/pushgate/pushgate/pkg/logger"
	"github.com/pushgate/pushgate/pkg/provider"
	"github.com/pushgate/pushgate/pkg/push"
	"github.com/pushgate/pushgate/pkg/queue"
)

// Engine is the fan-out and delivery core. Construct with New; all methods
// are safe for concurrent use.
type Engine struct {
	cfg       Config
	store     entitystore.Store
	queue     queue.Manager
	scheduler jobs.Scheduler
	registry  *provider.Registry
	notifiers *notifierCache
	logger    *slog.Logger

	// emptyBatches counts consecutive empty dequeues per notification so a
	// notification whose queue never drains cleanly is eventually
	// finalized instead of rescheduled forever.
	mu           sync.Mutex
	emptyBatches map[uuid.UUID]int

	// sweeps tracks the background inactive-device sweeps so Close can
	// wait for them.
	sweeps sync.WaitGroup
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.logger = log
		}
	}
}

// New creates an engine over the injected collaborators.
func New(cfg Config, store entitystore.Store, qm queue.Manager, scheduler jobs.Scheduler, registry *provider.Registry, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if qm == nil {
		return nil, ErrQueueNil
	}
	if scheduler == nil {
		return nil, ErrSchedulerNil
	}
	if registry == nil {
		return nil, ErrRegistryNil
	}

	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:          cfg,
		store:        store,
		queue:        qm,
		scheduler:    scheduler,
		registry:     registry,
		notifiers:    newNotifierCache(store, cfg.NotifierCacheSize, cfg.NotifierCacheTTL),
		logger:       slog.Default(),
		emptyBatches: make(map[uuid.UUID]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close waits for background housekeeping to drain.
func (e *Engine) Close() error {
	e.sweeps.Wait()
	return nil
}

// Providers returns the registered provider kinds.
func (e *Engine) Providers() []string {
	return e.registry.Kinds()
}

// TestConnection verifies a notifier's credentials with its provider.
func (e *Engine) TestConnection(ctx context.Context, notifier *push.Notifier) error {
	if notifier == nil {
		return ErrNotifierNil
	}
	adapter, err := e.registry.Get(notifier.Provider)
	if err != nil {
		return fmt.Errorf("notifier %q: %w", notifier.Name, err)
	}
	return adapter.TestConnection(ctx, notifier)
}

// ValidatePayloads checks every payload key against the application's
// notifiers and each payload's shape against its provider adapter. It is
// the fail-fast half of Submit, usable on its own by a management layer.
func (e *Engine) ValidatePayloads(ctx context.Context, applicationID uuid.UUID, payloads map[string]any) error {
	if len(payloads) == 0 {
		return push.ErrMissingPayloads
	}

	// Deterministic order keeps validation errors stable.
	keys := make([]string, 0, len(payloads))
	for key := range payloads {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		notifier, err := e.notifiers.Lookup(ctx, applicationID, key)
		if err != nil {
			return err
		}
		adapter, err := e.registry.Get(notifier.Provider)
		if err != nil {
			return fmt.Errorf("notifier %q: %w", notifier.Name, err)
		}
		if _, err := adapter.TranslatePayload(payloads[key]); err != nil {
			return fmt.Errorf("payload for notifier %q: %w", notifier.Name, err)
		}
	}
	return nil
}

// Submit validates, persists, and starts a freshly created notification.
// Validation failures surface synchronously before any state is created.
// A notification with a future deliver time is scheduled instead of fanned
// out immediately.
func (e *Engine) Submit(ctx context.Context, n *push.Notification) error {
	if n == nil {
		return ErrNotificationNil
	}
	if n.Target.IsZero() {
		return push.ErrEmptyTarget
	}
	if err := e.ValidatePayloads(ctx, n.ApplicationID, n.Payloads); err != nil {
		return err
	}

	now := time.Now()
	n.Started = &now
	n.Modified = now
	if err := e.createNotification(ctx, n); err != nil {
		return err
	}

	if n.Deliver != nil && n.Deliver.After(now) {
		return e.scheduleQueueJob(ctx, n)
	}
	return e.QueueNotification(ctx, n, nil)
}

// Cancel marks the notification canceled and persists it. A finished
// notification is immutable and cannot be canceled.
func (e *Engine) Cancel(ctx context.Context, n *push.Notification) error {
	if n == nil {
		return ErrNotificationNil
	}
	if n.IsFinished() {
		return push.ErrNotificationFinished
	}
	n.Cancel()
	return e.saveNotification(ctx, n)
}

// Restart clears a notification's failure state and runs it again, either
// immediately or at the given deliver time. Statistics keep accumulating
// across restarts; receipts upsert in place.
func (e *Engine) Restart(ctx context.Context, n *push.Notification, deliver *time.Time) error {
	if n == nil {
		return ErrNotificationNil
	}

	n.ErrorMessage = ""
	n.DeliveryErrors = nil
	n.Finished = nil
	n.Canceled = false
	n.Deliver = deliver
	n.Modified = time.Now()
	if err := e.saveNotification(ctx, n); err != nil {
		return err
	}

	if deliver != nil && deliver.After(time.Now()) {
		return e.scheduleQueueJob(ctx, n)
	}
	return e.QueueNotification(ctx, n, nil)
}

// queuePath returns the durable queue path scoped to one notification.
func (e *Engine) queuePath(notificationID uuid.UUID) string {
	return e.cfg.QueuePathPrefix + "/" + notificationID.String()
}

func (e *Engine) jobData(n *push.Notification) jobs.Data {
	return jobs.Data{
		ApplicationID:  n.ApplicationID,
		NotificationID: n.ID,
		Deliver:        n.Deliver,
	}
}

// scheduleQueueJob schedules the fan-out job, at the deliver time when one
// is set, otherwise as soon as the scheduler gets to it.
func (e *Engine) scheduleQueueJob(ctx context.Context, n *push.Notification) error {
	notBefore := time.Now()
	if n.Deliver != nil && n.Deliver.After(notBefore) {
		notBefore = *n.Deliver
	}
	if err := e.scheduler.Schedule(ctx, jobs.TypeQueue, notBefore, e.jobData(n)); err != nil {
		return fmt.Errorf("failed to schedule queue job for notification %s: %w", n.ID, err)
	}
	return nil
}

// scheduleDelivery schedules the next batch-processing job after the
// configured grace period.
func (e *Engine) scheduleDelivery(ctx context.Context, n *push.Notification) error {
	notBefore := time.Now().Add(e.cfg.SchedulerGracePeriod)
	if err := e.scheduler.Schedule(ctx, jobs.TypeDelivery, notBefore, e.jobData(n)); err != nil {
		return fmt.Errorf("failed to schedule delivery job for notification %s: %w", n.ID, err)
	}
	return nil
}

// QueueJobHandler returns the jobs.Handler that resumes fan-out inside a
// job execution.
func (e *Engine) QueueJobHandler() jobs.Handler {
	return func(ctx context.Context, exec *jobs.Execution) error {
		n, err := e.loadNotification(ctx, exec.Data().NotificationID)
		if err != nil {
			return err
		}
		if !deliverMatches(exec.Data().Deliver, n.Deliver) {
			// A newer schedule superseded this job.
			exec.Kill()
			return nil
		}
		return e.QueueNotification(ctx, n, exec)
	}
}

// DeliveryJobHandler returns the jobs.Handler that processes delivery
// batches inside a job execution.
func (e *Engine) DeliveryJobHandler() jobs.Handler {
	return func(ctx context.Context, exec *jobs.Execution) error {
		n, err := e.loadNotification(ctx, exec.Data().NotificationID)
		if err != nil {
			return err
		}
		return e.ProcessBatchAndReschedule(ctx, n, exec)
	}
}

// RegisterJobs binds the engine's job handlers to a scheduler registry.
func (e *Engine) RegisterJobs(reg interface {
	RegisterHandler(jobType string, handler jobs.Handler) error
}) error {
	if err := reg.RegisterHandler(jobs.TypeQueue, e.QueueJobHandler()); err != nil {
		return err
	}
	return reg.RegisterHandler(jobs.TypeDelivery, e.DeliveryJobHandler())
}

// deliverMatches reports whether a job's deliver snapshot still matches
// the notification's current deliver time.
func deliverMatches(snapshot, current *time.Time) bool {
	if snapshot == nil || current == nil {
		return snapshot == nil && current == nil
	}
	return snapshot.Equal(*current)
}

func (e *Engine) logAttrs(n *push.Notification) []any {
	return []any{
		logger.NotificationID(n.ID),
		logger.ApplicationID(n.ApplicationID),
	}
}
