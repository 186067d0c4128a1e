package engine_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushgate/pushgate/pkg/engine"
	"github.com/pushgate/pushgate/pkg/entitystore"
	"github.com/pushgate/pushgate/pkg/jobs"
	"github.com/pushgate/pushgate/pkg/provider"
	"github.com/pushgate/pushgate/pkg/push"
	"github.com/pushgate/pushgate/pkg/queue"
)

type fixture struct {
	store   *entitystore.MemoryStore
	queue   *queue.MemoryQueue
	sched   *jobs.MemoryScheduler
	adapter *provider.NoopAdapter
	engine  *engine.Engine
	appID   uuid.UUID
}

func newFixture(t *testing.T, cfg engine.Config) *fixture {
	t.Helper()

	f := &fixture{
		store:   entitystore.NewMemoryStore(),
		queue:   queue.NewMemoryQueue(),
		adapter: provider.NewNoopAdapter(),
		appID:   uuid.New(),
	}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.sched = jobs.NewMemoryScheduler(jobs.WithLogger(quiet))

	registry := provider.NewRegistry(provider.WithAdapter("noop", f.adapter))

	if cfg.SchedulerGracePeriod == 0 {
		cfg.SchedulerGracePeriod = time.Millisecond
	}
	eng, err := engine.New(cfg, f.store, f.queue, f.sched, registry, engine.WithLogger(quiet))
	require.NoError(t, err)
	require.NoError(t, eng.RegisterJobs(f.sched))
	f.engine = eng
	return f
}

func (f *fixture) appRef() entitystore.Ref {
	return entitystore.NewRef(push.TypeApplication, f.appID)
}

func (f *fixture) addNotifier(t *testing.T, name string) *push.Notifier {
	t.Helper()
	ctx := context.Background()

	entity := entitystore.NewEntity(push.TypeNotifier)
	entity.Name = name
	entity.SetProperty("provider", "noop")
	require.NoError(t, f.store.Create(ctx, entity))
	require.NoError(t, f.store.AddToCollection(ctx, f.appRef(), push.CollectionNotifiers, entity.Ref))

	return &push.Notifier{ID: entity.ID, Name: name, Provider: "noop"}
}

// addDevice registers a device; an empty token leaves the device without a
// provider id for any notifier.
func (f *fixture) addDevice(t *testing.T, notifier *push.Notifier, token string) entitystore.Ref {
	t.Helper()
	ctx := context.Background()

	entity := entitystore.NewEntity(push.TypeDevice)
	if token != "" {
		entity.SetProperty(notifier.Name+push.NotifierIDSuffix, token)
	}
	require.NoError(t, f.store.Create(ctx, entity))
	require.NoError(t, f.store.AddToCollection(ctx, f.appRef(), push.CollectionDevices, entity.Ref))
	return entity.Ref
}

func (f *fixture) addUser(t *testing.T, devices ...entitystore.Ref) entitystore.Ref {
	t.Helper()
	ctx := context.Background()

	entity := entitystore.NewEntity(push.TypeUser)
	require.NoError(t, f.store.Create(ctx, entity))
	require.NoError(t, f.store.AddToCollection(ctx, f.appRef(), push.CollectionUsers, entity.Ref))
	for _, device := range devices {
		require.NoError(t, f.store.AddToCollection(ctx, entity.Ref, push.CollectionDevices, device))
	}
	return entity.Ref
}

func (f *fixture) addGroup(t *testing.T, name string, users ...entitystore.Ref) entitystore.Ref {
	t.Helper()
	ctx := context.Background()

	entity := entitystore.NewEntity(push.TypeGroup)
	entity.Name = name
	require.NoError(t, f.store.Create(ctx, entity))
	require.NoError(t, f.store.AddToCollection(ctx, f.appRef(), push.CollectionGroups, entity.Ref))
	for _, user := range users {
		require.NoError(t, f.store.AddToCollection(ctx, entity.Ref, push.CollectionUsers, user))
	}
	return entity.Ref
}

// drain runs scheduled jobs until none remain.
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for f.sched.PendingCount() > 0 {
		require.True(t, time.Now().Before(deadline), "scheduled jobs did not drain")
		if f.sched.RunDue(context.Background()) == 0 {
			time.Sleep(2 * time.Millisecond)
		}
	}
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) *push.Notification {
	t.Helper()

	entity, err := f.store.Get(context.Background(), entitystore.NewRef(push.TypeNotification, id))
	require.NoError(t, err)

	raw, err := json.Marshal(entity.Properties)
	require.NoError(t, err)
	var n push.Notification
	require.NoError(t, json.Unmarshal(raw, &n))
	return &n
}

func (f *fixture) receipts(t *testing.T, id uuid.UUID) []*push.Receipt {
	t.Helper()

	page, err := f.store.QueryCollection(context.Background(),
		entitystore.NewRef(push.TypeNotification, id), push.CollectionReceipts,
		entitystore.Query{Limit: 1000})
	require.NoError(t, err)

	receipts := make([]*push.Receipt, 0, len(page.Entities))
	for _, entity := range page.Entities {
		raw, err := json.Marshal(entity.Properties)
		require.NoError(t, err)
		var r push.Receipt
		require.NoError(t, json.Unmarshal(raw, &r))
		receipts = append(receipts, &r)
	}
	return receipts
}

func deviceTarget() push.TargetPath {
	return push.NewTargetPath(push.PathToken{Collection: push.CollectionDevices})
}

func TestEngine_Submit_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, engine.Config{})
	f.addNotifier(t, "apns")

	t.Run("empty target", func(t *testing.T) {
		n := push.NewNotification(f.appID, push.TargetPath{}, map[string]any{"apns": "hi"})
		assert.ErrorIs(t, f.engine.Submit(ctx, n), push.ErrEmptyTarget)
	})

	t.Run("missing payloads", func(t *testing.T) {
		n := push.NewNotification(f.appID, deviceTarget(), nil)
		assert.ErrorIs(t, f.engine.Submit(ctx, n), push.ErrMissingPayloads)
	})

	t.Run("unknown notifier key", func(t *testing.T) {
		n := push.NewNotification(f.appID, deviceTarget(), map[string]any{"missing": "hi"})
		assert.ErrorIs(t, f.engine.Submit(ctx, n), engine.ErrUnknownNotifier)
	})

	t.Run("untranslatable payload", func(t *testing.T) {
		n := push.NewNotification(f.appID, deviceTarget(), map[string]any{"apns": nil})
		assert.ErrorIs(t, f.engine.Submit(ctx, n), provider.ErrInvalidPayload)
	})

	t.Run("no partial state on validation failure", func(t *testing.T) {
		n := push.NewNotification(f.appID, deviceTarget(), map[string]any{"missing": "hi"})
		_ = f.engine.Submit(ctx, n)
		_, err := f.store.Get(ctx, entitystore.NewRef(push.TypeNotification, n.ID))
		assert.ErrorIs(t, err, entitystore.ErrNotFound)
	})
}

func TestEngine_ZeroDevices(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, engine.Config{})
	f.addNotifier(t, "apns")

	n := push.NewNotification(f.appID, deviceTarget(), map[string]any{"apns": "hello"})
	require.NoError(t, f.engine.Submit(ctx, n))

	stored := f.reload(t, n.ID)
	require.NotNil(t, stored.Finished, "zero-device notification finishes immediately")
	assert.Equal(t, int64(0), stored.Statistics.Sent)
	assert.Equal(t, int64(0), stored.Statistics.Errors)
	assert.Equal(t, int64(0), stored.ExpectedCount)

	messages, err := f.queue.HasMessages(ctx, "notifications/"+n.ID.String())
	require.NoError(t, err)
	assert.False(t, messages, "no queue items are ever created")
	assert.Empty(t, f.adapter.Sent())
}

func TestEngine_DeliversToAllDevices(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, engine.Config{})
	notifier := f.addNotifier(t, "apns")
	f.addDevice(t, notifier, "token-1")
	f.addDevice(t, notifier, "token-2")

	n := push.NewNotification(f.appID, deviceTarget(), map[string]any{"apns": "hello"})
	require.NoError(t, f.engine.Submit(ctx, n))
	f.drain(t)

	stored := f.reload(t, n.ID)
	require.NotNil(t, stored.Finished)
	assert.Equal(t, push.StateFinished, stored.State())
	assert.Equal(t, int64(2), stored.ExpectedCount)
	assert.Equal(t, int64(2), stored.Statistics.Sent)
	assert.Equal(t, int64(0), stored.Statistics.Errors)
	assert.Len(t, f.adapter.Sent(), 2)
	assert.GreaterOrEqual(t, f.adapter.Flushes(), 1, "adapter flushed at the batch boundary")

	drained, err := queue.Drained(ctx, f.queue, "notifications/"+n.ID.String())
	require.NoError(t, err)
	assert.True(t, drained)

	assert.Empty(t, f.receipts(t, n.ID), "success receipts are not persisted without debug")
}

func TestEngine_DebugReceipts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("debug persists success receipts", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, engine.Config{})
		notifier := f.addNotifier(t, "apns")
		f.addDevice(t, notifier, "token-1")
		f.addDevice(t, notifier, "token-2")

		n := push.NewNotification(f.appID, deviceTarget(), map[string]any{"apns": "hello"})
		n.Debug = true
		require.NoError(t, f.engine.Submit(ctx, n))
		f.drain(t)

		receipts := f.receipts(t, n.ID)
		require.Len(t, receipts, 2)
		for _, r := range receipts {
			assert.NotNil(t, r.Sent)
		}
	})

	t.Run("failure receipts always persist", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t, engine.Config{})
		notifier := f.addNotifier(t, "apns")
		f.addDevice(t, notifier, "good-token")
		f.addDevice(t, notifier, "bad-token")
		f.adapter.FailDevice("bad-token", 8, "invalid token")

		n := push.NewNotification(f.appID, deviceTarget(), map[string]any{"apns": "hello"})
		require.NoError(t, f.engine.Submit(ctx, n))
		f.drain(t)

		stored := f.reload(t, n.ID)
		assert.Equal(t, int64(1), stored.Statistics.Sent)
		assert.Equal(t, int64(1), stored.Statistics.Errors)
		assert.NotEmpty(t, stored.ErrorMessage)
		assert.Equal(t, push.StateFailed, stored.State())

		receipts := f.receipts(t, n.ID)
		require.Len(t, receipts, 1, "only the failure is persisted")
		assert.Equal(t, 8, receipts[0].ErrorCode)
		assert.Equal(t, "invalid token", receipts[0].ErrorMessage)
		assert.Nil(t, receipts[0].Sent)
	})
}

func TestEngine_DeduplicatesDevices(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, engine.Config{})
	notifier := f.addNotifier(t, "apns")

	// One device reachable through two users of the same group.
	device := f.addDevice(t, notifier, "shared-token")
	userA := f.addUser(t, device)
	userB := f.addUser(t, device)
	f.addGroup(t, "staff", userA, userB)

	n := push.NewNotification(f.appID,
		push.NewTargetPath(push.PathToken{Collection: push.CollectionGroups, Name: "staff"}),
		map[string]any{"apns": "hello"})
	require.NoError(t, f.engine.Submit(ctx, n))
	f.drain(t)

	stored := f.reload(t, n.ID)
	assert.Equal(t, int64(1), stored.ExpectedCount, "device enqueued at most once")
	assert.Equal(t, int64(1), stored.Statistics.Sent)
	assert.Len(t, f.adapter.Sent(), 1)
}

func TestEngine_GroupFanOutWithSoftSkip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, engine.Config{})
	notifier := f.addNotifier(t, "apns")

	// 3 users with 2 devices each; one device has no provider token.
	var users []entitystore.Ref
	for i := 0; i < 3; i++ {
		tokenA := "token-a"
		if i == 0 {
			tokenA = ""
		}
		devA := f.addDevice(t, notifier, tokenA)
		devB := f.addDevice(t, notifier, "token-b")
		users = append(users, f.addUser(t, devA, devB))
	}
	f.addGroup(t, "staff", users...)

	n := push.NewNotification(f.appID,
		push.NewTargetPath(push.PathToken{Collection: push.CollectionGroups, Name: "staff"}),
		map[string]any{"apns": "hello"})
	require.NoError(t, f.engine.Submit(ctx, n))
	f.drain(t)

	stored := f.reload(t, n.ID)
	require.NotNil(t, stored.Finished)
	assert.Equal(t, int64(6), stored.ExpectedCount, "soft-skipped device still counts as targeted")
	assert.Equal(t, int64(5), stored.Statistics.Sent)
	assert.Equal(t, int64(0), stored.Statistics.Errors, "no notifier match is not a provider error")
	assert.Equal(t, push.StateFinished, stored.State())
	assert.Len(t, f.adapter.Sent(), 5)
	assert.Len(t, stored.DeliveryErrors, 1)
}

func TestEngine_TokenReplacement(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, engine.Config{})
	notifier := f.addNotifier(t, "apns")

	var refs []entitystore.Ref
	for i := 0; i < 5; i++ {
		refs = append(refs, f.addDevice(t, notifier, "token-"+string(rune('a'+i))))
	}
	f.adapter.ReplaceToken("token-c", "token-c-canonical")

	n := push.NewNotification(f.appID, deviceTarget(), map[string]any{"apns": "hello"})
	require.NoError(t, f.engine.Submit(ctx, n))
	f.drain(t)

	stored := f.reload(t, n.ID)
	assert.Equal(t, int64(5), stored.Statistics.Sent)

	prop := notifier.Name + push.NotifierIDSuffix
	for i, ref := range refs {
		value, err := f.store.GetProperty(ctx, ref, prop)
		require.NoError(t, err)
		want := "token-" + string(rune('a'+i))
		if want == "token-c" {
			want = "token-c-canonical"
		}
		assert.Equal(t, want, value)
	}
}

func TestEngine_Cancellation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, engine.Config{})
	notifier := f.addNotifier(t, "apns")
	f.addDevice(t, notifier, "token-1")

	n := push.NewNotification(f.appID, deviceTarget(), map[string]any{"apns": "hello"})
	require.NoError(t, f.engine.Submit(ctx, n))

	// Cancel between fan-out and the scheduled delivery job.
	require.NoError(t, f.engine.Cancel(ctx, n))
	f.drain(t)

	stored := f.reload(t, n.ID)
	assert.True(t, stored.Canceled)
	assert.Nil(t, stored.Finished)
	assert.Equal(t, int64(0), stored.Statistics.Sent)
	assert.Empty(t, f.adapter.Sent(), "canceled notification sends nothing")

	// Further invocations are no-ops.
	require.NoError(t, f.engine.QueueNotification(ctx, stored, nil))
	require.NoError(t, f.engine.ProcessBatchAndReschedule(ctx, stored, nil))
	assert.Empty(t, f.adapter.Sent())
}

func TestEngine_StaleDeliverSupersedesJob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, engine.Config{})
	notifier := f.addNotifier(t, "apns")
	f.addDevice(t, notifier, "token-1")

	deliver := time.Now().Add(30 * time.Millisecond)
	n := push.NewNotification(f.appID, deviceTarget(), map[string]any{"apns": "hello"})
	n.Deliver = &deliver
	require.NoError(t, f.engine.Submit(ctx, n))
	require.Equal(t, 1, f.sched.PendingCount(), "future deliver schedules instead of sending")

	// A concurrent edit moves the deliver time, superseding the job.
	newDeliver := time.Now().Add(time.Hour)
	require.NoError(t, f.engine.Restart(ctx, n, &newDeliver))

	time.Sleep(40 * time.Millisecond)
	f.sched.RunDue(ctx)

	stored := f.reload(t, n.ID)
	assert.Nil(t, stored.Queued, "superseded job must not fan out")
	assert.Equal(t, int64(0), stored.Statistics.Sent)
	assert.Empty(t, f.adapter.Sent())
}

func TestEngine_ScheduledDelivery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, engine.Config{})
	notifier := f.addNotifier(t, "apns")
	f.addDevice(t, notifier, "token-1")

	deliver := time.Now().Add(20 * time.Millisecond)
	n := push.NewNotification(f.appID, deviceTarget(), map[string]any{"apns": "hello"})
	n.Deliver = &deliver
	require.NoError(t, f.engine.Submit(ctx, n))
	assert.Empty(t, f.adapter.Sent(), "nothing sends before the deliver time")

	f.drain(t)

	stored := f.reload(t, n.ID)
	require.NotNil(t, stored.Finished)
	assert.Equal(t, int64(1), stored.Statistics.Sent)
}

func TestEngine_PagedTargetHandsOffToJob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, engine.Config{})
	notifier := f.addNotifier(t, "apns")
	const devices = 150
	for i := 0; i < devices; i++ {
		f.addDevice(t, notifier, uuid.NewString())
	}

	n := push.NewNotification(f.appID, deviceTarget(), map[string]any{"apns": "hello"})
	require.NoError(t, f.engine.Submit(ctx, n))

	messages, err := f.queue.HasMessages(ctx, "notifications/"+n.ID.String())
	require.NoError(t, err)
	assert.False(t, messages, "multi-page target enqueues nothing inline")
	assert.Equal(t, 1, f.sched.PendingCount(), "fan-out handed off to a queue job")

	f.drain(t)

	stored := f.reload(t, n.ID)
	require.NotNil(t, stored.Finished)
	assert.Equal(t, int64(devices), stored.ExpectedCount)
	assert.Equal(t, int64(devices), stored.Statistics.Sent)
	assert.Len(t, f.adapter.Sent(), devices)
}

func TestEngine_MissingTargetEntityIsSoftError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, engine.Config{})
	f.addNotifier(t, "apns")

	missing := uuid.New()
	n := push.NewNotification(f.appID,
		push.NewTargetPath(push.PathToken{Collection: push.CollectionUsers, ID: missing}),
		map[string]any{"apns": "hello"})
	require.NoError(t, f.engine.Submit(ctx, n))

	stored := f.reload(t, n.ID)
	require.NotNil(t, stored.Finished, "unresolvable target finishes with zero work")
	require.Len(t, stored.DeliveryErrors, 1)
	assert.Equal(t, "Failed to add devices for entity: "+missing.String(), stored.DeliveryErrors[0])
}

func TestEngine_RestartUpsertsReceipts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, engine.Config{})
	notifier := f.addNotifier(t, "apns")
	f.addDevice(t, notifier, "token-1")
	f.addDevice(t, notifier, "token-2")

	n := push.NewNotification(f.appID, deviceTarget(), map[string]any{"apns": "hello"})
	n.Debug = true
	require.NoError(t, f.engine.Submit(ctx, n))
	f.drain(t)
	require.Len(t, f.receipts(t, n.ID), 2)

	stored := f.reload(t, n.ID)
	require.NoError(t, f.engine.Restart(ctx, stored, nil))
	f.drain(t)

	final := f.reload(t, n.ID)
	require.NotNil(t, final.Finished)
	assert.Equal(t, int64(4), final.Statistics.Sent, "statistics accumulate across restarts")
	assert.Len(t, f.receipts(t, n.ID), 2, "receipt ids are deterministic, so reruns upsert")
}

func TestEngine_InactiveDeviceSweep(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, engine.Config{})
	notifier := f.addNotifier(t, "apns")
	stale := f.addDevice(t, notifier, "stale-token")
	fresh := f.addDevice(t, notifier, "fresh-token")
	f.adapter.SetInactiveDevice("stale-token", time.Now().Add(-time.Hour))

	n := push.NewNotification(f.appID, deviceTarget(), map[string]any{"apns": "hello"})
	require.NoError(t, f.engine.Submit(ctx, n))
	f.drain(t)
	require.NoError(t, f.engine.Close())

	prop := notifier.Name + push.NotifierIDSuffix
	value, err := f.store.GetProperty(ctx, stale, prop)
	require.NoError(t, err)
	assert.Nil(t, value, "stale token cleared from the device record")

	value, err = f.store.GetProperty(ctx, fresh, prop)
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", value)
}

func TestEngine_NamedTargetBeyondFirstPage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, engine.Config{})
	notifier := f.addNotifier(t, "apns")

	// Enough groups ahead of the target that a name lookup must walk past
	// full page windows before the match appears.
	for i := 0; i < entitystore.DefaultPageSize; i++ {
		f.addGroup(t, "team-"+uuid.NewString())
	}
	device := f.addDevice(t, notifier, "token-1")
	user := f.addUser(t, device)
	f.addGroup(t, "staff", user)

	n := push.NewNotification(f.appID,
		push.NewTargetPath(push.PathToken{Collection: push.CollectionGroups, Name: "staff"}),
		map[string]any{"apns": "hello"})
	require.NoError(t, f.engine.Submit(ctx, n))
	f.drain(t)

	stored := f.reload(t, n.ID)
	require.NotNil(t, stored.Finished)
	assert.Empty(t, stored.DeliveryErrors, "named target resolves past short filtered pages")
	assert.Equal(t, int64(1), stored.ExpectedCount)
	assert.Equal(t, int64(1), stored.Statistics.Sent)
	assert.Len(t, f.adapter.Sent(), 1)
}

func TestEngine_RedeliveryAfterAbandonedTake(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, engine.Config{})
	notifier := f.addNotifier(t, "apns")
	f.addDevice(t, notifier, "token-1")

	n := push.NewNotification(f.appID, deviceTarget(), map[string]any{"apns": "hello"})
	n.Debug = true
	require.NoError(t, f.engine.Submit(ctx, n))

	// A consumer takes the only work item and dies without committing; the
	// visibility timeout passes before the engine's delivery job runs.
	path := "notifications/" + n.ID.String()
	msgs, err := f.queue.Get(ctx, path, queue.GetOptions{Limit: 10, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	time.Sleep(30 * time.Millisecond)

	f.drain(t)

	stored := f.reload(t, n.ID)
	require.NotNil(t, stored.Finished)
	assert.Equal(t, int64(1), stored.Statistics.Sent, "redelivered item counts once")
	assert.Equal(t, int64(0), stored.Statistics.Errors)
	assert.Len(t, f.adapter.Sent(), 1)

	receipts := f.receipts(t, n.ID)
	require.Len(t, receipts, 1, "at most one receipt per device despite redelivery")
	assert.NotNil(t, receipts[0].Sent)
}

func TestEngine_MaxEmptyBatchesForcesFinish(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, engine.Config{MaxEmptyBatches: 2})
	notifier := f.addNotifier(t, "apns")
	f.addDevice(t, notifier, "token-1")

	n := push.NewNotification(f.appID, deviceTarget(), map[string]any{"apns": "hello"})
	require.NoError(t, f.engine.Submit(ctx, n))

	// A stuck consumer holds the only item far past any reasonable
	// deadline, so the queue never drains and every read comes back empty.
	path := "notifications/" + n.ID.String()
	msgs, err := f.queue.Get(ctx, path, queue.GetOptions{Limit: 10, Timeout: time.Hour})
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	f.drain(t)

	stored := f.reload(t, n.ID)
	require.NotNil(t, stored.Finished, "repeated empty reads force finalization")
	assert.Equal(t, int64(0), stored.Statistics.Sent)
	assert.Empty(t, stored.ErrorMessage, "giving up is not a provider failure")
	assert.Empty(t, f.adapter.Sent())
}

func TestEngine_CancelFinishedNotification(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, engine.Config{})
	f.addNotifier(t, "apns")

	// Zero devices, so the notification finishes at submit time.
	n := push.NewNotification(f.appID, deviceTarget(), map[string]any{"apns": "hello"})
	require.NoError(t, f.engine.Submit(ctx, n))

	stored := f.reload(t, n.ID)
	require.NotNil(t, stored.Finished)

	assert.ErrorIs(t, f.engine.Cancel(ctx, stored), push.ErrNotificationFinished)
	assert.False(t, f.reload(t, n.ID).Canceled, "finished state stays immutable")
}

func TestEngine_PriorityReachesAdapter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, engine.Config{})
	notifier := f.addNotifier(t, "apns")
	f.addDevice(t, notifier, "token-1")

	n := push.NewNotification(f.appID, deviceTarget(), map[string]any{"apns": "hello"})
	n.Priority = push.PriorityHigh
	require.NoError(t, f.engine.Submit(ctx, n))
	f.drain(t)

	sent := f.adapter.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, push.PriorityHigh, sent[0].Priority)
}

func TestEngine_ProvidersAndTestConnection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, engine.Config{})
	notifier := f.addNotifier(t, "apns")

	assert.Equal(t, []string{"noop"}, f.engine.Providers())
	require.NoError(t, f.engine.TestConnection(ctx, notifier))

	assert.ErrorIs(t, f.engine.TestConnection(ctx, nil), engine.ErrNotifierNil)

	unknown := &push.Notifier{ID: uuid.New(), Name: "w", Provider: "windows"}
	assert.ErrorIs(t, f.engine.TestConnection(ctx, unknown), provider.ErrUnknownProvider)
}
