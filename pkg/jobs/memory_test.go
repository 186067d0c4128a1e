package jobs_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushgate/pushgate/pkg/jobs"
)

func TestMemoryScheduler_Schedule(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("unknown job type", func(t *testing.T) {
		t.Parallel()

		s := jobs.NewMemoryScheduler()
		err := s.Schedule(ctx, "no.such.job", time.Now(), jobs.Data{})
		assert.ErrorIs(t, err, jobs.ErrUnknownJobType)
	})

	t.Run("nil handler", func(t *testing.T) {
		t.Parallel()

		s := jobs.NewMemoryScheduler()
		err := s.RegisterHandler(jobs.TypeQueue, nil)
		assert.ErrorIs(t, err, jobs.ErrHandlerNil)
	})

	t.Run("due job runs with its data", func(t *testing.T) {
		t.Parallel()

		s := jobs.NewMemoryScheduler()
		notificationID := uuid.New()

		var got jobs.Data
		require.NoError(t, s.RegisterHandler(jobs.TypeQueue, func(ctx context.Context, exec *jobs.Execution) error {
			got = exec.Data()
			exec.Completed()
			return nil
		}))

		require.NoError(t, s.Schedule(ctx, jobs.TypeQueue, time.Now(), jobs.Data{
			ApplicationID:  uuid.New(),
			NotificationID: notificationID,
		}))

		assert.Equal(t, 1, s.RunDue(ctx))
		assert.Equal(t, notificationID, got.NotificationID)
		assert.Equal(t, 0, s.PendingCount())
	})

	t.Run("future job stays pending", func(t *testing.T) {
		t.Parallel()

		s := jobs.NewMemoryScheduler()
		require.NoError(t, s.RegisterHandler(jobs.TypeDelivery, func(ctx context.Context, exec *jobs.Execution) error {
			return nil
		}))

		require.NoError(t, s.Schedule(ctx, jobs.TypeDelivery, time.Now().Add(time.Hour), jobs.Data{}))

		assert.Equal(t, 0, s.RunDue(ctx))
		assert.Equal(t, 1, s.PendingCount())
	})
}

func TestMemoryScheduler_Retries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("failed execution is rescheduled", func(t *testing.T) {
		t.Parallel()

		s := jobs.NewMemoryScheduler(jobs.WithPollInterval(time.Millisecond), jobs.WithMaxAttempts(3))

		var attempts atomic.Int32
		require.NoError(t, s.RegisterHandler(jobs.TypeQueue, func(ctx context.Context, exec *jobs.Execution) error {
			attempts.Add(1)
			return errors.New("transient")
		}))

		require.NoError(t, s.Schedule(ctx, jobs.TypeQueue, time.Now(), jobs.Data{}))

		require.Equal(t, 1, s.RunDue(ctx))
		assert.Equal(t, 1, s.PendingCount(), "failed job must be rescheduled")

		time.Sleep(5 * time.Millisecond)
		require.Equal(t, 1, s.RunDue(ctx))
		time.Sleep(5 * time.Millisecond)
		require.Equal(t, 1, s.RunDue(ctx))

		assert.Equal(t, int32(3), attempts.Load())
		assert.Equal(t, 0, s.PendingCount(), "retries exhausted, job dropped")
	})

	t.Run("killed execution is not retried", func(t *testing.T) {
		t.Parallel()

		s := jobs.NewMemoryScheduler()

		var attempts atomic.Int32
		require.NoError(t, s.RegisterHandler(jobs.TypeDelivery, func(ctx context.Context, exec *jobs.Execution) error {
			attempts.Add(1)
			exec.Kill()
			return errors.New("ignored, execution already settled")
		}))

		require.NoError(t, s.Schedule(ctx, jobs.TypeDelivery, time.Now(), jobs.Data{}))
		require.Equal(t, 1, s.RunDue(ctx))

		assert.Equal(t, int32(1), attempts.Load())
		assert.Equal(t, 0, s.PendingCount())
	})
}

func TestMemoryScheduler_StartStop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := jobs.NewMemoryScheduler(jobs.WithPollInterval(time.Millisecond))

	done := make(chan struct{})
	require.NoError(t, s.RegisterHandler(jobs.TypeQueue, func(ctx context.Context, exec *jobs.Execution) error {
		close(done)
		exec.Completed()
		return nil
	}))

	require.NoError(t, s.Start(ctx))
	assert.ErrorIs(t, s.Start(ctx), jobs.ErrAlreadyStarted)

	require.NoError(t, s.Schedule(ctx, jobs.TypeQueue, time.Now(), jobs.Data{}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduled job never ran")
	}

	s.Stop()
}

func TestExecution(t *testing.T) {
	t.Parallel()

	t.Run("completed is terminal", func(t *testing.T) {
		t.Parallel()

		exec := jobs.NewExecution(jobs.TypeQueue, jobs.Data{})
		require.Equal(t, jobs.StatusInProgress, exec.Status())

		exec.Completed()
		exec.Failed(errors.New("late failure"))

		assert.Equal(t, jobs.StatusCompleted, exec.Status())
		assert.NoError(t, exec.Err())
	})

	t.Run("failed records the error", func(t *testing.T) {
		t.Parallel()

		exec := jobs.NewExecution(jobs.TypeDelivery, jobs.Data{})
		failure := errors.New("provider unreachable")
		exec.Failed(failure)
		exec.Completed()

		assert.Equal(t, jobs.StatusFailed, exec.Status())
		assert.ErrorIs(t, exec.Err(), failure)
	})

	t.Run("kill is terminal", func(t *testing.T) {
		t.Parallel()

		exec := jobs.NewExecution(jobs.TypeQueue, jobs.Data{})
		exec.Kill()
		exec.Completed()

		assert.Equal(t, jobs.StatusKilled, exec.Status())
	})
}
