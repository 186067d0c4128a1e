package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job types dispatched by the notification engine.
const (
	// TypeQueue continues or starts the fan-out of a notification.
	TypeQueue = "notification.queue"

	// TypeDelivery processes one batch of queued delivery work.
	TypeDelivery = "notification.delivery"
)

// Data is the payload every engine job carries.
type Data struct {
	ApplicationID  uuid.UUID `json:"application_id"`
	NotificationID uuid.UUID `json:"notification_id"`

	// Deliver snapshots the notification's deliver time at scheduling. A
	// job whose snapshot no longer matches the stored notification is
	// stale and must not run.
	Deliver *time.Time `json:"deliver,omitempty"`
}

// Scheduler enqueues a job of the given type to run no earlier than
// notBefore.
type Scheduler interface {
	Schedule(ctx context.Context, jobType string, notBefore time.Time, data Data) error
}

// Handler runs one job execution. Returning an error marks the execution
// failed unless the handler already settled it.
type Handler func(ctx context.Context, exec *Execution) error

// Status is the terminal or in-flight state of one job execution.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusKilled     Status = "killed"
)

// Execution is the mutable per-run state handed to a job handler. The
// engine also inspects it to tell a job-driven invocation apart from a
// direct one.
type Execution struct {
	mu      sync.Mutex
	jobType string
	data    Data
	attempt int
	status  Status
	err     error
}

// NewExecution creates an in-progress execution for the given job.
func NewExecution(jobType string, data Data) *Execution {
	return &Execution{jobType: jobType, data: data, status: StatusInProgress}
}

// JobType returns the job type this execution runs.
func (e *Execution) JobType() string { return e.jobType }

// Data returns the job payload.
func (e *Execution) Data() Data { return e.data }

// Attempt returns the zero-based retry attempt of this execution.
func (e *Execution) Attempt() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempt
}

// Status returns the current execution status.
func (e *Execution) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Err returns the failure recorded by Failed, if any.
func (e *Execution) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Completed marks the execution finished successfully. It is a no-op once
// the execution is settled.
func (e *Execution) Completed() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == StatusInProgress {
		e.status = StatusCompleted
	}
}

// Failed records err and marks the execution failed. It is a no-op once
// the execution is settled.
func (e *Execution) Failed(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == StatusInProgress {
		e.status = StatusFailed
		e.err = err
	}
}

// Kill marks the execution dead. A killed execution is never retried;
// handlers use it when the underlying work was canceled.
func (e *Execution) Kill() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == StatusInProgress {
		e.status = StatusKilled
	}
}
