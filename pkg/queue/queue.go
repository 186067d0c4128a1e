package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultVisibilityTimeout is how long a taken message stays invisible
// before it is considered abandoned and becomes redeliverable.
const DefaultVisibilityTimeout = 25 * time.Second

// Message is one unit of queued work. TxID is set on messages returned by
// Get and must be passed to Commit once the work is durably recorded.
type Message struct {
	ID   uuid.UUID       `json:"id"`
	Body json.RawMessage `json:"body"`
	TxID string          `json:"-"`
}

// Decode unmarshals the message body into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Body, v)
}

// GetOptions bounds a Get call.
type GetOptions struct {
	// Limit is the maximum number of messages to take; defaults to 1.
	Limit int
	// Timeout is the visibility timeout for the taken messages; defaults
	// to DefaultVisibilityTimeout.
	Timeout time.Duration
}

func (o GetOptions) normalize() GetOptions {
	if o.Limit <= 0 {
		o.Limit = 1
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultVisibilityTimeout
	}
	return o
}

// Manager is the transactional queue surface the engine depends on.
type Manager interface {
	// Post marshals payload and appends it to the queue at path.
	Post(ctx context.Context, path string, payload any) error

	// Get takes up to opts.Limit messages under fresh transaction handles.
	// Taken messages are invisible until committed or until the visibility
	// timeout passes.
	Get(ctx context.Context, path string, opts GetOptions) ([]Message, error)

	// Commit finalizes a taken message; it will not be redelivered.
	Commit(ctx context.Context, path string, txID string) error

	// HasPendingReads reports whether a Get could return anything,
	// counting expired uncommitted takes.
	HasPendingReads(ctx context.Context, path string) (bool, error)

	// HasOutstandingTransactions reports whether any take is uncommitted.
	HasOutstandingTransactions(ctx context.Context, path string) (bool, error)

	// HasMessages reports whether ready messages remain in the queue.
	HasMessages(ctx context.Context, path string) (bool, error)
}

// Drained reports whether the queue at path is completely finished: no
// ready messages, no redeliverable ones, and no open transactions.
func Drained(ctx context.Context, m Manager, path string) (bool, error) {
	pending, err := m.HasPendingReads(ctx, path)
	if err != nil {
		return false, err
	}
	outstanding, err := m.HasOutstandingTransactions(ctx, path)
	if err != nil {
		return false, err
	}
	messages, err := m.HasMessages(ctx, path)
	if err != nil {
		return false, err
	}
	return !pending && !outstanding && !messages, nil
}
