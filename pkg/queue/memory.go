package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inflightMessage struct {
	msg      Message
	deadline time.Time
}

type memoryPath struct {
	ready    []Message
	inflight map[string]inflightMessage
}

// MemoryQueue implements Manager in process memory with visibility-timeout
// redelivery. It is the queue used by tests and single-process deployments.
type MemoryQueue struct {
	mu    sync.Mutex
	paths map[string]*memoryPath
}

// NewMemoryQueue creates an empty in-memory queue manager.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{paths: make(map[string]*memoryPath)}
}

func (q *MemoryQueue) path(path string) *memoryPath {
	p, ok := q.paths[path]
	if !ok {
		p = &memoryPath{inflight: make(map[string]inflightMessage)}
		q.paths[path] = p
	}
	return p
}

// requeueExpired moves timed-out uncommitted takes back to the ready list.
// Caller holds the lock.
func (p *memoryPath) requeueExpired(now time.Time) {
	for txID, entry := range p.inflight {
		if entry.deadline.Before(now) {
			p.ready = append(p.ready, entry.msg)
			delete(p.inflight, txID)
		}
	}
}

// Post implements Manager.
func (q *MemoryQueue) Post(ctx context.Context, path string, payload any) error {
	if payload == nil {
		return ErrPayloadNil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPayloadMarshal, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	p := q.path(path)
	p.ready = append(p.ready, Message{ID: uuid.New(), Body: body})
	return nil
}

// Get implements Manager.
func (q *MemoryQueue) Get(ctx context.Context, path string, opts GetOptions) ([]Message, error) {
	opts = opts.normalize()

	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	p := q.path(path)
	p.requeueExpired(now)

	n := min(opts.Limit, len(p.ready))
	if n == 0 {
		return nil, nil
	}

	taken := make([]Message, n)
	copy(taken, p.ready[:n])
	p.ready = p.ready[n:]

	deadline := now.Add(opts.Timeout)
	for i := range taken {
		taken[i].TxID = uuid.NewString()
		p.inflight[taken[i].TxID] = inflightMessage{msg: Message{ID: taken[i].ID, Body: taken[i].Body}, deadline: deadline}
	}
	return taken, nil
}

// Commit implements Manager.
func (q *MemoryQueue) Commit(ctx context.Context, path string, txID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	p := q.path(path)
	if _, ok := p.inflight[txID]; !ok {
		return ErrUnknownTransaction
	}
	delete(p.inflight, txID)
	return nil
}

// HasPendingReads implements Manager.
func (q *MemoryQueue) HasPendingReads(ctx context.Context, path string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	p := q.path(path)
	if len(p.ready) > 0 {
		return true, nil
	}
	now := time.Now()
	for _, entry := range p.inflight {
		if entry.deadline.Before(now) {
			return true, nil
		}
	}
	return false, nil
}

// HasOutstandingTransactions implements Manager.
func (q *MemoryQueue) HasOutstandingTransactions(ctx context.Context, path string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.path(path).inflight) > 0, nil
}

// HasMessages implements Manager.
func (q *MemoryQueue) HasMessages(ctx context.Context, path string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.path(path).ready) > 0, nil
}
