package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisQueue implements Manager on Redis. Ready messages live in a list per
// queue path; uncommitted takes live in a sorted set scored by their
// redelivery deadline, with bodies parked in a hash keyed by transaction id.
type RedisQueue struct {
	client    redis.UniversalClient
	keyPrefix string
}

// RedisOption configures a RedisQueue.
type RedisOption func(*RedisQueue)

// WithKeyPrefix namespaces all queue keys; defaults to "pushgate:queue".
func WithKeyPrefix(prefix string) RedisOption {
	return func(q *RedisQueue) {
		if prefix != "" {
			q.keyPrefix = prefix
		}
	}
}

// NewRedisQueue creates a queue manager over an established Redis client.
func NewRedisQueue(client redis.UniversalClient, opts ...RedisOption) (*RedisQueue, error) {
	if client == nil {
		return nil, ErrClientNil
	}
	q := &RedisQueue{client: client, keyPrefix: "pushgate:queue"}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

func (q *RedisQueue) readyKey(path string) string {
	return q.keyPrefix + ":" + path + ":ready"
}

func (q *RedisQueue) unackedKey(path string) string {
	return q.keyPrefix + ":" + path + ":unacked"
}

func (q *RedisQueue) bodiesKey(path string) string {
	return q.keyPrefix + ":" + path + ":bodies"
}

// Post implements Manager.
func (q *RedisQueue) Post(ctx context.Context, path string, payload any) error {
	if payload == nil {
		return ErrPayloadNil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPayloadMarshal, err)
	}
	msg, err := json.Marshal(Message{ID: uuid.New(), Body: body})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPayloadMarshal, err)
	}
	if err := q.client.LPush(ctx, q.readyKey(path), msg).Err(); err != nil {
		return fmt.Errorf("failed to post to queue %s: %w", path, err)
	}
	return nil
}

// requeueExpired pushes timed-out uncommitted takes back onto the ready
// list so a later Get redelivers them.
func (q *RedisQueue) requeueExpired(ctx context.Context, path string) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	expired, err := q.client.ZRangeByScore(ctx, q.unackedKey(path), &redis.ZRangeBy{
		Min: "-inf",
		Max: now,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to scan expired transactions for %s: %w", path, err)
	}

	for _, txID := range expired {
		raw, err := q.client.HGet(ctx, q.bodiesKey(path), txID).Result()
		if err == redis.Nil {
			// Another consumer already requeued or committed it.
			q.client.ZRem(ctx, q.unackedKey(path), txID)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to load expired message body for %s: %w", path, err)
		}
		pipe := q.client.TxPipeline()
		pipe.LPush(ctx, q.readyKey(path), raw)
		pipe.ZRem(ctx, q.unackedKey(path), txID)
		pipe.HDel(ctx, q.bodiesKey(path), txID)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to requeue expired message for %s: %w", path, err)
		}
	}
	return nil
}

// Get implements Manager.
func (q *RedisQueue) Get(ctx context.Context, path string, opts GetOptions) ([]Message, error) {
	opts = opts.normalize()
	if err := q.requeueExpired(ctx, path); err != nil {
		return nil, err
	}

	raws, err := q.client.RPopCount(ctx, q.readyKey(path), opts.Limit).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to take from queue %s: %w", path, err)
	}

	deadline := float64(time.Now().Add(opts.Timeout).UnixMilli())
	messages := make([]Message, 0, len(raws))
	for _, raw := range raws {
		var msg Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("failed to decode queued message on %s: %w", path, err)
		}
		msg.TxID = uuid.NewString()

		pipe := q.client.TxPipeline()
		pipe.ZAdd(ctx, q.unackedKey(path), redis.Z{Score: deadline, Member: msg.TxID})
		pipe.HSet(ctx, q.bodiesKey(path), msg.TxID, raw)
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to open transaction on %s: %w", path, err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Commit implements Manager.
func (q *RedisQueue) Commit(ctx context.Context, path string, txID string) error {
	removed, err := q.client.ZRem(ctx, q.unackedKey(path), txID).Result()
	if err != nil {
		return fmt.Errorf("failed to commit transaction on %s: %w", path, err)
	}
	if removed == 0 {
		return ErrUnknownTransaction
	}
	if err := q.client.HDel(ctx, q.bodiesKey(path), txID).Err(); err != nil {
		return fmt.Errorf("failed to drop committed message body on %s: %w", path, err)
	}
	return nil
}

// HasPendingReads implements Manager.
func (q *RedisQueue) HasPendingReads(ctx context.Context, path string) (bool, error) {
	ready, err := q.client.LLen(ctx, q.readyKey(path)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to measure queue %s: %w", path, err)
	}
	if ready > 0 {
		return true, nil
	}
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	expired, err := q.client.ZCount(ctx, q.unackedKey(path), "-inf", now).Result()
	if err != nil {
		return false, fmt.Errorf("failed to count expired transactions on %s: %w", path, err)
	}
	return expired > 0, nil
}

// HasOutstandingTransactions implements Manager.
func (q *RedisQueue) HasOutstandingTransactions(ctx context.Context, path string) (bool, error) {
	open, err := q.client.ZCard(ctx, q.unackedKey(path)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to count open transactions on %s: %w", path, err)
	}
	return open > 0, nil
}

// HasMessages implements Manager.
func (q *RedisQueue) HasMessages(ctx context.Context, path string) (bool, error) {
	ready, err := q.client.LLen(ctx, q.readyKey(path)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to measure queue %s: %w", path, err)
	}
	return ready > 0, nil
}
