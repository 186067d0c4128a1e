package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pushgate/pushgate/pkg/queue"
)

// Connect dials the Redis server described by cfg and verifies it with a
// ping, retrying up to cfg.RetryAttempts times within cfg.ConnectTimeout.
func Connect(ctx context.Context, cfg Config) (*redis.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	opt, err := redis.ParseURL(cfg.ConnectionURL)
	if err != nil {
		return nil, errors.Join(ErrInvalidConnectionURL, err)
	}

	attempts := max(1, cfg.RetryAttempts)
	for i := 0; i < attempts; i++ {
		client := redis.NewClient(opt)
		if err := client.Ping(ctx).Err(); err == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrNotReady, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	return nil, ErrNotReady
}

// NewQueue connects to Redis and returns the durable delivery queue the
// engine consumes, namespaced under cfg.QueueKeyPrefix.
func NewQueue(ctx context.Context, cfg Config) (*queue.RedisQueue, error) {
	client, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return queue.NewRedisQueue(client, queue.WithKeyPrefix(cfg.QueueKeyPrefix))
}
