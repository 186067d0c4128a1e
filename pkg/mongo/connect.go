package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/pushgate/pushgate/pkg/entitystore"
)

// Connect dials MongoDB and verifies the connection with a ping, retrying
// up to cfg.RetryAttempts times before giving up.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, error) {
	attempts := max(1, cfg.RetryAttempts)

	opts := options.Client().
		ApplyURI(cfg.ConnectionURL).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetMaxConnIdleTime(cfg.MaxConnIdleTime).
		SetRetryWrites(cfg.RetryWrites).
		SetRetryReads(cfg.RetryReads)

	var lastErr error
	for i := 0; i < attempts; i++ {
		client, err := mongo.Connect(opts)
		if err == nil {
			if err = client.Ping(ctx, nil); err == nil {
				return client, nil
			}
			_ = client.Disconnect(ctx)
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrConnectionFailed, ctx.Err())
		case <-time.After(cfg.RetryInterval):
		}
	}
	return nil, errors.Join(ErrConnectionFailed, lastErr)
}

// NewEntityStore connects to MongoDB and binds the entity store to
// cfg.Database. The returned close function disconnects the underlying
// client.
func NewEntityStore(ctx context.Context, cfg Config) (*entitystore.MongoStore, func(context.Context) error, error) {
	client, err := Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return entitystore.NewMongoStore(client.Database(cfg.Database)), client.Disconnect, nil
}
