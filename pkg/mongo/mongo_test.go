package mongo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushgate/pushgate/pkg/config"
	"github.com/pushgate/pushgate/pkg/mongo"
)

func TestConfig_Defaults(t *testing.T) {
	t.Setenv("MONGODB_URL", "mongodb://localhost:27017")

	var cfg mongo.Config
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "mongodb://localhost:27017", cfg.ConnectionURL)
	assert.Equal(t, "pushgate", cfg.Database)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.True(t, cfg.RetryWrites)
}

func TestConnect_Unreachable(t *testing.T) {
	t.Parallel()

	cfg := mongo.Config{
		ConnectionURL:  "mongodb://127.0.0.1:1/?directConnection=true",
		ConnectTimeout: 200 * time.Millisecond,
		RetryAttempts:  1,
		RetryInterval:  time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, cfg)
	require.Error(t, err)
	require.ErrorIs(t, err, mongo.ErrConnectionFailed)
	assert.Nil(t, client)
}

func TestNewEntityStore_ConnectFailure(t *testing.T) {
	t.Parallel()

	cfg := mongo.Config{
		ConnectionURL:  "mongodb://127.0.0.1:1/?directConnection=true",
		Database:       "pushgate",
		ConnectTimeout: 200 * time.Millisecond,
		RetryAttempts:  1,
		RetryInterval:  time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, disconnect, err := mongo.NewEntityStore(ctx, cfg)
	require.ErrorIs(t, err, mongo.ErrConnectionFailed)
	assert.Nil(t, store)
	assert.Nil(t, disconnect)
}
