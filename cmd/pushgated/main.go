// Command pushgated runs the push notification delivery engine as a
// standalone service. It connects the durable collaborators (MongoDB
// entity store, Redis delivery queue), registers the provider adapters,
// and drives scheduled work until interrupted.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pushgate/pushgate/pkg/config"
	"github.com/pushgate/pushgate/pkg/engine"
	"github.com/pushgate/pushgate/pkg/entitystore"
	"github.com/pushgate/pushgate/pkg/jobs"
	"github.com/pushgate/pushgate/pkg/logger"
	"github.com/pushgate/pushgate/pkg/mongo"
	"github.com/pushgate/pushgate/pkg/provider"
	"github.com/pushgate/pushgate/pkg/queue"
	"github.com/pushgate/pushgate/pkg/redis"
)

func main() {
	log := logger.New(logger.WithAttr(logger.Component("pushgated")))

	var (
		engineCfg engine.Config
		mongoCfg  mongo.Config
		redisCfg  redis.Config
	)
	config.MustLoad(&engineCfg)
	config.MustLoad(&mongoCfg)
	config.MustLoad(&redisCfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mongoClient, err := mongo.Connect(ctx, mongoCfg)
	if err != nil {
		log.Error("failed to connect to mongo", logger.Error(err))
		os.Exit(1)
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	store := entitystore.NewMongoStore(mongoClient.Database(mongoCfg.Database))

	redisClient, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		log.Error("failed to connect to redis", logger.Error(err))
		os.Exit(1)
	}
	defer func() { _ = redisClient.Close() }()

	qm, err := queue.NewRedisQueue(redisClient, queue.WithKeyPrefix(redisCfg.QueueKeyPrefix))
	if err != nil {
		log.Error("failed to create delivery queue", logger.Error(err))
		os.Exit(1)
	}

	scheduler := jobs.NewMemoryScheduler(jobs.WithLogger(log))
	registry := provider.NewRegistry(
		provider.WithAdapter("noop", provider.NewNoopAdapter()),
	)

	eng, err := engine.New(engineCfg, store, qm, scheduler, registry, engine.WithLogger(log))
	if err != nil {
		log.Error("failed to create engine", logger.Error(err))
		os.Exit(1)
	}
	if err := eng.RegisterJobs(scheduler); err != nil {
		log.Error("failed to register job handlers", logger.Error(err))
		os.Exit(1)
	}

	for name, check := range map[string]func(context.Context) error{
		"mongo": mongo.Healthcheck(mongoClient),
		"redis": redis.Healthcheck(redisClient),
	} {
		if err := check(ctx); err != nil {
			log.Warn("dependency unhealthy at startup", logger.Component(name), logger.Error(err))
		}
	}

	if err := scheduler.Start(ctx); err != nil {
		log.Error("failed to start scheduler", logger.Error(err))
		os.Exit(1)
	}

	log.Info("pushgated started")
	<-ctx.Done()

	log.Info("shutting down")
	scheduler.Stop()
	_ = eng.Close()
}
