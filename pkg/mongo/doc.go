// Package mongo connects the engine's durable entity store to MongoDB.
//
// Configuration is environment-driven through Config, parsed with
// github.com/caarlos0/env. Connect retries transient failures so the
// service survives a database that comes up slightly after it does.
//
// Most callers want NewEntityStore, which dials MongoDB and returns the
// bound entity store in one step:
//
//	var cfg mongo.Config
//	config.MustLoad(&cfg)
//	store, disconnect, err := mongo.NewEntityStore(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer disconnect(context.Background())
//
// Healthcheck produces a probe function for readiness endpoints.
package mongo
