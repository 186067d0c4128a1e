// Package redis connects the engine's durable delivery queue to Redis.
//
// Connect dials the server described by the environment-driven Config,
// retrying until the server is ready or the attempts are exhausted.
// NewQueue wraps Connect and returns the queue manager the engine
// consumes:
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//	qm, err := redis.NewQueue(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Healthcheck produces a probe function for readiness endpoints. Sentinel
// errors wrap driver errors with errors.Join, so errors.Is works against
// both.
package redis
