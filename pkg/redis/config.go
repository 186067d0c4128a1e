package redis

import "time"

// Config is the environment-driven Redis connection configuration.
type Config struct {
	// ConnectionURL is a redis:// URL, e.g. "redis://:password@localhost:6379/0".
	ConnectionURL string `env:"REDIS_URL,required" envDefault:"redis://localhost:6379/0"`

	// QueueKeyPrefix namespaces the delivery queue's keys.
	QueueKeyPrefix string `env:"REDIS_QUEUE_KEY_PREFIX" envDefault:"pushgate:queue"`

	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}
