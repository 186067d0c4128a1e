package mongo

import "time"

// Config is the environment-driven MongoDB connection configuration.
type Config struct {
	// ConnectionURL is the MongoDB connection string.
	ConnectionURL string `env:"MONGODB_URL,required"`

	// Database names the database holding the entity collections.
	Database string `env:"MONGODB_DATABASE" envDefault:"pushgate"`

	ConnectTimeout  time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`
	MaxPoolSize     uint64        `env:"MONGODB_MAX_POOL_SIZE" envDefault:"100"`
	MinPoolSize     uint64        `env:"MONGODB_MIN_POOL_SIZE" envDefault:"1"`
	MaxConnIdleTime time.Duration `env:"MONGODB_MAX_CONN_IDLE_TIME" envDefault:"300s"`
	RetryWrites     bool          `env:"MONGODB_RETRY_WRITES" envDefault:"true"`
	RetryReads      bool          `env:"MONGODB_RETRY_READS" envDefault:"true"`

	// RetryAttempts and RetryInterval control the initial connection
	// retry loop, not per-operation retries.
	RetryAttempts int           `env:"MONGODB_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval time.Duration `env:"MONGODB_RETRY_INTERVAL" envDefault:"5s"`
}
