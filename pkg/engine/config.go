package engine

import "time"

// Config is the engine's tuning surface. Zero values fall back to the
// documented defaults, so tests can construct it literally and deployments
// can load it from the environment with config.Load.
type Config struct {
	// QueuePathPrefix prefixes every notification-scoped queue path.
	QueuePathPrefix string `env:"ENGINE_QUEUE_PATH_PREFIX" envDefault:"notifications"`

	// BatchSize is how many work items one delivery pass takes from the
	// queue. The very first, non-job invocation uses half of it to keep
	// initial latency down.
	BatchSize int `env:"ENGINE_BATCH_SIZE" envDefault:"1000"`

	// ConcurrentBatches is how many delivery batches may run at once for
	// one notification.
	ConcurrentBatches int `env:"ENGINE_CONCURRENT_BATCHES" envDefault:"1"`

	// FanOutWorkers sizes the worker pool used for device-level fan-out
	// and per-item batch dispatch.
	FanOutWorkers int `env:"ENGINE_FANOUT_WORKERS" envDefault:"10"`

	// SchedulerGracePeriod delays rescheduled jobs slightly so queue
	// writes settle before the next read.
	SchedulerGracePeriod time.Duration `env:"ENGINE_SCHEDULER_GRACE_PERIOD" envDefault:"250ms"`

	// AutoExpireAfter, when positive, expires notifications this long
	// after creation even without an explicit expire time.
	AutoExpireAfter time.Duration `env:"ENGINE_AUTO_EXPIRE_AFTER" envDefault:"0"`

	// NotifierCacheTTL bounds how stale cached notifier configs may get.
	NotifierCacheTTL time.Duration `env:"ENGINE_NOTIFIER_CACHE_TTL" envDefault:"90s"`

	// NotifierCacheSize caps how many application scopes the notifier
	// cache holds.
	NotifierCacheSize int `env:"ENGINE_NOTIFIER_CACHE_SIZE" envDefault:"100"`

	// MaxEmptyBatches is how many consecutive empty dequeues a
	// notification tolerates before the engine gives up and finalizes.
	MaxEmptyBatches int `env:"ENGINE_MAX_EMPTY_BATCHES" envDefault:"10"`

	// QueueTimeout is the visibility timeout for taken work items.
	QueueTimeout time.Duration `env:"ENGINE_QUEUE_TIMEOUT" envDefault:"25s"`
}

func (c Config) withDefaults() Config {
	if c.QueuePathPrefix == "" {
		c.QueuePathPrefix = "notifications"
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1000
	}
	if c.ConcurrentBatches <= 0 {
		c.ConcurrentBatches = 1
	}
	if c.FanOutWorkers <= 0 {
		c.FanOutWorkers = 10
	}
	if c.SchedulerGracePeriod <= 0 {
		c.SchedulerGracePeriod = 250 * time.Millisecond
	}
	if c.NotifierCacheTTL <= 0 {
		c.NotifierCacheTTL = 90 * time.Second
	}
	if c.NotifierCacheSize <= 0 {
		c.NotifierCacheSize = 100
	}
	if c.MaxEmptyBatches <= 0 {
		c.MaxEmptyBatches = 10
	}
	if c.QueueTimeout <= 0 {
		c.QueueTimeout = 25 * time.Second
	}
	return c
}
