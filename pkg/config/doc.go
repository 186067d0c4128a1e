// Package config loads configuration structs from environment variables
// using struct tags. A .env file in the working directory is loaded once,
// if present, before the environment is read.
//
// Example:
//
//	type EngineConfig struct {
//		BatchSize int           `env:"ENGINE_BATCH_SIZE" envDefault:"1000"`
//		CacheTTL  time.Duration `env:"ENGINE_CACHE_TTL" envDefault:"90s"`
//	}
//
//	var cfg EngineConfig
//	if err := config.Load(&cfg); err != nil {
//		// handle error
//	}
package config
