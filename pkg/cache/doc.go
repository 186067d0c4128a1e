// Package cache provides a thread-safe generic cache with LRU eviction
// and per-entry TTL expiry. The engine uses it for notifier lookups,
// where entries must age out quickly so renamed or reconfigured notifiers
// are picked up without a restart.
package cache
