package engine

import "errors"

var (
	// ErrStoreNil is returned when constructing an engine without a store.
	ErrStoreNil = errors.New("engine: entity store cannot be nil")

	// ErrQueueNil is returned when constructing an engine without a queue.
	ErrQueueNil = errors.New("engine: queue manager cannot be nil")

	// ErrSchedulerNil is returned when constructing an engine without a
	// job scheduler.
	ErrSchedulerNil = errors.New("engine: job scheduler cannot be nil")

	// ErrRegistryNil is returned when constructing an engine without a
	// provider registry.
	ErrRegistryNil = errors.New("engine: provider registry cannot be nil")

	// ErrNotificationNil is returned when an operation receives a nil
	// notification.
	ErrNotificationNil = errors.New("engine: notification cannot be nil")

	// ErrUnknownNotifier is returned when a payload key matches no
	// notifier name or id, even after a cache reload.
	ErrUnknownNotifier = errors.New("engine: no notifier found with that name or id")

	// ErrNotifierNil is returned when testing a nil notifier.
	ErrNotifierNil = errors.New("engine: notifier cannot be nil")
)
