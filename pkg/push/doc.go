// Package push defines the domain model shared by the fan-out engine and
// its collaborators: notifications, notifiers, delivery receipts, and the
// target expression that selects recipients.
//
// A Notification carries a map of notifier-key to payload plus lifecycle
// timestamps. Its State is derived from those timestamps rather than stored,
// so concurrent writers cannot disagree about it. Once Finished is set the
// notification is immutable except for cancellation bookkeeping, which
// becomes a no-op.
//
// A Receipt records one device's delivery outcome for one notification.
// Receipt identity is deterministic per (notification, device) pair, which
// makes receipt writes idempotent under queue redelivery.
package push
