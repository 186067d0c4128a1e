package push

import "errors"

var (
	// ErrNotificationFinished is returned when mutating a notification whose
	// delivery has completed; finished notifications are immutable.
	ErrNotificationFinished = errors.New("push: notification is immutable once finished")

	// ErrMissingPayloads is returned when a notification carries no payloads.
	ErrMissingPayloads = errors.New("push: notification requires at least one payload")

	// ErrEmptyTarget is returned when a notification has no target expression.
	ErrEmptyTarget = errors.New("push: notification requires a target path")
)
