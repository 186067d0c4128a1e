package queue

import "errors"

var (
	// ErrPayloadNil is returned when posting a nil payload.
	ErrPayloadNil = errors.New("queue: payload cannot be nil")

	// ErrPayloadMarshal is returned when the payload cannot be marshaled.
	ErrPayloadMarshal = errors.New("queue: failed to marshal payload")

	// ErrUnknownTransaction is returned when committing a transaction that
	// does not exist or already timed out and was redelivered.
	ErrUnknownTransaction = errors.New("queue: unknown or expired transaction")

	// ErrClientNil is returned when constructing a queue without a client.
	ErrClientNil = errors.New("queue: client cannot be nil")
)
