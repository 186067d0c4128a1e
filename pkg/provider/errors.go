package provider

import "errors"

var (
	// ErrUnknownProvider is returned when no adapter is registered for a
	// notifier's provider kind.
	ErrUnknownProvider = errors.New("provider: no adapter registered for provider kind")

	// ErrAdapterNil is returned when registering a nil adapter.
	ErrAdapterNil = errors.New("provider: adapter cannot be nil")

	// ErrInvalidPayload is returned by TranslatePayload when the abstract
	// payload cannot be expressed in the provider's format.
	ErrInvalidPayload = errors.New("provider: payload cannot be translated")
)
