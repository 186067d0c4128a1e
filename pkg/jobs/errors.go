package jobs

import "errors"

var (
	// ErrUnknownJobType is returned when scheduling or dispatching a job
	// type with no registered handler.
	ErrUnknownJobType = errors.New("jobs: unknown job type")

	// ErrHandlerNil is returned when registering a nil handler.
	ErrHandlerNil = errors.New("jobs: handler cannot be nil")

	// ErrAlreadyStarted is returned when starting a scheduler twice.
	ErrAlreadyStarted = errors.New("jobs: scheduler already started")
)
