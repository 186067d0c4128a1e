package entitystore

import "errors"

var (
	// ErrNotFound is returned when the referenced entity does not exist.
	ErrNotFound = errors.New("entitystore: entity not found")

	// ErrEntityNil is returned when a nil entity is passed to Create or Update.
	ErrEntityNil = errors.New("entitystore: entity cannot be nil")

	// ErrAlreadyExists is returned when creating an entity whose id is taken.
	ErrAlreadyExists = errors.New("entitystore: entity already exists")

	// ErrInvalidCursor is returned when a page cursor cannot be decoded.
	ErrInvalidCursor = errors.New("entitystore: invalid page cursor")
)
