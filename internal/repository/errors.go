package repository

import "errors"

var (
	// ErrNotFound is returned when the requested row does not exist
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a guarded write finds the row no longer
	// in its expected state (lost an optimistic-concurrency race)
	ErrConflict = errors.New("conflicting concurrent modification")

	// ErrReferenced is returned when a delete would orphan rows that still
	// reference the target
	ErrReferenced = errors.New("record is still referenced")

	// ErrLastAdmin is returned when a permission edit or a delete would
	// leave no user holding user_management
	ErrLastAdmin = errors.New("cannot remove the last user_management holder")
)
