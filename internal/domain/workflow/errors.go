package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when the requested transition is not
	// legal from the current state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not a recognized lifecycle state
	ErrInvalidState = errors.New("invalid state")

	// ErrGuardFailed is returned when every candidate transition's guard rejects
	ErrGuardFailed = errors.New("guard condition failed")
)
