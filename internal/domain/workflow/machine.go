package workflow

import "context"

// StateMachine tracks a current lifecycle state and validates transitions
type StateMachine interface {
	// State returns the current state
	State() State

	// CanFire returns true if the trigger has at least one configured
	// transition from the current state (guards are not evaluated)
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, transitioning to the new state if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// Peek returns the state the machine would move to if the trigger fired,
	// without mutating the machine
	Peek(ctx context.Context, trigger Trigger) (State, error)

	// PermittedTriggers returns all triggers configured for the current state
	PermittedTriggers() []Trigger
}
