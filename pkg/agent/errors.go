package agent

import "errors"

// Sentinel errors returned by agent implementations.
var (
	// ErrInvalidTransition indicates a state change not allowed by the
	// agent's transition table.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrNotActive indicates an operation on a stopped agent.
	ErrNotActive = errors.New("agent is not active")

	// ErrAlreadyStarted indicates a second Start without an intervening Stop.
	ErrAlreadyStarted = errors.New("agent already started")
)
