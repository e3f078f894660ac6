package player

import "time"

// Change is delivered to subscribers on every state transition.
type Change struct {
	// State the controller is entering.
	State State

	// Err is non-nil only on Error transitions.
	Err error

	// Position is the last known playback position.
	Position time.Duration

	// Ended marks the Prepared transition of a run that played to its
	// natural end, as opposed to one produced by a stop.
	Ended bool
}
