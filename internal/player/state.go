package player

import "fmt"

// State identifies one phase of the controller lifecycle. States are
// distinct identities; readiness comparisons go through Rank.
type State int

const (
	StateIdle State = iota
	StatePreparing
	StatePrepared
	StateSeeking
	StatePlaying
	StatePaused
	StateRecording
	StateError
	StateDestroyed
)

// Rank returns the readiness ordering of the state. Playing and
// Recording are distinct states sharing one rank.
func (s State) Rank() int {
	switch s {
	case StateDestroyed:
		return -2
	case StateError:
		return -1
	case StateIdle:
		return 0
	case StatePreparing:
		return 1
	case StatePrepared:
		return 2
	case StateSeeking:
		return 3
	case StatePlaying, StateRecording:
		return 4
	case StatePaused:
		return 5
	}
	return 0
}

// AtLeast reports whether s ranks at or above other.
func (s State) AtLeast(other State) bool {
	return s.Rank() >= other.Rank()
}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StatePrepared:
		return "prepared"
	case StateSeeking:
		return "seeking"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateRecording:
		return "recording"
	case StateError:
		return "error"
	case StateDestroyed:
		return "destroyed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}
