package player

import "testing"

func TestStateRankOrdering(t *testing.T) {
	ordered := []State{
		StateDestroyed,
		StateError,
		StateIdle,
		StatePreparing,
		StatePrepared,
		StateSeeking,
		StatePlaying,
		StatePaused,
	}

	for i := 1; i < len(ordered); i++ {
		prev, cur := ordered[i-1], ordered[i]
		if prev.Rank() >= cur.Rank() {
			t.Errorf("%v rank %d not below %v rank %d", prev, prev.Rank(), cur, cur.Rank())
		}
	}
}

func TestPlayingRecordingShareRank(t *testing.T) {
	if StatePlaying.Rank() != StateRecording.Rank() {
		t.Errorf("playing rank %d != recording rank %d",
			StatePlaying.Rank(), StateRecording.Rank())
	}
	if StatePlaying == StateRecording {
		t.Error("playing and recording must stay distinct states")
	}
}

func TestStateRankValues(t *testing.T) {
	tests := []struct {
		state State
		rank  int
	}{
		{StateDestroyed, -2},
		{StateError, -1},
		{StateIdle, 0},
		{StatePreparing, 1},
		{StatePrepared, 2},
		{StateSeeking, 3},
		{StatePlaying, 4},
		{StateRecording, 4},
		{StatePaused, 5},
	}

	for _, tt := range tests {
		if got := tt.state.Rank(); got != tt.rank {
			t.Errorf("%v.Rank() = %d, expected %d", tt.state, got, tt.rank)
		}
	}
}

func TestStateAtLeast(t *testing.T) {
	tests := []struct {
		s, other State
		want     bool
	}{
		{StatePrepared, StatePrepared, true},
		{StatePlaying, StatePrepared, true},
		{StatePaused, StatePlaying, true},
		{StatePreparing, StatePrepared, false},
		{StateError, StateIdle, false},
		{StateRecording, StatePlaying, true},
		{StatePlaying, StateRecording, true},
		{StateDestroyed, StateError, false},
	}

	for _, tt := range tests {
		if got := tt.s.AtLeast(tt.other); got != tt.want {
			t.Errorf("%v.AtLeast(%v) = %v, expected %v", tt.s, tt.other, got, tt.want)
		}
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StatePreparing, "preparing"},
		{StatePrepared, "prepared"},
		{StateSeeking, "seeking"},
		{StatePlaying, "playing"},
		{StatePaused, "paused"},
		{StateRecording, "recording"},
		{StateError, "error"},
		{StateDestroyed, "destroyed"},
		{State(42), "state(42)"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, expected %q", got, tt.want)
		}
	}
}
