package extraction

import "fmt"

// State is the displayed progress of an asynchronous extraction. The order of
// the constants is the rank used for forward-only transitions.
type State int

const (
	StateIdle State = iota
	StatePending
	StateProcessing
	StateCompleted
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:       "idle",
	StatePending:    "pending",
	StateProcessing: "processing",
	StateCompleted:  "completed",
	StateFailed:     "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText renders the state by name for JSON consumers.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown extraction state %q", text)
}

// Terminal reports whether no further transitions apply to the current job.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Processing reports whether a job is in flight.
func (s State) Processing() bool {
	return s == StatePending || s == StateProcessing
}

// Advance returns the state after requesting a move to next, and whether the
// request changed anything. Moves along idle→pending→processing→completed only
// go forward; failed applies from any non-terminal state.
func (s State) Advance(next State) (State, bool) {
	if s.Terminal() {
		return s, false
	}
	if next == StateFailed {
		return StateFailed, true
	}
	if next > s {
		return next, true
	}
	return s, false
}
