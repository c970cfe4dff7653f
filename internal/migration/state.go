package migration

// State is a step of the migration state machine.
type State string

const (
	StateStart            State = "Start"
	StatePodsVerified     State = "PodsVerified"
	StateBackedUp         State = "BackedUp"
	StateDownloaded       State = "Downloaded"
	StateSpaceChecked     State = "SpaceChecked"
	StateDestinationReady State = "DestinationReady"
	StateUploaded         State = "Uploaded"
	StateVerified         State = "Verified"
	StateRestored         State = "Restored"
	StateDone             State = "Done"
	StateFailed           State = "Failed"
)

// pipeline is the only legal order of non-failure states.
var pipeline = []State{
	StateStart,
	StatePodsVerified,
	StateBackedUp,
	StateDownloaded,
	StateSpaceChecked,
	StateDestinationReady,
	StateUploaded,
	StateVerified,
	StateRestored,
	StateDone,
}

// String returns the state name.
func (s State) String() string {
	return string(s)
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition reports whether the machine may move from s to next.
// Failed is reachable from every non-terminal state.
func (s State) CanTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	for i, st := range pipeline[:len(pipeline)-1] {
		if st == s {
			return pipeline[i+1] == next
		}
	}
	return false
}

// States returns the success path in order.
func States() []State {
	out := make([]State, len(pipeline))
	copy(out, pipeline)
	return out
}
