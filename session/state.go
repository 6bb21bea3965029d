package session

// State is the lifecycle stage of the session manager.
type State int

const (
	StateBootstrapping State = iota
	StateProfileLoading
	StateReady
	StateSignedOut
)

func (s State) String() string {
	switch s {
	case StateBootstrapping:
		return "bootstrapping"
	case StateProfileLoading:
		return "profile_loading"
	case StateReady:
		return "ready"
	case StateSignedOut:
		return "signed_out"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Authenticated reports whether the state implies a held session.
func (s State) Authenticated() bool {
	return s == StateProfileLoading || s == StateReady
}

// Trigger is an input to the state machine.
type Trigger int

const (
	// TriggerSessionRestored: bootstrap found a session
	TriggerSessionRestored Trigger = iota
	// TriggerSessionMissing: bootstrap found no session or failed
	TriggerSessionMissing
	// TriggerProfileFetch: a profile fetch was issued
	TriggerProfileFetch
	// TriggerProfileSettled: a fetch ended (any outcome) or a cache entry was adopted
	TriggerProfileSettled
	// TriggerSignedOut: the session ended
	TriggerSignedOut
)

func (t Trigger) String() string {
	switch t {
	case TriggerSessionRestored:
		return "session_restored"
	case TriggerSessionMissing:
		return "session_missing"
	case TriggerProfileFetch:
		return "profile_fetch"
	case TriggerProfileSettled:
		return "profile_settled"
	case TriggerSignedOut:
		return "signed_out"
	default:
		return "unknown"
	}
}

// transitions is the full table; anything absent is illegal.
var transitions = map[State]map[Trigger]State{
	StateBootstrapping: {
		TriggerSessionRestored: StateProfileLoading,
		TriggerSessionMissing:  StateSignedOut,
		TriggerSignedOut:       StateSignedOut,
	},
	StateProfileLoading: {
		TriggerProfileFetch:   StateProfileLoading,
		TriggerProfileSettled: StateReady,
		TriggerSignedOut:      StateSignedOut,
	},
	StateReady: {
		TriggerProfileFetch:   StateProfileLoading,
		TriggerProfileSettled: StateReady,
		TriggerSignedOut:      StateSignedOut,
	},
	StateSignedOut: {
		TriggerProfileFetch:   StateProfileLoading,
		TriggerProfileSettled: StateReady,
		TriggerSignedOut:      StateSignedOut,
	},
}

// Transition returns the state reached from current on trigger. ok is false
// for an illegal pair, in which case current is returned unchanged.
func Transition(current State, trigger Trigger) (next State, ok bool) {
	next, ok = transitions[current][trigger]
	if !ok {
		return current, false
	}
	return next, true
}
