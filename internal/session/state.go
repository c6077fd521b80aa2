package session

import "errors"

// State is the position of the session state machine.
type State int

const (
	// Anonymous: nobody is logged in as far as the client knows.
	Anonymous State = iota
	// Restoring: a blocking startup restore is in flight.
	Restoring
	// Authenticated: a current user is set, either confirmed by the server or
	// taken optimistically from the persisted snapshot.
	Authenticated
)

var ErrInvalidTransition = errors.New("invalid session transition")

var transitions = map[State]map[State]bool{
	Anonymous:     {Anonymous: true, Restoring: true, Authenticated: true},
	Restoring:     {Anonymous: true, Authenticated: true},
	Authenticated: {Anonymous: true, Authenticated: true},
}

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Restoring:
		return "restoring"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// CanTransition reports whether the machine may move from s to next.
func (s State) CanTransition(next State) bool {
	return transitions[s][next]
}
