package device

import "fmt"

// State is the lifecycle state of a device session.
type State int

const (
	Closed State = iota
	Loaded
	Opened
	Enabled
	Transferring
)

func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Loaded:
		return "Loaded"
	case Opened:
		return "Opened"
	case Enabled:
		return "Enabled"
	case Transferring:
		return "Transferring"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Valid reports whether s is one of the defined states.
func (s State) Valid() bool { return s >= Closed && s <= Transferring }

// edges lists every transition allowed outside of a forced teardown.
var edges = map[State][]State{
	Closed:       {Loaded},
	Loaded:       {Opened, Closed},
	Opened:       {Enabled, Loaded},
	Enabled:      {Transferring, Opened},
	Transferring: {Opened},
}

// CanTransition reports whether from -> to is an edge of the session graph.
func CanTransition(from, to State) bool {
	for _, s := range edges[from] {
		if s == to {
			return true
		}
	}
	return false
}
