package provider

import "fmt"

// State is the dispatcher's position in its message cycle.
type State int32

const (
	// Idle means no message is in flight.
	Idle State = iota
	// Handling means one decoded message is being processed.
	Handling
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Handling:
		return "handling"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}
