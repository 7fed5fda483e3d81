package transport

// State describes the relay link.
type State int

const (
	// Disconnected means no usable connection exists.
	Disconnected State = iota

	// Connecting means a dial attempt is in flight.
	Connecting

	// Connected means events can currently reach the wire.
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}
