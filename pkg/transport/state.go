package transport

// Kind enumerates connection states.
type Kind int

const (
	Disconnected Kind = iota
	Connecting
	Connected
	Reconnecting
	Disconnecting
	Failed
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Disconnecting:
		return "disconnecting"
	case Failed:
		return "error"
	default:
		return "unknown"
	}
}

// State is a connection state. Reason is set only for Failed.
type State struct {
	Kind   Kind
	Reason string
}

// ErrorState returns a Failed state carrying reason.
func ErrorState(reason string) State {
	return State{Kind: Failed, Reason: reason}
}

// Open reports whether frames can be sent.
func (s State) Open() bool { return s.Kind == Connected }

func (s State) String() string {
	if s.Kind == Failed && s.Reason != "" {
		return "error(" + s.Reason + ")"
	}
	return s.Kind.String()
}
