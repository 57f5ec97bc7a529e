package socket

// ConnectionState is the lifecycle state of a Client.
type ConnectionState int

const (
	// StateDisconnected means no transport is open.
	StateDisconnected ConnectionState = iota
	// StateConnecting means a transport is being opened or the handshake is pending.
	StateConnecting
	// StateConnected means the handshake was observed but Ready has not completed.
	StateConnected
	// StateReady means the connection is fully usable.
	StateReady
	// StateReconnecting means the connection dropped after Ready and the client
	// is reconnecting on its own.
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReady:
		return "ready"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// live reports whether requests may be sent in this state.
func (s ConnectionState) live() bool {
	return s == StateConnected || s == StateReady
}

// validTransitions lists the states each state may move to.
var validTransitions = map[ConnectionState][]ConnectionState{
	StateDisconnected: {StateConnecting},
	StateConnecting:   {StateConnected, StateDisconnected, StateReconnecting},
	StateConnected:    {StateReady, StateDisconnected, StateReconnecting},
	StateReady:        {StateReconnecting, StateDisconnected},
	StateReconnecting: {StateConnecting, StateDisconnected},
}

func canTransition(from, to ConnectionState) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
