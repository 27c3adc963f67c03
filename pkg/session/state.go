package session

// State is the session state.
type State uint8

const (
	// StateInitial - no connection.
	StateInitial State = iota

	// StateConnecting - dialing and TLS handshake.
	StateConnecting

	// StateRegistering - register sent, waiting for the device (and the user).
	StateRegistering

	// StateRegistered - commands flow.
	StateRegistered

	// StateDisconnecting - teardown in progress.
	StateDisconnecting
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInitial:
		return "INITIAL"
	case StateConnecting:
		return "CONNECTING"
	case StateRegistering:
		return "REGISTERING"
	case StateRegistered:
		return "REGISTERED"
	case StateDisconnecting:
		return "DISCONNECTING"
	default:
		return "UNKNOWN"
	}
}
