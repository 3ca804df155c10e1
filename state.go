package realtime

// ConnectionState is the single source of truth for the client's connection
// status. It is owned by the client, mutated only while holding the client
// mutex, and read by every public operation as a precondition.
type ConnectionState int

const (
	// StateDisconnected is the initial state and the result of a clean
	// Disconnect from any other state.
	StateDisconnected ConnectionState = iota
	// StateConnecting is held while a Connect call is dialing.
	StateConnecting
	// StateConnected means the socket is open and configured.
	StateConnected
	// StateReconnecting is entered on an unexpected close while connected;
	// the reconnection manager owns the client until it either reopens the
	// session or exhausts its attempts.
	StateReconnecting
	// StateError is terminal: reconnection attempts are exhausted. Only
	// Disconnect followed by Connect leaves it.
	StateError
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
