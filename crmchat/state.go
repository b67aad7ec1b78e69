package crmchat

// ConnectionState represents the current state of the room connection.
type ConnectionState int

const (
	// StateIdle means no socket is open and no reconnect is pending.
	StateIdle ConnectionState = iota

	// StateConnecting means a dial is in flight.
	StateConnecting

	// StateOpen means the socket is open and frames can be sent.
	StateOpen

	// StateReconnecting means the socket closed abnormally and a reconnect is scheduled.
	StateReconnecting

	// StateError means Connect failed before dialing (missing token, bad config).
	StateError

	// StateClosed means the client has been explicitly disconnected by the user.
	StateClosed
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StateEvent represents a state change event.
type StateEvent struct {
	RoomID   int64
	ConnID   string // id of the dial that produced the change, empty before the first dial
	OldState ConnectionState
	NewState ConnectionState
	Attempt  int   // reconnect attempt counter after the change
	Error    error // Optional error that caused the state change
}
