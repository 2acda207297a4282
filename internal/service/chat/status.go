package chat

import "fmt"

// Status is the display-only connection state of a session.
type Status int

const (
	// StatusConnecting - a dial is in flight.
	StatusConnecting Status = iota
	// StatusConnected - the socket is open and sends are accepted.
	StatusConnected
	// StatusDisconnected - the socket closed; a reconnect is scheduled.
	StatusDisconnected
	// StatusError - the last dial or read failed abnormally.
	StatusError
)

// String returns the label shown to the user.
func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "Connecting..."
	case StatusConnected:
		return "Connected"
	case StatusDisconnected:
		return "Disconnected"
	case StatusError:
		return "Error"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// IsOpen returns true if sends are accepted in this state.
func (s Status) IsOpen() bool {
	return s == StatusConnected
}
