package session

import (
	"errors"
	"fmt"
)

// Session errors.
var (
	// ErrConnectionLost is delivered to every pending command when the
	// transport goes away.
	ErrConnectionLost = errors.New("connection lost")

	// ErrAuthorizationDenied means the device or the user refused access.
	// The session disconnects and does not retry.
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrCommandTimeout is delivered when Config.CommandTimeout expires.
	ErrCommandTimeout = errors.New("command timed out")

	ErrNotPairing    = errors.New("session is not waiting for pairing")
	ErrInvalidConfig = errors.New("invalid session configuration")
	ErrPingTimeout   = errors.New("keep-alive timed out")
)

// ProtocolError is an error envelope returned by the device for one
// command. The connection stays up.
type ProtocolError struct {
	Code    int
	Message string
}

func (e *ProtocolError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("protocol error: %s", e.Message)
	}
	return fmt.Sprintf("protocol error %d: %s", e.Code, e.Message)
}
