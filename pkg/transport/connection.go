package transport

import (
	"errors"

	"github.com/powerbridge/pwb-go/pkg/log"
)

// DefaultPort is the gateway TCP port.
const DefaultPort = 7460

// ConnectionState is the state of a gateway connection.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateClosing
)

var stateNames = [...]string{"DISCONNECTED", "CONNECTING", "CONNECTED", "CLOSING"}

func (s ConnectionState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

var (
	ErrNotConnected     = errors.New("not connected")
	ErrConnectionClosed = errors.New("connection closed")
	ErrServerRunning    = errors.New("server already running")
)

// stateEvent is the protocol event of a connection moving from one state
// to another.
func stateEvent(connID, remote string, from, to ConnectionState, reason string) log.Event {
	ev := log.StateEvent(log.LayerTransport, log.StateEntityConnection, from.String(), to.String(), reason)
	ev.ConnectionID, ev.RemoteAddr = connID, remote
	return ev
}
