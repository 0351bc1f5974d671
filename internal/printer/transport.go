// Package printer defines the capability a physical printer must provide and
// a raw TCP implementation for network thermal printers.
package printer

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
)

// State is the connection state of a transport.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the transport connection. Device is set when
// connected.
type Status struct {
	State  State
	Device string
}

// Connected reports whether bytes can be sent.
func (s Status) Connected() bool {
	return s.State == StateConnected
}

// Transport is a printing device. Implementations own their connection
// state, which persists across dispatches until Disconnect or a failed
// connect.
type Transport interface {
	Status() Status
	// Connect establishes a connection within timeout. It may involve a
	// user-mediated device chooser. Calling it while connected is a no-op
	// that returns the current status.
	Connect(ctx context.Context, timeout time.Duration) (Status, error)
	Disconnect(ctx context.Context) error
	SendRaw(ctx context.Context, data []byte) error
}

// ErrNotConnected is returned by SendRaw when there is no open connection.
var ErrNotConnected = errors.New("printer not connected")

// ConnectError indicates the device could not be reached or pairing was
// declined.
type ConnectError struct {
	Device string
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Device, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// SendError indicates the connection was open but transmission failed.
type SendError struct {
	Device string
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to %s: %v", e.Device, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }
