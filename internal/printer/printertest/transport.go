// Package printertest provides a scriptable printer.Transport for tests.
package printertest

import (
	"context"
	"sync"
	"time"

	"github.com/xenking/ticket-dispatch/internal/printer"
)

// Transport records every call and returns scripted results.
type Transport struct {
	// Device is reported once connected. Defaults to "fake-printer".
	Device string
	// ConnectErr is returned by Connect.
	ConnectErr error
	// ConnectDelay blocks Connect, ignoring the context, to simulate a
	// device that never answers.
	ConnectDelay time.Duration
	// SendErrs are returned by successive SendRaw calls; nil entries and
	// calls past the end succeed.
	SendErrs []error
	// DisconnectOnSendErr mimics transports that drop the link after a
	// failed write.
	DisconnectOnSendErr bool
	// OnSend runs inside SendRaw before the result is returned.
	OnSend func(data []byte)

	mu          sync.Mutex
	state       printer.State
	connects    int
	disconnects int
	sendCalls   int
	sent        [][]byte
}

var _ printer.Transport = (*Transport)(nil)

// Connected returns a transport that is already connected.
func Connected(device string) *Transport {
	return &Transport{Device: device, state: printer.StateConnected}
}

func (t *Transport) device() string {
	if t.Device == "" {
		return "fake-printer"
	}
	return t.Device
}

// Status implements printer.Transport.
func (t *Transport) Status() printer.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked()
}

func (t *Transport) statusLocked() printer.Status {
	st := printer.Status{State: t.state}
	if t.state == printer.StateConnected {
		st.Device = t.device()
	}
	return st
}

// Connect implements printer.Transport.
func (t *Transport) Connect(_ context.Context, _ time.Duration) (printer.Status, error) {
	t.mu.Lock()
	t.connects++
	if t.state == printer.StateConnected {
		st := t.statusLocked()
		t.mu.Unlock()
		return st, nil
	}
	t.state = printer.StateConnecting
	delay, connErr := t.ConnectDelay, t.ConnectErr
	t.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if connErr != nil {
		t.state = printer.StateDisconnected
		return t.statusLocked(), &printer.ConnectError{Device: t.device(), Err: connErr}
	}
	t.state = printer.StateConnected
	return t.statusLocked(), nil
}

// Disconnect implements printer.Transport.
func (t *Transport) Disconnect(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnects++
	t.state = printer.StateDisconnected
	return nil
}

// SendRaw implements printer.Transport.
func (t *Transport) SendRaw(_ context.Context, data []byte) error {
	t.mu.Lock()
	idx := t.sendCalls
	t.sendCalls++
	if t.state != printer.StateConnected {
		t.mu.Unlock()
		return &printer.SendError{Device: t.device(), Err: printer.ErrNotConnected}
	}
	var err error
	if idx < len(t.SendErrs) {
		err = t.SendErrs[idx]
	}
	hook := t.OnSend
	t.mu.Unlock()

	if hook != nil {
		hook(data)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		if t.DisconnectOnSendErr {
			t.state = printer.StateDisconnected
		}
		return &printer.SendError{Device: t.device(), Err: err}
	}
	t.sent = append(t.sent, append([]byte(nil), data...))
	return nil
}

// ConnectCalls returns how many times Connect was called.
func (t *Transport) ConnectCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connects
}

// DisconnectCalls returns how many times Disconnect was called.
func (t *Transport) DisconnectCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.disconnects
}

// SendCalls returns how many times SendRaw was called.
func (t *Transport) SendCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sendCalls
}

// Sent returns copies of the successfully sent payloads in order.
func (t *Transport) Sent() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.sent))
	copy(out, t.sent)
	return out
}
