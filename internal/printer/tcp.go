package printer

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// DefaultPort is the raw printing port of network receipt printers.
const DefaultPort = 9100

// TCPConfig describes a network printer.
type TCPConfig struct {
	// Name is the display name reported as the connected device.
	Name string
	// Addr is host:port; a bare host uses DefaultPort.
	Addr         string
	WriteTimeout time.Duration
	// Settle is how long to wait after a write so the printer can drain its
	// buffer before the next job.
	Settle time.Duration
}

// TCP is a Transport writing raw bytes to a printer socket.
type TCP struct {
	cfg  TCPConfig
	lg   *zap.Logger
	dial func(ctx context.Context, network, addr string) (net.Conn, error)

	mu    sync.Mutex
	state State
	conn  net.Conn
}

var _ Transport = (*TCP)(nil)

// NewTCP creates a disconnected TCP transport.
func NewTCP(cfg TCPConfig, lg *zap.Logger) *TCP {
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		cfg.Addr = net.JoinHostPort(cfg.Addr, strconv.Itoa(DefaultPort))
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Addr
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &TCP{
		cfg: cfg,
		lg:  lg.With(zap.String("printer", cfg.Name)),
		dial: func(ctx context.Context, network, addr string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}
}

// Status implements Transport.
func (t *TCP) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked()
}

func (t *TCP) statusLocked() Status {
	st := Status{State: t.state}
	if t.state == StateConnected {
		st.Device = t.cfg.Name
	}
	return st
}

// Connect implements Transport.
func (t *TCP) Connect(ctx context.Context, timeout time.Duration) (Status, error) {
	t.mu.Lock()
	if t.state != StateDisconnected {
		// Already connected, or another caller is dialing.
		st := t.statusLocked()
		t.mu.Unlock()
		return st, nil
	}
	t.state = StateConnecting
	t.mu.Unlock()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	t.lg.Debug("Dialing printer", zap.String("addr", t.cfg.Addr))
	conn, err := t.dial(ctx, "tcp", t.cfg.Addr)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.state = StateDisconnected
		return t.statusLocked(), &ConnectError{Device: t.cfg.Name, Err: err}
	}
	t.conn = conn
	t.state = StateConnected
	t.lg.Info("Printer connected", zap.String("addr", t.cfg.Addr))
	return t.statusLocked(), nil
}

// Disconnect implements Transport. It is safe to call when not connected.
func (t *TCP) Disconnect(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

func (t *TCP) closeLocked() error {
	t.state = StateDisconnected
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	if err != nil {
		return errors.Wrap(err, "close printer connection")
	}
	return nil
}

// SendRaw implements Transport. A failed write drops the connection so the
// next dispatch reconnects.
func (t *TCP) SendRaw(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return &SendError{Device: t.cfg.Name, Err: ErrNotConnected}
	}

	deadline := time.Now().Add(t.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		_ = t.closeLocked()
		return &SendError{Device: t.cfg.Name, Err: errors.Wrap(err, "set deadline")}
	}

	n, err := t.conn.Write(data)
	if err != nil {
		_ = t.closeLocked()
		return &SendError{Device: t.cfg.Name, Err: errors.Wrapf(err, "write (%d of %d bytes)", n, len(data))}
	}
	t.lg.Debug("Job written", zap.Int("bytes", n))

	if t.cfg.Settle > 0 {
		select {
		case <-time.After(t.cfg.Settle):
		case <-ctx.Done():
		}
	}
	return nil
}
