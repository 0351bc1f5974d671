// Package agent connects to the order server over WebSocket and prints the
// tickets it pushes.
package agent

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/xenking/ticket-dispatch/internal/dispatch"
	"github.com/xenking/ticket-dispatch/internal/domain/order"
	"github.com/xenking/ticket-dispatch/internal/ticket"
)

// Dispatcher delivers one ticket.
type Dispatcher interface {
	Dispatch(ctx context.Context, s *order.Snapshot, kind ticket.Kind) (dispatch.Outcome, error)
}

// Config configures the agent connection.
type Config struct {
	URL      string
	APIKey   string
	AgentKey string

	ReconnectDelay time.Duration
	WriteTimeout   time.Duration
	// BusyWait is how long a print waits for a dispatcher held by another
	// caller before giving up.
	BusyWait time.Duration
	// DefaultKind is printed when a print_order message names no kind.
	DefaultKind ticket.Kind

	// DedupCapacity and DedupFPR size the filter remembering printed events.
	DedupCapacity uint
	DedupFPR      float64
}

func (c *Config) setDefaults() {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.BusyWait <= 0 {
		c.BusyWait = time.Minute
	}
	if c.DefaultKind == 0 {
		c.DefaultKind = ticket.Combined
	}
	if c.DedupCapacity == 0 {
		c.DedupCapacity = 100_000
	}
	if c.DedupFPR <= 0 || c.DedupFPR >= 1 {
		c.DedupFPR = 0.001
	}
}

var errUnregistered = errors.New("unregistered by server")

// Agent keeps a registered connection to the order server and dispatches
// every print_order it receives, one at a time.
type Agent struct {
	cfg    Config
	d      Dispatcher
	lg     *zap.Logger
	dialer *websocket.Dialer

	mu   sync.Mutex
	seen *bloom.BloomFilter
}

// New creates an agent.
func New(cfg Config, d Dispatcher, lg *zap.Logger) *Agent {
	cfg.setDefaults()
	return &Agent{
		cfg:    cfg,
		d:      d,
		lg:     lg.With(zap.String("agent_key", cfg.AgentKey)),
		dialer: websocket.DefaultDialer,
		seen:   bloom.NewWithEstimates(cfg.DedupCapacity, cfg.DedupFPR),
	}
}

// Run connects and serves until ctx is done, reconnecting after every lost
// connection.
func (a *Agent) Run(ctx context.Context) error {
	header := http.Header{}
	header.Set("X-Api-Key", a.cfg.APIKey)

	for {
		conn, _, err := a.dialer.DialContext(ctx, a.cfg.URL, header)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			a.lg.Warn("Connection failed", zap.Error(err), zap.Duration("retry_in", a.cfg.ReconnectDelay))
		} else {
			a.lg.Info("Connected", zap.String("url", a.cfg.URL))
			err := a.serve(ctx, conn)
			_ = conn.Close()
			if ctx.Err() != nil {
				return nil
			}
			a.lg.Warn("Disconnected", zap.Error(err), zap.Duration("retry_in", a.cfg.ReconnectDelay))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(a.cfg.ReconnectDelay):
		}
	}
}

func (a *Agent) serve(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	if err := a.write(conn, Message{Type: TypeRegister, AgentKey: a.cfg.AgentKey}); err != nil {
		return errors.Wrap(err, "send register")
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read")
		}
		msg, err := DecodeMessage(data)
		if err != nil {
			a.lg.Warn("Bad message", zap.Error(err))
			continue
		}

		switch msg.Type {
		case TypeRegistered:
			a.lg.Info("Registered with server")
		case TypePing:
			if err := a.write(conn, Message{Type: TypePong, AgentKey: a.cfg.AgentKey}); err != nil {
				return errors.Wrap(err, "send pong")
			}
		case TypePrintOrder:
			for _, reply := range a.print(ctx, msg) {
				if err := a.write(conn, reply); err != nil {
					return errors.Wrap(err, "send reply")
				}
			}
		case TypeUnregister:
			return errUnregistered
		default:
			a.lg.Debug("Unknown message type", zap.String("type", string(msg.Type)))
		}
	}
}

func (a *Agent) write(conn *websocket.Conn, m Message) error {
	data, err := m.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "encode message")
	}
	if err := conn.SetWriteDeadline(time.Now().Add(a.cfg.WriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// print dispatches every snapshot in msg and returns one reply per snapshot,
// or a single failure when the message itself is unusable.
func (a *Agent) print(ctx context.Context, msg Message) []Message {
	if msg.EventID == "" {
		msg.EventID = uuid.NewString()
	}
	reply := func(t MessageType, orderID, outcome, errText string) Message {
		return Message{
			Type:     t,
			AgentKey: a.cfg.AgentKey,
			EventID:  msg.EventID,
			OrderID:  orderID,
			Kind:     msg.Kind,
			Outcome:  outcome,
			Error:    errText,
		}
	}

	kind := a.cfg.DefaultKind
	if msg.Kind != "" {
		k, err := ticket.ParseKind(msg.Kind)
		if err != nil {
			return []Message{reply(TypePrintFailed, "", "", err.Error())}
		}
		kind = k
	}
	msg.Kind = kind.String()

	snapshots, err := order.DecodeSnapshots(msg.Order)
	if err != nil {
		a.lg.Warn("Bad order payload", zap.String("event_id", msg.EventID), zap.Error(err))
		return []Message{reply(TypePrintFailed, "", "", err.Error())}
	}

	replies := make([]Message, 0, len(snapshots))
	for _, s := range snapshots {
		key := msg.EventID + "/" + kind.String() + "/" + s.ID
		if !msg.Reprint && a.printed(key) {
			a.lg.Info("Skipping duplicate print", zap.String("event_id", msg.EventID), zap.String("order_id", s.ID))
			replies = append(replies, reply(TypePrintSkipped, s.ID, "duplicate", ""))
			continue
		}

		out, err := a.dispatch(ctx, s, kind)
		if err != nil {
			replies = append(replies, reply(TypePrintFailed, s.ID, "", err.Error()))
			continue
		}
		switch out.Status {
		case dispatch.StatusSent:
			a.remember(key)
			replies = append(replies, reply(TypePrinted, s.ID, out.Status.String(), ""))
		case dispatch.StatusSentViaFallback:
			a.remember(key)
			replies = append(replies, reply(TypePrintFallback, s.ID, out.Status.String(), out.Reason))
		case dispatch.StatusEmpty:
			replies = append(replies, reply(TypePrintSkipped, s.ID, out.Status.String(), ""))
		default:
			replies = append(replies, reply(TypePrintFailed, s.ID, out.Status.String(), out.Reason))
		}
	}
	return replies
}

// dispatch retries while the dispatcher is busy with a request from another
// source, such as the local HTTP API.
func (a *Agent) dispatch(ctx context.Context, s *order.Snapshot, kind ticket.Kind) (dispatch.Outcome, error) {
	deadline := time.Now().Add(a.cfg.BusyWait)
	for {
		out, err := a.d.Dispatch(ctx, s, kind)
		if !errors.Is(err, dispatch.ErrBusy) || time.Now().After(deadline) {
			return out, err
		}
		select {
		case <-ctx.Done():
			return out, err
		case <-time.After(busyPoll):
		}
	}
}

const busyPoll = 50 * time.Millisecond

func (a *Agent) printed(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seen.TestString(key)
}

func (a *Agent) remember(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen.AddString(key)
}
