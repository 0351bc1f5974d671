// Package dispatch delivers formatted tickets to a printer, falling back to a
// local surface when the printer cannot be reached.
package dispatch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/ticket-dispatch/internal/domain/order"
	"github.com/xenking/ticket-dispatch/internal/escpos"
	"github.com/xenking/ticket-dispatch/internal/fallback"
	"github.com/xenking/ticket-dispatch/internal/printer"
	"github.com/xenking/ticket-dispatch/internal/ticket"
)

var (
	// ErrBusy is returned when a request arrives while another dispatch or a
	// manual connection change is in flight.
	ErrBusy = errors.New("dispatcher busy")
	// ErrNoSnapshot is returned for a nil snapshot.
	ErrNoSnapshot = errors.New("no snapshot")
	// ErrConnectTimeout is the cause recorded when the printer did not
	// answer within Config.ConnectTimeout.
	ErrConnectTimeout = errors.New("printer connect timed out")
)

const (
	DefaultConnectTimeout  = 5 * time.Second
	DefaultFallbackTimeout = 30 * time.Second
)

// Config tunes a Dispatcher. The zero value is usable.
type Config struct {
	Columns  int
	Currency string
	// Location is the zone ticket timestamps are printed in.
	Location *time.Location

	ConnectTimeout time.Duration
	// FallbackTimeout bounds how long the fallback surface may hold the
	// dispatcher before its resources are released unconditionally.
	FallbackTimeout time.Duration
	// ManualConnect disables connecting inside Dispatch. Without a
	// connection the ticket goes straight to the fallback surface.
	ManualConnect bool
	// SendRetries is how many times a failed send is repeated before falling
	// back.
	SendRetries int

	Codec escpos.Codec
}

func (c *Config) setDefaults() {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.FallbackTimeout <= 0 {
		c.FallbackTimeout = DefaultFallbackTimeout
	}
	if c.SendRetries < 0 {
		c.SendRetries = 0
	}
}

// Options holds optional dependencies.
type Options struct {
	Logger         *zap.Logger
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.MeterProvider == nil {
		o.MeterProvider = metricnoop.NewMeterProvider()
	}
	if o.TracerProvider == nil {
		o.TracerProvider = tracenoop.NewTracerProvider()
	}
}

const instrumentation = "github.com/xenking/ticket-dispatch/internal/dispatch"

// Dispatcher owns the print pipeline for one transport. It runs at most one
// request at a time; concurrent callers get ErrBusy.
type Dispatcher struct {
	transport printer.Transport
	surface   fallback.Surface
	formatter ticket.Formatter
	cfg       Config

	lg      *zap.Logger
	tracer  trace.Tracer
	metrics *metrics
	newID   func() string

	inflight atomic.Bool
	state    atomic.Int32
}

// New creates a Dispatcher. surface may be nil, in which case an unreachable
// printer fails the dispatch.
func New(transport printer.Transport, surface fallback.Surface, cfg Config, opts Options) (*Dispatcher, error) {
	cfg.setDefaults()
	opts.setDefaults()

	m, err := newMetrics(opts.MeterProvider.Meter(instrumentation))
	if err != nil {
		return nil, errors.Wrap(err, "create metrics")
	}
	return &Dispatcher{
		transport: transport,
		surface:   surface,
		formatter: ticket.Formatter{
			Columns:  cfg.Columns,
			Currency: cfg.Currency,
			Location: cfg.Location,
		},
		cfg:     cfg,
		lg:      opts.Logger,
		tracer:  opts.TracerProvider.Tracer(instrumentation),
		metrics: m,
		newID:   uuid.NewString,
	}, nil
}

// State returns the current phase.
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// PrinterStatus returns the transport connection state.
func (d *Dispatcher) PrinterStatus() printer.Status {
	return d.transport.Status()
}

// HasFallback reports whether a fallback surface is configured.
func (d *Dispatcher) HasFallback() bool {
	return d.surface != nil
}

// Dispatch formats s as kind and delivers it. Transport and fallback problems
// are reported in the Outcome; the error is reserved for invalid input and
// ErrBusy.
func (d *Dispatcher) Dispatch(ctx context.Context, s *order.Snapshot, kind ticket.Kind) (Outcome, error) {
	if s == nil {
		return Outcome{}, ErrNoSnapshot
	}
	if err := s.Validate(); err != nil {
		return Outcome{}, errors.Wrap(err, "validate snapshot")
	}
	tk, err := d.formatter.Format(s, kind)
	switch {
	case errors.Is(err, ticket.ErrEmpty):
		out := Outcome{Status: StatusEmpty, Kind: kind, OrderRef: ticket.OrderRef(s.ID), Reason: "nothing to print"}
		d.metrics.record(ctx, out, 0)
		d.lg.Debug("Nothing to print",
			zap.String("order_ref", out.OrderRef),
			zap.Stringer("kind", kind),
		)
		return out, nil
	case err != nil:
		return Outcome{}, errors.Wrap(err, "format ticket")
	}

	if !d.claim() {
		return Outcome{}, ErrBusy
	}
	defer d.release()

	start := time.Now()
	job := fallback.Job{ID: d.newID(), Ticket: tk}
	lg := d.lg.With(
		zap.String("job_id", job.ID),
		zap.String("order_ref", tk.OrderRef),
		zap.Stringer("kind", kind),
	)
	ctx, span := d.tracer.Start(ctx, "dispatch", trace.WithAttributes(
		attribute.String("ticket.kind", kind.String()),
		attribute.String("ticket.order_ref", tk.OrderRef),
		attribute.String("ticket.job_id", job.ID),
	))
	defer span.End()

	out := d.run(ctx, lg, job)
	out.Kind = kind
	out.JobID = job.ID
	out.OrderRef = tk.OrderRef

	took := time.Since(start)
	d.metrics.record(ctx, out, took)
	span.SetAttributes(attribute.String("ticket.outcome", out.Status.String()))
	if out.Status == StatusFailed {
		span.SetStatus(codes.Error, out.Reason)
		lg.Error("Dispatch failed", zap.String("reason", out.Reason), zap.Error(out.Err), zap.Duration("took", took))
	} else {
		lg.Info("Dispatch finished", zap.Stringer("outcome", out.Status), zap.String("device", out.Device), zap.Duration("took", took))
	}
	return out, nil
}

func (d *Dispatcher) run(ctx context.Context, lg *zap.Logger, job fallback.Job) Outcome {
	st := d.transport.Status()
	if !st.Connected() {
		if d.cfg.ManualConnect {
			return d.fallback(ctx, lg, job, printer.ErrNotConnected)
		}
		d.setState(ctx, lg, StateConnecting)
		var err error
		if st, err = d.connect(ctx); err != nil {
			return d.fallback(ctx, lg, job, err)
		}
	}

	d.setState(ctx, lg, StateSending)
	data, err := d.cfg.Codec.MarshalTicket(job.Ticket)
	if err != nil {
		return d.fallback(ctx, lg, job, errors.Wrap(err, "encode ticket"))
	}
	for attempt := 0; ; attempt++ {
		if err = d.transport.SendRaw(ctx, data); err == nil {
			return Outcome{Status: StatusSent, Device: st.Device}
		}
		if attempt >= d.cfg.SendRetries || ctx.Err() != nil {
			break
		}
		lg.Warn("Send failed, retrying", zap.Int("attempt", attempt+1), zap.Error(err))
		if !d.transport.Status().Connected() {
			if d.cfg.ManualConnect {
				break
			}
			var cerr error
			if st, cerr = d.connect(ctx); cerr != nil {
				lg.Warn("Reconnect failed", zap.Error(cerr))
				break
			}
		}
	}
	return d.fallback(ctx, lg, job, err)
}

// connect bounds transport.Connect by ConnectTimeout even when the transport
// ignores its context. A late success is left for the next dispatch to reuse.
func (d *Dispatcher) connect(ctx context.Context) (printer.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.ConnectTimeout)
	defer cancel()

	type result struct {
		st  printer.Status
		err error
	}
	ch := make(chan result, 1)
	go func() {
		st, err := d.transport.Connect(ctx, d.cfg.ConnectTimeout)
		ch <- result{st: st, err: err}
	}()

	select {
	case r := <-ch:
		if r.err == nil && !r.st.Connected() {
			r.err = printer.ErrNotConnected
		}
		return r.st, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return printer.Status{}, errors.Wrap(ErrConnectTimeout, d.cfg.ConnectTimeout.String())
		}
		return printer.Status{}, ctx.Err()
	}
}

// fallback hands job to the surface and waits for its completion signal, the
// safety timeout or cancellation, whichever comes first. The surface is
// released exactly once. A surface reporting failure fails the dispatch.
func (d *Dispatcher) fallback(ctx context.Context, lg *zap.Logger, job fallback.Job, cause error) Outcome {
	d.setState(ctx, lg, StateFallbackPending)
	if d.surface == nil {
		return Outcome{
			Status: StatusFailed,
			Reason: "printer unavailable and no fallback configured",
			Err:    cause,
		}
	}
	lg.Warn("Printer unavailable, using fallback", zap.Error(cause))

	c := newCompletion(func() { d.surface.Release(job) })
	signal := func(err error) {
		if err != nil {
			c.finish("failed", err)
			return
		}
		c.finish("done", nil)
	}
	if err := d.surface.Render(ctx, job, signal); err != nil {
		c.finish("render_error", err)
		return Outcome{
			Status: StatusFailed,
			Reason: "fallback unavailable: " + err.Error(),
			Err:    errors.Wrap(err, "render fallback"),
		}
	}

	timer := time.NewTimer(d.cfg.FallbackTimeout)
	defer timer.Stop()
	select {
	case <-c.Done():
	case <-timer.C:
		if c.finish("timeout", nil) {
			lg.Warn("Fallback did not report completion, released", zap.Duration("timeout", d.cfg.FallbackTimeout))
		}
	case <-ctx.Done():
		c.finish("canceled", nil)
	}
	lg.Debug("Fallback released", zap.String("trigger", c.Trigger()))

	if err := c.Err(); err != nil {
		return Outcome{
			Status: StatusFailed,
			Reason: "fallback failed: " + err.Error(),
			Err:    errors.Wrap(err, "render fallback"),
		}
	}

	return Outcome{
		Status: StatusSentViaFallback,
		Reason: "printed via fallback: " + cause.Error(),
		Err:    cause,
	}
}

// Connect opens the printer connection outside of a dispatch.
func (d *Dispatcher) Connect(ctx context.Context) (printer.Status, error) {
	if !d.claim() {
		return printer.Status{}, ErrBusy
	}
	defer d.release()

	d.setState(ctx, d.lg, StateConnecting)
	st, err := d.connect(ctx)
	if err != nil {
		return st, errors.Wrap(err, "connect printer")
	}
	d.lg.Info("Printer connected", zap.String("device", st.Device))
	return st, nil
}

// Disconnect closes the printer connection outside of a dispatch.
func (d *Dispatcher) Disconnect(ctx context.Context) error {
	if !d.claim() {
		return ErrBusy
	}
	defer d.release()

	if err := d.transport.Disconnect(ctx); err != nil {
		return errors.Wrap(err, "disconnect printer")
	}
	d.lg.Info("Printer disconnected")
	return nil
}

func (d *Dispatcher) claim() bool {
	return d.inflight.CompareAndSwap(false, true)
}

func (d *Dispatcher) release() {
	d.state.Store(int32(StateIdle))
	d.inflight.Store(false)
}

func (d *Dispatcher) setState(ctx context.Context, lg *zap.Logger, s State) {
	prev := State(d.state.Swap(int32(s)))
	trace.SpanFromContext(ctx).AddEvent("state", trace.WithAttributes(attribute.String("state", s.String())))
	lg.Debug("State changed", zap.Stringer("from", prev), zap.Stringer("to", s))
}
