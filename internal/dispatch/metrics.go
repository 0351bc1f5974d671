package dispatch

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	outcomes metric.Int64Counter
	duration metric.Float64Histogram
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	outcomes, err := meter.Int64Counter("ticket.dispatch.outcomes",
		metric.WithDescription("Terminal dispatch outcomes"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "outcomes counter")
	}
	duration, err := meter.Float64Histogram("ticket.dispatch.duration",
		metric.WithDescription("Dispatch duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "duration histogram")
	}
	return &metrics{outcomes: outcomes, duration: duration}, nil
}

func (m *metrics) record(ctx context.Context, out Outcome, took time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("outcome", out.Status.String()),
		attribute.String("kind", out.Kind.String()),
	)
	m.outcomes.Add(ctx, 1, attrs)
	m.duration.Record(ctx, took.Seconds(), attrs)
}
