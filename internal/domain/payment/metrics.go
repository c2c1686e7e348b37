package payment

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/xenking/storefront-checkout/internal/domain/payment"

// Metrics records issuer outcomes.
type Metrics struct {
	intents  metric.Int64Counter
	rejected metric.Int64Counter
	lockHeld metric.Int64Counter
	latency  metric.Float64Histogram
}

// NewMetrics registers the issuer instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(instrumentationName)

	intents, err := meter.Int64Counter("checkout.intents.created",
		metric.WithDescription("Payment intents created"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "intents counter")
	}
	rejected, err := meter.Int64Counter("checkout.intents.rejected",
		metric.WithDescription("Checkout attempts rejected before or by the processor"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "rejected counter")
	}
	lockHeld, err := meter.Int64Counter("checkout.lock.contended",
		metric.WithDescription("Checkout attempts refused because a payment was in progress"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "lock counter")
	}
	latency, err := meter.Float64Histogram("checkout.processor.duration",
		metric.WithDescription("Payment processor call latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "latency histogram")
	}

	return &Metrics{
		intents:  intents,
		rejected: rejected,
		lockHeld: lockHeld,
		latency:  latency,
	}, nil
}

func (m *Metrics) created(ctx context.Context, mode ChargeMode) {
	m.intents.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", string(mode))))
}

func (m *Metrics) reject(ctx context.Context, mode ChargeMode, reason string) {
	m.rejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", string(mode)),
		attribute.String("reason", reason),
	))
}

func (m *Metrics) contended(ctx context.Context) {
	m.lockHeld.Add(ctx, 1)
}

func (m *Metrics) processorCall(ctx context.Context, seconds float64, outcome string) {
	m.latency.Record(ctx, seconds, metric.WithAttributes(attribute.String("outcome", outcome)))
}
