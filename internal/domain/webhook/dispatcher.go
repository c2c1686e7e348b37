package webhook

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/order"
)

const instrumentationName = "github.com/xenking/storefront-checkout/internal/domain/webhook"

// ErrBadSignature is returned when an event cannot be authenticated.
var ErrBadSignature = errors.New("invalid webhook signature")

// Verifier authenticates a raw event body against its signature header.
type Verifier interface {
	Verify(payload []byte, signature string) (*Envelope, error)
}

// EventStore tracks processed event ids.
type EventStore interface {
	// Claim marks the event as being processed. It returns false when the
	// id was claimed before.
	Claim(ctx context.Context, eventID, eventType string) (bool, error)
	// Forget drops a claim so that a redelivery is processed again.
	Forget(ctx context.Context, eventID string) error
}

// OrderUpdater applies payment outcomes to the order ledger.
type OrderUpdater interface {
	UpdateStatus(ctx context.Context, paymentIntentID string, status order.Status) (order.Transition, error)
}

// Notification describes a settled payment.
type Notification struct {
	EventID         string
	PaymentIntentID string
	Amount          int64
	Currency        string
	Reason          string
	OccurredAt      time.Time
}

// Notifier announces settled payments to the rest of the system.
type Notifier interface {
	OrderPaid(ctx context.Context, n Notification) error
	PaymentFailed(ctx context.Context, n Notification) error
}

// Ack is the outcome of a handled event.
type Ack struct {
	EventID string
	Kind    Kind
	// Duplicate is set when the event was processed before.
	Duplicate bool
	// Ignored is set for unknown kinds and undecodable objects.
	Ignored bool
}

// Deps are the collaborators of a Dispatcher.
type Deps struct {
	Verifier      Verifier
	Events        EventStore
	Orders        OrderUpdater
	Notifier      Notifier
	MeterProvider metric.MeterProvider
}

// Dispatcher verifies events and runs their handlers at most once per event
// id.
type Dispatcher struct {
	verifier Verifier
	events   EventStore
	orders   OrderUpdater
	notifier Notifier
	counter  metric.Int64Counter
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(deps Deps) (*Dispatcher, error) {
	if deps.Verifier == nil || deps.Events == nil || deps.Orders == nil || deps.Notifier == nil {
		return nil, errors.New("verifier, events, orders and notifier are required")
	}
	if deps.MeterProvider == nil {
		return nil, errors.New("meter provider is required")
	}
	counter, err := deps.MeterProvider.Meter(instrumentationName).Int64Counter("webhook.events",
		metric.WithDescription("Webhook events by kind and outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "events counter")
	}
	return &Dispatcher{
		verifier: deps.Verifier,
		events:   deps.Events,
		orders:   deps.Orders,
		notifier: deps.Notifier,
		counter:  counter,
	}, nil
}

// Handle authenticates body against signature and dispatches the event.
// Nothing is decoded or dispatched unless verification succeeds.
func (d *Dispatcher) Handle(ctx context.Context, body []byte, signature string) (Ack, error) {
	lg := zctx.From(ctx)
	if signature == "" {
		d.count(ctx, KindUnknown, "bad_signature")
		lg.Warn("Webhook without signature header", zap.Int("body_bytes", len(body)))
		return Ack{}, ErrBadSignature
	}
	env, err := d.verifier.Verify(body, signature)
	if err != nil {
		d.count(ctx, KindUnknown, "bad_signature")
		lg.Warn("Webhook signature rejected", zap.Int("body_bytes", len(body)), zap.Error(err))
		return Ack{}, ErrBadSignature
	}
	return d.Process(ctx, *env)
}

// Process dispatches an already authenticated envelope.
func (d *Dispatcher) Process(ctx context.Context, env Envelope) (Ack, error) {
	ctx = zctx.With(ctx, zap.String("event_id", env.ID), zap.String("event_type", env.Type))
	lg := zctx.From(ctx)

	if env.ID == "" {
		return Ack{}, errors.New("event without id")
	}
	ack := Ack{EventID: env.ID, Kind: KindOf(env.Type)}

	ev, err := Decode(env)
	if err != nil {
		// Redelivery cannot fix a body the processor itself produced.
		lg.Error("Undecodable event acknowledged", zap.Error(err))
		d.count(ctx, ack.Kind, "undecodable")
		ack.Ignored = true
		return ack, nil
	}
	if _, ok := ev.Payload.(*UnknownPayload); ok {
		lg.Info("Unhandled event type acknowledged")
		d.count(ctx, KindUnknown, "ignored")
		ack.Ignored = true
		return ack, nil
	}

	claimed, err := d.events.Claim(ctx, ev.ID, ev.Type)
	if err != nil {
		d.count(ctx, ev.Kind, "error")
		return Ack{}, errors.Wrap(err, "claim event")
	}
	if !claimed {
		lg.Info("Duplicate event acknowledged")
		d.count(ctx, ev.Kind, "duplicate")
		ack.Duplicate = true
		return ack, nil
	}

	if err := d.dispatch(ctx, ev); err != nil {
		if ferr := d.events.Forget(context.WithoutCancel(ctx), ev.ID); ferr != nil {
			lg.Error("Release event claim", zap.Error(ferr))
		}
		d.count(ctx, ev.Kind, "error")
		return Ack{}, errors.Wrapf(err, "handle %s", ev.Type)
	}
	d.count(ctx, ev.Kind, "processed")
	return ack, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, ev Event) error {
	switch p := ev.Payload.(type) {
	case *PaymentIntentPayload:
		if ev.Kind == KindPaymentSucceeded {
			return d.paymentSucceeded(ctx, ev, p)
		}
		return d.paymentFailed(ctx, ev, p)
	case *ChargePayload:
		return d.charge(ctx, ev, p)
	case *TransferPayload:
		zctx.From(ctx).Info("Transfer",
			zap.String("transfer", p.ID),
			zap.String("destination", p.Destination),
			zap.Int64("amount", p.Amount),
		)
		return nil
	case *PayoutPayload:
		lg := zctx.From(ctx)
		fields := []zap.Field{
			zap.String("payout", p.ID),
			zap.String("status", p.Status),
			zap.Int64("amount", p.Amount),
			zap.Time("arrival", p.ArrivalDate),
		}
		if ev.Kind == KindPayoutFailed {
			lg.Warn("Payout failed", append(fields, zap.String("reason", p.FailureMessage))...)
			return nil
		}
		lg.Info("Payout", fields...)
		return nil
	case *AccountPayload:
		zctx.From(ctx).Info("Connected account updated",
			zap.String("account", p.ID),
			zap.Bool("charges_enabled", p.ChargesEnabled),
			zap.Bool("payouts_enabled", p.PayoutsEnabled),
			zap.Bool("details_submitted", p.DetailsSubmitted),
		)
		return nil
	case *CheckoutSessionPayload:
		zctx.From(ctx).Info("Checkout session completed",
			zap.String("session", p.ID),
			zap.String("payment_intent", p.PaymentIntentID),
			zap.String("payment_status", p.PaymentStatus),
		)
		return nil
	default:
		return errors.Errorf("no handler for payload %T", p)
	}
}

func (d *Dispatcher) paymentSucceeded(ctx context.Context, ev Event, p *PaymentIntentPayload) error {
	settled, err := d.setStatus(ctx, p.ID, order.StatusPaid)
	if err != nil || !settled {
		return err
	}
	return d.notifier.OrderPaid(ctx, Notification{
		EventID:         ev.ID,
		PaymentIntentID: p.ID,
		Amount:          p.Amount,
		Currency:        p.Currency,
		OccurredAt:      ev.Created,
	})
}

func (d *Dispatcher) paymentFailed(ctx context.Context, ev Event, p *PaymentIntentPayload) error {
	settled, err := d.setStatus(ctx, p.ID, order.StatusFailed)
	if err != nil || !settled {
		return err
	}
	return d.notifier.PaymentFailed(ctx, Notification{
		EventID:         ev.ID,
		PaymentIntentID: p.ID,
		Amount:          p.Amount,
		Currency:        p.Currency,
		Reason:          p.FailureMessage,
		OccurredAt:      ev.Created,
	})
}

func (d *Dispatcher) charge(ctx context.Context, ev Event, p *ChargePayload) error {
	lg := zctx.From(ctx).With(zap.String("charge", p.ID), zap.String("payment_intent", p.PaymentIntentID))
	if ev.Kind != KindChargeRefunded {
		lg.Info("Charge succeeded", zap.Int64("amount", p.Amount))
		return nil
	}
	if !p.Refunded {
		lg.Info("Partial refund", zap.Int64("refunded", p.AmountRefunded), zap.Int64("amount", p.Amount))
		return nil
	}
	if p.PaymentIntentID == "" {
		lg.Warn("Refunded charge without payment intent")
		return nil
	}
	_, err := d.setStatus(ctx, p.PaymentIntentID, order.StatusRefunded)
	return err
}

// setStatus updates the ledger and reports whether the order now holds
// status, either just set or already there after a retried delivery.
// Intents the ledger never saw are logged and skipped so the processor
// stops redelivering them, and so are late events the order has moved past.
func (d *Dispatcher) setStatus(ctx context.Context, paymentIntentID string, status order.Status) (bool, error) {
	lg := zctx.From(ctx).With(
		zap.String("payment_intent", paymentIntentID),
		zap.String("status", string(status)),
	)
	t, err := d.orders.UpdateStatus(ctx, paymentIntentID, status)
	switch {
	case errors.Is(err, order.ErrNotFound):
		lg.Warn("No order for payment intent")
		return false, nil
	case err != nil:
		return false, errors.Wrap(err, "update order")
	case t == order.TransitionSkipped:
		lg.Info("Out of order status ignored")
		return false, nil
	}
	return true, nil
}

func (d *Dispatcher) count(ctx context.Context, kind Kind, outcome string) {
	k := string(kind)
	if kind == KindUnknown {
		k = "unknown"
	}
	d.counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", k),
		attribute.String("outcome", outcome),
	))
}
