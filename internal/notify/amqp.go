package notify

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/webhook"
)

// Routing keys of published notifications.
const (
	RoutingOrderPaid     = "order.paid"
	RoutingPaymentFailed = "payment.failed"
)

// DefaultExchange is the topic exchange notifications are published to.
const DefaultExchange = "checkout"

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

var _ webhook.Notifier = (*Publisher)(nil)

// Publisher publishes notifications as JSON messages to a topic exchange.
type Publisher struct {
	ch       Channel
	exchange string
}

// NewPublisher creates a Publisher on ch. An empty exchange means
// DefaultExchange.
func NewPublisher(ch Channel, exchange string) *Publisher {
	if exchange == "" {
		exchange = DefaultExchange
	}
	return &Publisher{ch: ch, exchange: exchange}
}

// OrderPaid implements webhook.Notifier.
func (p *Publisher) OrderPaid(ctx context.Context, n webhook.Notification) error {
	return p.publish(ctx, RoutingOrderPaid, n)
}

// PaymentFailed implements webhook.Notifier.
func (p *Publisher) PaymentFailed(ctx context.Context, n webhook.Notification) error {
	return p.publish(ctx, RoutingPaymentFailed, n)
}

func (p *Publisher) publish(ctx context.Context, key string, n webhook.Notification) error {
	err := p.ch.PublishWithContext(ctx,
		p.exchange, // exchange
		key,        // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    n.EventID,
			Timestamp:    n.OccurredAt,
			Body:         encode(n),
		},
	)
	if err != nil {
		return errors.Wrapf(err, "publish %s", key)
	}
	zctx.From(ctx).Debug("Notification published",
		zap.String("routing_key", key),
		zap.String("payment_intent", n.PaymentIntentID),
	)
	return nil
}

func encode(n webhook.Notification) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("event_id")
	e.Str(n.EventID)
	e.FieldStart("payment_intent_id")
	e.Str(n.PaymentIntentID)
	e.FieldStart("amount")
	e.Int64(n.Amount)
	e.FieldStart("currency")
	e.Str(n.Currency)
	if n.Reason != "" {
		e.FieldStart("reason")
		e.Str(n.Reason)
	}
	e.FieldStart("occurred_at")
	e.Str(n.OccurredAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
	return e.Bytes()
}

// Dial connects to the broker at url and declares exchange as a durable
// topic exchange. Closing the returned connection also closes the channel.
func Dial(url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, errors.Wrap(err, "dial")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, errors.Wrap(err, "open channel")
	}
	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = conn.Close()
		return nil, nil, errors.Wrap(err, "declare exchange")
	}
	return conn, ch, nil
}
