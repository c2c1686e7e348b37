// Package notify announces settled payments.
package notify

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/domain/webhook"
)

var _ webhook.Notifier = Log{}

// Log writes notifications to the request logger. It is used when no broker
// is configured.
type Log struct{}

// OrderPaid implements webhook.Notifier.
func (Log) OrderPaid(ctx context.Context, n webhook.Notification) error {
	zctx.From(ctx).Info("Order paid", fields(n)...)
	return nil
}

// PaymentFailed implements webhook.Notifier.
func (Log) PaymentFailed(ctx context.Context, n webhook.Notification) error {
	zctx.From(ctx).Info("Payment failed", append(fields(n), zap.String("reason", n.Reason))...)
	return nil
}

func fields(n webhook.Notification) []zap.Field {
	return []zap.Field{
		zap.String("payment_intent", n.PaymentIntentID),
		zap.Int64("amount", n.Amount),
		zap.String("currency", n.Currency),
	}
}
