package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindPaymentSucceeded, KindOf("payment_intent.succeeded"))
	assert.Equal(t, KindPayoutFailed, KindOf("payout.failed"))
	assert.Equal(t, KindUnknown, KindOf("invoice.paid"))
	assert.Equal(t, KindUnknown, KindOf(""))
}

func TestDecode(t *testing.T) {
	created := time.Unix(1700000000, 0).UTC()
	tests := []struct {
		name   string
		typ    string
		object string
		want   Payload
	}{
		{
			name: "PaymentSucceeded",
			typ:  "payment_intent.succeeded",
			object: `{"id":"pi_1","object":"payment_intent","amount":5000,"currency":"usd","status":"succeeded",
				"metadata":{"sessionId":"client-1","orderTotal":"50.00"},"last_payment_error":null,"charges":{"data":[]}}`,
			want: &PaymentIntentPayload{
				ID:       "pi_1",
				Status:   "succeeded",
				Amount:   5000,
				Currency: "usd",
				Metadata: map[string]string{"sessionId": "client-1", "orderTotal": "50.00"},
			},
		},
		{
			name: "PaymentFailed",
			typ:  "payment_intent.payment_failed",
			object: `{"id":"pi_2","amount":1999,"currency":"usd","status":"requires_payment_method",
				"last_payment_error":{"code":"card_declined","message":"Your card was declined.","type":"card_error"}}`,
			want: &PaymentIntentPayload{
				ID:             "pi_2",
				Status:         "requires_payment_method",
				Amount:         1999,
				Currency:       "usd",
				FailureCode:    "card_declined",
				FailureMessage: "Your card was declined.",
			},
		},
		{
			name:   "ChargeRefundedExpanded",
			typ:    "charge.refunded",
			object: `{"id":"ch_1","payment_intent":{"id":"pi_1","object":"payment_intent"},"amount":5000,"amount_refunded":5000,"refunded":true,"currency":"usd"}`,
			want:   &ChargePayload{ID: "ch_1", PaymentIntentID: "pi_1", Amount: 5000, AmountRefunded: 5000, Refunded: true, Currency: "usd"},
		},
		{
			name:   "ChargeWithoutIntent",
			typ:    "charge.succeeded",
			object: `{"id":"ch_2","payment_intent":null,"amount":100,"amount_refunded":0,"refunded":false,"currency":"usd"}`,
			want:   &ChargePayload{ID: "ch_2", Amount: 100, Currency: "usd"},
		},
		{
			name:   "Transfer",
			typ:    "transfer.created",
			object: `{"id":"tr_1","destination":"acct_seller","amount":4500,"currency":"usd"}`,
			want:   &TransferPayload{ID: "tr_1", Destination: "acct_seller", Amount: 4500, Currency: "usd"},
		},
		{
			name:   "PayoutFailed",
			typ:    "payout.failed",
			object: `{"id":"po_1","status":"failed","amount":4500,"currency":"usd","arrival_date":1700086400,"failure_message":"Account closed"}`,
			want: &PayoutPayload{
				ID: "po_1", Status: "failed", Amount: 4500, Currency: "usd",
				ArrivalDate:    time.Unix(1700086400, 0).UTC(),
				FailureMessage: "Account closed",
			},
		},
		{
			name:   "Account",
			typ:    "account.updated",
			object: `{"id":"acct_seller","charges_enabled":true,"payouts_enabled":false,"details_submitted":true,"settings":{}}`,
			want:   &AccountPayload{ID: "acct_seller", ChargesEnabled: true, DetailsSubmitted: true},
		},
		{
			name:   "CheckoutSession",
			typ:    "checkout.session.completed",
			object: `{"id":"cs_1","payment_intent":"pi_9","payment_status":"paid","amount_total":2500}`,
			want:   &CheckoutSessionPayload{ID: "cs_1", PaymentIntentID: "pi_9", PaymentStatus: "paid", AmountTotal: 2500},
		},
		{
			name:   "Unknown",
			typ:    "invoice.paid",
			object: `not even json`,
			want:   &UnknownPayload{Type: "invoice.paid"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode(Envelope{
				ID:      "evt_1",
				Type:    tt.typ,
				Created: created,
				Account: "acct_platform",
				Object:  []byte(tt.object),
			})
			require.NoError(t, err)
			assert.Equal(t, "evt_1", ev.ID)
			assert.Equal(t, tt.typ, ev.Type)
			assert.Equal(t, KindOf(tt.typ), ev.Kind)
			assert.Equal(t, created, ev.Created)
			assert.Equal(t, "acct_platform", ev.Account)
			assert.Equal(t, tt.want, ev.Payload)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		typ    string
		object string
	}{
		{name: "NotJSON", typ: "payment_intent.succeeded", object: `{"id":`},
		{name: "MissingIntentID", typ: "payment_intent.succeeded", object: `{"amount":5000}`},
		{name: "WrongType", typ: "charge.refunded", object: `{"id":"ch_1","amount":"lots"}`},
		{name: "Empty", typ: "payout.paid", object: ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(Envelope{ID: "evt_1", Type: tt.typ, Object: []byte(tt.object)})
			require.Error(t, err)
		})
	}
}
