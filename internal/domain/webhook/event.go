// Package webhook verifies and dispatches payment processor events.
//
// Events are decoded into a closed set of payload variants; dispatch is a
// type switch over those variants with an explicit arm for unknown kinds,
// which are acknowledged and logged.
package webhook

import (
	"time"
)

// Kind is a recognised event kind.
type Kind string

const (
	KindUnknown           Kind = ""
	KindPaymentSucceeded  Kind = "payment_intent.succeeded"
	KindPaymentFailed     Kind = "payment_intent.payment_failed"
	KindChargeSucceeded   Kind = "charge.succeeded"
	KindChargeRefunded    Kind = "charge.refunded"
	KindTransferCreated   Kind = "transfer.created"
	KindTransferPaid      Kind = "transfer.paid"
	KindPayoutCreated     Kind = "payout.created"
	KindPayoutPaid        Kind = "payout.paid"
	KindPayoutFailed      Kind = "payout.failed"
	KindAccountUpdated    Kind = "account.updated"
	KindCheckoutCompleted Kind = "checkout.session.completed"
)

var knownKinds = map[string]Kind{
	string(KindPaymentSucceeded):  KindPaymentSucceeded,
	string(KindPaymentFailed):     KindPaymentFailed,
	string(KindChargeSucceeded):   KindChargeSucceeded,
	string(KindChargeRefunded):    KindChargeRefunded,
	string(KindTransferCreated):   KindTransferCreated,
	string(KindTransferPaid):      KindTransferPaid,
	string(KindPayoutCreated):     KindPayoutCreated,
	string(KindPayoutPaid):        KindPayoutPaid,
	string(KindPayoutFailed):      KindPayoutFailed,
	string(KindAccountUpdated):    KindAccountUpdated,
	string(KindCheckoutCompleted): KindCheckoutCompleted,
}

// KindOf maps an event type tag to its Kind. Unrecognised tags map to
// KindUnknown.
func KindOf(eventType string) Kind {
	return knownKinds[eventType]
}

// Envelope is a verified event before its object is decoded.
type Envelope struct {
	ID       string
	Type     string
	Created  time.Time
	Account  string
	Livemode bool
	// Object is the raw JSON of the event's data object.
	Object []byte
}

// Event is a decoded event.
type Event struct {
	ID      string
	Type    string
	Kind    Kind
	Created time.Time
	Account string
	Payload Payload
}

// Payload is the decoded data object of an event. The set of
// implementations is closed.
type Payload interface {
	isPayload()
}

// PaymentIntentPayload is carried by payment_intent.* events.
type PaymentIntentPayload struct {
	ID             string
	Status         string
	Amount         int64
	Currency       string
	Metadata       map[string]string
	FailureCode    string
	FailureMessage string
}

// ChargePayload is carried by charge.* events.
type ChargePayload struct {
	ID              string
	PaymentIntentID string
	Amount          int64
	AmountRefunded  int64
	Refunded        bool
	Currency        string
}

// TransferPayload is carried by transfer.* events.
type TransferPayload struct {
	ID          string
	Destination string
	Amount      int64
	Currency    string
}

// PayoutPayload is carried by payout.* events.
type PayoutPayload struct {
	ID             string
	Status         string
	Amount         int64
	Currency       string
	ArrivalDate    time.Time
	FailureMessage string
}

// AccountPayload is carried by account.updated.
type AccountPayload struct {
	ID               string
	ChargesEnabled   bool
	PayoutsEnabled   bool
	DetailsSubmitted bool
}

// CheckoutSessionPayload is carried by checkout.session.completed.
type CheckoutSessionPayload struct {
	ID              string
	PaymentIntentID string
	PaymentStatus   string
	AmountTotal     int64
}

// UnknownPayload stands for any event kind without a handler.
type UnknownPayload struct {
	Type string
}

func (*PaymentIntentPayload) isPayload()   {}
func (*ChargePayload) isPayload()          {}
func (*TransferPayload) isPayload()        {}
func (*PayoutPayload) isPayload()          {}
func (*AccountPayload) isPayload()         {}
func (*CheckoutSessionPayload) isPayload() {}
func (*UnknownPayload) isPayload()         {}
