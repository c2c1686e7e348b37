package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when no order matches the payment intent.
var ErrNotFound = errors.New("order not found")

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusFailed   Status = "failed"
	StatusRefunded Status = "refunded"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusFailed, StatusRefunded:
		return true
	default:
		return false
	}
}

// Sources returns the statuses an order may move to s from. Webhooks are
// not delivered in order, so a late event must not undo a later state: a
// paid order never becomes failed, and refunded is terminal. A refund
// proves the charge succeeded, so it applies to pending and failed orders
// whose success event has not arrived yet. Pending is only ever the
// initial status.
func (s Status) Sources() []Status {
	switch s {
	case StatusPaid:
		return []Status{StatusPending, StatusFailed}
	case StatusFailed:
		return []Status{StatusPending}
	case StatusRefunded:
		return []Status{StatusPending, StatusFailed, StatusPaid}
	default:
		return nil
	}
}

// Transition is the outcome of a status update.
type Transition int

const (
	// TransitionApplied means the order moved to the new status.
	TransitionApplied Transition = iota + 1
	// TransitionUnchanged means the order already had the status.
	TransitionUnchanged
	// TransitionSkipped means the order is in a state the new status may
	// not replace.
	TransitionSkipped
)

func (t Transition) String() string {
	switch t {
	case TransitionApplied:
		return "applied"
	case TransitionUnchanged:
		return "unchanged"
	case TransitionSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Order is the ledger entry for one payment intent. Amounts are in minor
// currency units.
type Order struct {
	ID              string
	PaymentIntentID string
	ClientID        string
	Mode            string
	Amount          int64
	PlatformFee     int64
	SellerPayout    int64
	Currency        string
	Status          Status
	Items           []Item
	Total           decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Item is a priced line of an order.
type Item struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	// SetStatus moves the order of the payment intent to status if its
	// current status is one of from. The check and the update are atomic.
	SetStatus(ctx context.Context, paymentIntentID string, status Status, from []Status) (Transition, error)
	GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*Order, error)
}
