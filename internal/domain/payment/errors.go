package payment

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
)

// Sentinel errors for payment requests.
var (
	ErrEmptyCart           = errors.New("cart is empty")
	ErrZeroAmount          = errors.New("cart total is zero")
	ErrSellerNotConfigured = errors.New("no seller account configured")
	ErrUnknownSeller       = errors.New("unknown seller account")
	ErrFeeExceedsAmount    = errors.New("platform fee exceeds amount")
)

// InvalidCartError carries the rejected lines of a cart that failed
// validation.
type InvalidCartError struct {
	Rejected []cart.RejectedLine
}

func (e *InvalidCartError) Error() string {
	parts := make([]string, len(e.Rejected))
	for i, l := range e.Rejected {
		parts[i] = fmt.Sprintf("%s: %s", l.ProductID, l.Reason)
	}
	return "invalid cart: " + strings.Join(parts, ", ")
}

// RestrictedNames returns the names of the products that cannot be bought.
func (e *InvalidCartError) RestrictedNames() []string {
	return cart.Result{Rejected: e.Rejected}.RestrictedNames()
}

// AmountMismatchError means the client-supplied amount differs from the
// amount computed from the cart.
type AmountMismatchError struct {
	Expected int64
	Computed int64
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount mismatch: client sent %d, cart totals %d", e.Expected, e.Computed)
}

// FeeExceedsAmountError means the configured fee leaves nothing for the seller.
type FeeExceedsAmountError struct {
	Amount int64
	Fee    int64
}

func (e *FeeExceedsAmountError) Error() string {
	return fmt.Sprintf("platform fee %d exceeds amount %d", e.Fee, e.Amount)
}

func (e *FeeExceedsAmountError) Is(target error) bool {
	return target == ErrFeeExceedsAmount
}

// ErrorKind classifies processor failures.
type ErrorKind string

const (
	// KindCard is a card decline the customer can fix.
	KindCard ErrorKind = "card_error"
	// KindRequest is a request the processor refused as invalid, usually
	// a platform misconfiguration.
	KindRequest ErrorKind = "invalid_request"
	// KindInfrastructure covers processor outages, network and auth errors.
	KindInfrastructure ErrorKind = "api_error"
	// KindUnavailable means the processor circuit is open.
	KindUnavailable ErrorKind = "unavailable"
)

// ProcessorError wraps a payment processor failure. Only Kind, and Message
// for card errors, are safe to show to clients.
type ProcessorError struct {
	Kind        ErrorKind
	Code        string
	DeclineCode string
	RequestID   string
	StatusCode  int
	// Message is the processor's customer-facing text for card errors.
	Message string
	Err     error
}

func (e *ProcessorError) Error() string {
	var b strings.Builder
	b.WriteString("payment processor: ")
	b.WriteString(string(e.Kind))
	if e.Code != "" {
		b.WriteString(" (")
		b.WriteString(e.Code)
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ProcessorError) Unwrap() error { return e.Err }

// ClientFixable reports whether the customer can resolve the failure.
func (e *ProcessorError) ClientFixable() bool { return e.Kind == KindCard }
