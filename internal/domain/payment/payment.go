// Package payment creates payment intents for validated carts. It owns the
// per-client lock discipline, the conversion to minor currency units and the
// marketplace fee split.
package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
)

// Currency is the only currency the storefront charges in.
const Currency = "usd"

// ChargeMode selects how a payment is routed to the seller.
type ChargeMode string

const (
	// ModeStandard is a plain platform charge with no seller transfer.
	ModeStandard ChargeMode = "standard"
	// ModeDestination charges the full amount and transfers the amount minus
	// the platform fee to the seller account.
	ModeDestination ChargeMode = "destination"
	// ModeApplicationFee charges the full amount and declares the platform
	// fee explicitly; the processor forwards the remainder.
	ModeApplicationFee ChargeMode = "application_fee"
)

// Valid reports whether m is a known mode.
func (m ChargeMode) Valid() bool {
	switch m {
	case ModeStandard, ModeDestination, ModeApplicationFee:
		return true
	default:
		return false
	}
}

// Marketplace reports whether m routes funds to a connected seller.
func (m ChargeMode) Marketplace() bool {
	return m == ModeDestination || m == ModeApplicationFee
}

// Request is a checkout attempt from one client.
type Request struct {
	ClientID string
	Lines    []cart.Line
	Mode     ChargeMode
	// ExpectedAmount, when set, must equal the amount computed from the cart.
	ExpectedAmount *int64
	// SellerAccountID, when set, must name the configured seller.
	SellerAccountID string
}

// Intent is a created payment intent as returned to the client.
type Intent struct {
	PaymentIntentID string
	ClientSecret    string
	Amount          int64
	Currency        string
	PlatformFee     int64
	SellerPayout    int64
	Mode            ChargeMode
	IdempotencyKey  string
	Lines           []cart.ValidLine
	Total           decimal.Decimal
}

// ProcessorRequest is what the issuer asks the payment processor to create.
// DestinationAccountID and TransferAmount are set for destination charges,
// DestinationAccountID and PlatformFee for application-fee charges.
type ProcessorRequest struct {
	Amount               int64
	Currency             string
	Mode                 ChargeMode
	DestinationAccountID string
	TransferAmount       int64
	PlatformFee          int64
	IdempotencyKey       string
	Metadata             map[string]string
}

// ProcessorIntent is the processor's view of a created payment intent.
type ProcessorIntent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Status       string
}

// Processor creates payment intents at the external payment processor.
// Failures should be returned as *ProcessorError.
type Processor interface {
	CreatePaymentIntent(ctx context.Context, req ProcessorRequest) (*ProcessorIntent, error)
}
