package payment

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FeePolicy is the platform's cut of marketplace charges.
type FeePolicy struct {
	// Percentage of the charge amount, 0..100.
	Percentage decimal.Decimal
	// Fixed fee in minor units added on top of the percentage.
	Fixed int64
}

// DefaultFeePolicy takes 10% with no fixed part.
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{Percentage: decimal.NewFromInt(10)}
}

// Validate checks the policy bounds.
func (p FeePolicy) Validate() error {
	if p.Percentage.IsNegative() || p.Percentage.GreaterThan(hundred) {
		return errors.Errorf("fee percentage %s out of range [0, 100]", p.Percentage)
	}
	if p.Fixed < 0 {
		return errors.Errorf("fixed fee %d is negative", p.Fixed)
	}
	return nil
}

// Fee returns round_half_up(amount * percentage / 100) + fixed.
func (p FeePolicy) Fee(amount int64) int64 {
	pct := decimal.NewFromInt(amount).Mul(p.Percentage).Div(hundred).Round(0)
	return pct.IntPart() + p.Fixed
}

// Split is the distribution of one charge in minor units.
// For marketplace modes SellerPayout + PlatformFee == Amount.
type Split struct {
	Amount       int64
	PlatformFee  int64
	SellerPayout int64
}

// Split computes the fee split of amount for mode. Standard charges carry
// no fee and no payout.
func (p FeePolicy) Split(amount int64, mode ChargeMode) (Split, error) {
	if !mode.Marketplace() {
		return Split{Amount: amount}, nil
	}
	fee := p.Fee(amount)
	if fee > amount {
		return Split{}, &FeeExceedsAmountError{Amount: amount, Fee: fee}
	}
	return Split{
		Amount:       amount,
		PlatformFee:  fee,
		SellerPayout: amount - fee,
	}, nil
}

// ToMinorUnits converts a decimal amount to cents, rounding half up.
func ToMinorUnits(total decimal.Decimal) int64 {
	return total.Mul(hundred).Round(0).IntPart()
}
