package payment

import (
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
)

func TestIdempotencyKey(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	a := cart.ValidLine{ProductID: "prod-1", Quantity: 2, UnitPrice: decimal.NewFromInt(25)}
	b := cart.ValidLine{ProductID: "prod-2", Quantity: 1, UnitPrice: decimal.RequireFromString("19.99")}

	key := IdempotencyKey("client-A", ModeStandard, "", []cart.ValidLine{a, b}, base, 10*time.Minute)
	assert.Regexp(t, `^checkout_[0-9a-f]{64}$`, key)

	tests := []struct {
		name  string
		other string
		same  bool
	}{
		{
			name:  "line order",
			other: IdempotencyKey("client-A", ModeStandard, "", []cart.ValidLine{b, a}, base, 10*time.Minute),
			same:  true,
		},
		{
			name:  "same bucket",
			other: IdempotencyKey("client-A", ModeStandard, "", []cart.ValidLine{a, b}, base.Add(9*time.Minute), 10*time.Minute),
			same:  true,
		},
		{
			name:  "next bucket",
			other: IdempotencyKey("client-A", ModeStandard, "", []cart.ValidLine{a, b}, base.Add(10*time.Minute), 10*time.Minute),
		},
		{
			name:  "other client",
			other: IdempotencyKey("client-B", ModeStandard, "", []cart.ValidLine{a, b}, base, 10*time.Minute),
		},
		{
			name:  "other mode",
			other: IdempotencyKey("client-A", ModeDestination, "acct_1", []cart.ValidLine{a, b}, base, 10*time.Minute),
		},
		{
			name:  "other quantity",
			other: IdempotencyKey("client-A", ModeStandard, "", []cart.ValidLine{a, {ProductID: "prod-2", Quantity: 2, UnitPrice: b.UnitPrice}}, base, 10*time.Minute),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.same {
				assert.Equal(t, key, tt.other)
			} else {
				assert.NotEqual(t, key, tt.other)
			}
		})
	}
}

func TestSortLines(t *testing.T) {
	in := []cart.ValidLine{
		{ProductID: "prod-2", Quantity: 1, UnitPrice: decimal.NewFromInt(5)},
		{ProductID: "prod-1", Quantity: 3, UnitPrice: decimal.NewFromInt(25)},
		{ProductID: "prod-1", Quantity: 1, UnitPrice: decimal.NewFromInt(30)},
		{ProductID: "prod-1", Quantity: 1, UnitPrice: decimal.NewFromInt(25)},
	}
	got := SortLines(in)

	var order []string
	for _, l := range got {
		order = append(order, l.ProductID+"x"+strconv.FormatInt(l.Quantity, 10)+"@"+l.UnitPrice.String())
	}
	assert.Equal(t, []string{"prod-1x1@25", "prod-1x1@30", "prod-1x3@25", "prod-2x1@5"}, order)
	assert.Equal(t, "prod-2", in[0].ProductID, "input must not be reordered")
}
