package payment

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/xenking/storefront-checkout/internal/domain/cart"
)

// DefaultIdempotencyWindow is the period within which an identical checkout
// from the same client maps to the same processor-side intent.
const DefaultIdempotencyWindow = 10 * time.Minute

// IdempotencyKey derives a processor idempotency key from the validated
// cart. Two requests collapse to the same key when they come from the same
// client, use the same mode and destination, carry the same lines in any
// order and fall into the same time bucket.
func IdempotencyKey(
	clientID string,
	mode ChargeMode,
	destination string,
	lines []cart.ValidLine,
	now time.Time,
	window time.Duration,
) string {
	if window <= 0 {
		window = DefaultIdempotencyWindow
	}

	sorted := SortLines(lines)
	items := make([]string, len(sorted))
	for i, l := range sorted {
		items[i] = l.ProductID + "\x1f" + strconv.FormatInt(l.Quantity, 10) + "\x1f" + l.UnitPrice.String()
	}

	h := sha256.New()
	for _, part := range []string{
		clientID,
		string(mode),
		destination,
		strconv.FormatInt(now.UTC().Truncate(window).Unix(), 10),
		strings.Join(items, "\x1e"),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return "checkout_" + hex.EncodeToString(h.Sum(nil))
}

// SortLines returns a copy of lines in canonical order: product id, then
// quantity, then unit price. Everything sent to the processor under one
// idempotency key is built from this order, since the processor rejects a
// reused key whose parameters differ.
func SortLines(lines []cart.ValidLine) []cart.ValidLine {
	out := slices.Clone(lines)
	slices.SortStableFunc(out, func(a, b cart.ValidLine) int {
		return cmp.Or(
			strings.Compare(a.ProductID, b.ProductID),
			cmp.Compare(a.Quantity, b.Quantity),
			a.UnitPrice.Cmp(b.UnitPrice),
		)
	})
	return out
}
