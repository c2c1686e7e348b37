// Package cart validates untrusted cart contents against the catalog and
// prices them.
package cart

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/catalog"
)

// MaxQuantity is the largest quantity accepted for a single line.
const MaxQuantity = 100

// Reason explains why a cart line was rejected.
type Reason string

const (
	// ReasonNotFound means the product id is not in the catalog.
	ReasonNotFound Reason = "NOT_FOUND"
	// ReasonNotPurchasable means the product belongs to a closed collection.
	ReasonNotPurchasable Reason = "NOT_PURCHASABLE"
	// ReasonMalformed means the line failed shape validation.
	ReasonMalformed Reason = "MALFORMED"
)

// Line is one untrusted cart entry. Quantity is kept as a decimal so that
// fractional or out-of-range values reach the validator instead of being
// truncated by the decoder.
type Line struct {
	ProductID string
	Quantity  decimal.Decimal
}

// NewLine builds a Line with an integer quantity.
func NewLine(productID string, quantity int64) Line {
	return Line{ProductID: productID, Quantity: decimal.NewFromInt(quantity)}
}

// ValidLine is a priced, purchasable cart line.
type ValidLine struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int64
	LineTotal decimal.Decimal
}

// RejectedLine describes a line that failed validation. Name and Collection
// are set for NOT_PURCHASABLE so callers can say which items are restricted.
type RejectedLine struct {
	Index      int
	ProductID  string
	Reason     Reason
	Name       string
	Collection string
}

// Result is the outcome of validating a cart. Accepted is true iff Rejected
// is empty and Valid is not. Any rejection clears Valid and Total.
type Result struct {
	Accepted bool
	Valid    []ValidLine
	Rejected []RejectedLine
	Total    decimal.Decimal
}

// RestrictedNames returns the names of products rejected as not purchasable.
func (r Result) RestrictedNames() []string {
	var names []string
	for _, l := range r.Rejected {
		if l.Reason == ReasonNotPurchasable {
			names = append(names, l.Name)
		}
	}
	return names
}

// Catalog is the read side of the product catalog used by the validator.
type Catalog interface {
	Get(id string) (catalog.Product, error)
}
