package cart

import (
	"github.com/shopspring/decimal"
)

var maxQuantity = decimal.NewFromInt(MaxQuantity)

// Validator checks cart lines against a catalog snapshot. It has no side
// effects and is safe for concurrent use.
type Validator struct {
	catalog Catalog
}

// NewValidator creates a Validator over the given catalog.
func NewValidator(c Catalog) *Validator {
	return &Validator{catalog: c}
}

// Validate resolves every line, rejecting unknown, restricted and malformed
// ones. Duplicate product ids are priced independently. Line totals are kept
// exact; only the final total is rounded to cents.
func (v *Validator) Validate(lines []Line) Result {
	var (
		res   Result
		valid = make([]ValidLine, 0, len(lines))
		sum   = decimal.Zero
	)

	for i, line := range lines {
		if !wellFormed(line) {
			res.Rejected = append(res.Rejected, RejectedLine{
				Index:     i,
				ProductID: line.ProductID,
				Reason:    ReasonMalformed,
			})
			continue
		}

		p, err := v.catalog.Get(line.ProductID)
		if err != nil {
			// The catalog lives in memory, so a failed lookup can only be a miss.
			res.Rejected = append(res.Rejected, RejectedLine{
				Index:     i,
				ProductID: line.ProductID,
				Reason:    ReasonNotFound,
			})
			continue
		}

		if !p.Purchasable {
			res.Rejected = append(res.Rejected, RejectedLine{
				Index:      i,
				ProductID:  p.ID,
				Reason:     ReasonNotPurchasable,
				Name:       p.Name,
				Collection: p.Collection,
			})
			continue
		}

		lineTotal := p.Price.Mul(line.Quantity)
		valid = append(valid, ValidLine{
			ProductID: p.ID,
			Name:      p.Name,
			UnitPrice: p.Price,
			Quantity:  line.Quantity.IntPart(),
			LineTotal: lineTotal,
		})
		sum = sum.Add(lineTotal)
	}

	if len(res.Rejected) > 0 || len(valid) == 0 {
		res.Total = decimal.Zero
		return res
	}

	res.Accepted = true
	res.Valid = valid
	res.Total = sum.Round(2)
	return res
}

func wellFormed(l Line) bool {
	if l.ProductID == "" {
		return false
	}
	q := l.Quantity
	return q.IsInteger() && q.IsPositive() && q.LessThanOrEqual(maxQuantity)
}
