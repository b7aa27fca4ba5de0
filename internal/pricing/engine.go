package pricing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Money represents a monetary value stored in minor units.
type Money = int64

// ErrInvalidInput signals a caller contract violation such as a negative amount.
var ErrInvalidInput = errors.New("pricing: invalid input")

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.NewFromFloat(0.5)
)

// LineItem describes a single invoice line.
type LineItem struct {
	Description string
	Quantity    int64
	UnitPrice   Money
	Amount      Money
}

// Normalize recomputes Amount from Quantity and UnitPrice. A missing quantity
// counts as one unit. A line entered as a flat amount (no quantity, no unit
// price) keeps its amount.
func (it LineItem) Normalize() LineItem {
	if it.Quantity == 0 {
		it.Quantity = 1
		if it.UnitPrice == 0 {
			return it
		}
	}
	if it.overflows() {
		return it
	}
	it.Amount = it.Quantity * it.UnitPrice
	return it
}

// overflows reports whether Quantity * UnitPrice does not fit in Money.
func (it LineItem) overflows() bool {
	return it.Quantity > 0 && it.UnitPrice > 0 && it.UnitPrice > math.MaxInt64/it.Quantity
}

// Validate reports whether the line satisfies the submission contract.
func (it LineItem) Validate() error {
	switch {
	case strings.TrimSpace(it.Description) == "":
		return fmt.Errorf("line item description is required: %w", ErrInvalidInput)
	case it.Quantity < 0:
		return fmt.Errorf("line item quantity must not be negative: %w", ErrInvalidInput)
	case it.UnitPrice < 0:
		return fmt.Errorf("line item unit price must not be negative: %w", ErrInvalidInput)
	case it.overflows():
		return fmt.Errorf("line item quantity * unit price overflows: %w", ErrInvalidInput)
	case it.Amount < 0:
		return fmt.Errorf("line item amount must not be negative: %w", ErrInvalidInput)
	}
	return nil
}

// Aggregate normalizes the provided lines and returns their subtotal.
func Aggregate(items []LineItem) (Money, error) {
	var subtotal Money
	for i, it := range items {
		it = it.Normalize()
		if err := it.Validate(); err != nil {
			return 0, fmt.Errorf("line %d: %w", i+1, err)
		}
		if it.Amount > math.MaxInt64-subtotal {
			return 0, fmt.Errorf("line %d: subtotal overflows: %w", i+1, ErrInvalidInput)
		}
		subtotal += it.Amount
	}
	return subtotal, nil
}

// NormalizeAll returns a copy of items with every amount recomputed.
func NormalizeAll(items []LineItem) []LineItem {
	out := make([]LineItem, len(items))
	for i, it := range items {
		out[i] = it.Normalize()
	}
	return out
}

// ApplyTax computes the tax owed on amount at ratePercent (0-100 scale).
func ApplyTax(amount Money, ratePercent decimal.Decimal) Money {
	return Percent(amount, ratePercent)
}

// Percent returns round(amount * pct / 100).
func Percent(amount Money, pct decimal.Decimal) Money {
	v := decimal.NewFromInt(amount).Mul(pct).Div(hundred)
	return roundHalfUp(v)
}

// PackageDiscount returns the amount taken off originalPrice by a package discount.
func PackageDiscount(originalPrice Money, discountPercent int64) Money {
	return Percent(originalPrice, decimal.NewFromInt(discountPercent))
}

// Breakdown exposes every intermediate value of a total computation.
type Breakdown struct {
	Subtotal           Money           `json:"subtotal"`
	DiscountAmount     Money           `json:"discountAmount"`
	DiscountedSubtotal Money           `json:"discountedSubtotal"`
	TaxRate            decimal.Decimal `json:"-"`
	TaxAmount          Money           `json:"taxAmount"`
	Total              Money           `json:"total"`
}

// AssembleTotal combines subtotal, discount and tax. Each stage is rounded once.
func AssembleTotal(subtotal, discount Money, ratePercent decimal.Decimal) Breakdown {
	discounted := subtotal - discount
	if discounted < 0 {
		discounted = 0
	}
	tax := ApplyTax(discounted, ratePercent)
	return Breakdown{
		Subtotal:           subtotal,
		DiscountAmount:     discount,
		DiscountedSubtotal: discounted,
		TaxRate:            ratePercent,
		TaxAmount:          tax,
		Total:              discounted + tax,
	}
}

// roundHalfUp rounds to the nearest integer with .5 going towards +Inf.
func roundHalfUp(d decimal.Decimal) Money {
	return d.Add(half).Floor().IntPart()
}
