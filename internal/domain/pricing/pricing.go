// Package pricing computes order totals from line items and an optional
// coupon rule. All amounts are whole rupees.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/wello-store/internal/domain/coupon"
)

var hundred = decimal.NewFromInt(100)

// Line is a priced cart line.
type Line struct {
	ProductID string
	UnitPrice int64
	Quantity  int
}

// Totals is the result of a pricing computation.
type Totals struct {
	Subtotal   int64
	Discount   int64
	FinalTotal int64
}

// Compute returns subtotal, discount and final total for lines with rule
// applied. A nil rule yields no discount. The final total never drops
// below zero.
func Compute(lines []Line, rule *coupon.Rule) Totals {
	subtotal := Subtotal(lines)

	var discount int64
	if rule != nil {
		discount = discountFor(rule, lines, subtotal)
	}

	final := subtotal - discount
	if final < 0 {
		final = 0
	}
	return Totals{
		Subtotal:   subtotal,
		Discount:   discount,
		FinalTotal: final,
	}
}

// Subtotal returns the sum of unit price times quantity.
func Subtotal(lines []Line) int64 {
	var sum int64
	for _, l := range lines {
		sum += l.UnitPrice * int64(units(l))
	}
	return sum
}

func discountFor(rule *coupon.Rule, lines []Line, subtotal int64) int64 {
	var amount decimal.Decimal
	switch rule.Kind {
	case coupon.KindFlat:
		amount = rule.Value
	case coupon.KindPercent:
		amount = decimal.NewFromInt(subtotal).Mul(rule.Value).Div(hundred)
	case coupon.KindSpecial:
		amount = decimal.Zero
		for _, l := range lines {
			perUnit := decimal.Min(decimal.NewFromInt(l.UnitPrice), rule.Value)
			amount = amount.Add(perUnit.Mul(decimal.NewFromInt(int64(units(l)))))
		}
	default:
		return 0
	}

	// Round rounds half away from zero, which is half-up for non-negative amounts.
	d := amount.Round(0).IntPart()
	if d < 0 {
		return 0
	}
	return d
}

func units(l Line) int {
	if l.Quantity < 0 {
		return 0
	}
	return l.Quantity
}
