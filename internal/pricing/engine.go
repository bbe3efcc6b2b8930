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

// minorDigits is the number of fractional digits kept in minor units.
const minorDigits = 2

// Item describes a line item used for pricing calculation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal Money
	Total    Money
}

// Compute sums unit price times quantity across items. Lines with a
// non-positive quantity contribute nothing.
func Compute(items []Item) Summary {
	var subtotal Money
	for _, it := range items {
		subtotal += LineTotal(it.Qty, it.UnitPrice)
	}
	return Summary{
		Subtotal: subtotal,
		Total:    subtotal,
	}
}

// LineTotal returns qty x unit, or zero for a non-positive quantity.
func LineTotal(qty int, unit Money) Money {
	if qty <= 0 {
		return 0
	}
	return Money(qty) * unit
}

// ErrOverflow reports an amount that does not fit in Money.
var ErrOverflow = errors.New("pricing: amount overflows")

// CheckedLineTotal is LineTotal that fails instead of wrapping.
func CheckedLineTotal(qty int, unit Money) (Money, error) {
	if qty <= 0 || unit == 0 {
		return 0, nil
	}
	q := Money(qty)
	total := q * unit
	if total/q != unit {
		return 0, ErrOverflow
	}
	return total, nil
}

// CheckedCompute is Compute that fails when any line or the running total
// leaves the Money range.
func CheckedCompute(items []Item) (Summary, error) {
	var subtotal Money
	for _, it := range items {
		line, err := CheckedLineTotal(it.Qty, it.UnitPrice)
		if err != nil {
			return Summary{}, err
		}
		if (line > 0 && subtotal > math.MaxInt64-line) || (line < 0 && subtotal < math.MinInt64-line) {
			return Summary{}, ErrOverflow
		}
		subtotal += line
	}
	return Summary{Subtotal: subtotal, Total: subtotal}, nil
}

// FromDecimal converts a major-unit amount (e.g. 19.99) into minor units,
// rounding half away from zero.
func FromDecimal(d decimal.Decimal) Money {
	return d.Shift(minorDigits).Round(0).IntPart()
}

// ToDecimal converts minor units back into a major-unit decimal.
func ToDecimal(m Money) decimal.Decimal {
	return decimal.New(m, -minorDigits)
}

// ParseMajor parses a major-unit string such as "19.99".
func ParseMajor(value string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", value, err)
	}
	return FromDecimal(d), nil
}

// Format renders the amount with two decimals and a dollar sign.
func Format(m Money) string {
	return "$" + ToDecimal(m).StringFixed(minorDigits)
}
