// Package money provides exact decimal arithmetic for monetary values.
//
// All derived amounts are rounded to two fractional digits with
// round-half-up (away from zero), applied at each derivation step.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for stored amounts.
const Scale = 2

var (
	// Zero is the zero amount.
	Zero = decimal.Zero

	// Hundred is used for percentage conversion.
	Hundred = decimal.NewFromInt(100)

	// Tolerance is one minor currency unit.
	Tolerance = decimal.New(1, -Scale)

	// Limit bounds the magnitude of any stored amount (exclusive).
	Limit = decimal.New(1, 15)
)

// Round2 rounds d to two fractional digits, half away from zero (0.005 -> 0.01).
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Parse parses a decimal string such as "33.33".
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return d, nil
}

// MustParse parses s and panics on error. Intended for constants and tests.
func MustParse(s string) decimal.Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Percent returns round2(base * pct / 100).
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return Round2(base.Mul(pct).Div(Hundred))
}

// Sum adds the given amounts exactly.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// IsMinorExact reports whether d has no more than two fractional digits.
func IsMinorExact(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(Scale))
}

// InRange reports whether |d| is below Limit.
func InRange(d decimal.Decimal) bool {
	return d.Abs().LessThan(Limit)
}

// ToMinor converts d into integer minor units (cents).
// It fails if d carries more precision than the stored scale or is out of range.
func ToMinor(d decimal.Decimal) (int64, error) {
	if !IsMinorExact(d) {
		return 0, fmt.Errorf("amount %s has more than %d fractional digits", d.String(), Scale)
	}
	if !InRange(d) {
		return 0, fmt.Errorf("amount %s exceeds the limit of %s", d.String(), Limit.String())
	}
	return d.Shift(Scale).IntPart(), nil
}

// FromMinor converts integer minor units (cents) back into a decimal amount.
func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -Scale)
}

// Format renders d with exactly two fractional digits.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
