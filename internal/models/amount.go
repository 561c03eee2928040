package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Balances are held as int64 minor units (cents). Decimal values exist only at
// the presentation boundary; converting there keeps repeated additions and
// subtractions free of rounding drift.
const CurrencyExponent = 2

var minorUnitsPerUnit = decimal.New(1, CurrencyExponent)

// ParseDecimal parses free-text input into a decimal amount. Unparsable text is
// an ErrInvalidAmount, distinct from business rejections so presentation layers
// can show a "not a number" message and re-prompt.
func ParseDecimal(input string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("%w: empty input", ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, trimmed)
	}

	return d, nil
}

// ToMinorUnits converts a decimal amount to minor units. Amounts finer than the
// currency granularity are rejected rather than silently rounded.
func ToMinorUnits(d decimal.Decimal) (int64, error) {
	if d.Exponent() < -CurrencyExponent {
		// Re-check after normalization so "1.10" (exponent -2) and "1.100"
		// (exponent -3) are treated the same.
		if !d.Equal(d.Round(CurrencyExponent)) {
			return 0, fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, CurrencyExponent)
		}
	}

	scaled := d.Mul(minorUnitsPerUnit)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: more than %d decimal places", ErrInvalidAmount, CurrencyExponent)
	}

	// IntPart truncates silently once the value leaves the int64 range, so
	// verify the round trip before trusting it.
	minor := scaled.IntPart()
	if !decimal.NewFromInt(minor).Equal(scaled) {
		return 0, fmt.Errorf("%w: amount out of range", ErrInvalidAmount)
	}
	return minor, nil
}

// FromMinorUnits converts minor units back to a display decimal.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -CurrencyExponent)
}

// ParseAmount parses free-text input straight to minor units.
func ParseAmount(input string) (int64, error) {
	d, err := ParseDecimal(input)
	if err != nil {
		return 0, err
	}
	return ToMinorUnits(d)
}
