package decimal

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is decimal zero
var Zero = decimal.Zero

var hundred = decimal.NewFromInt(100)

// Parse reads an amount written with either '.' or ',' as decimal separator.
// Spaces used as thousand separators are ignored.
func Parse(s string) (decimal.Decimal, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\t':
			return -1
		case ',':
			return '.'
		}
		return r
	}, s)
	return decimal.NewFromString(s)
}

// ParseOrZero parses s, returning zero when it is empty or malformed
func ParseOrZero(s string) decimal.Decimal {
	if v, err := Parse(s); err == nil {
		return v
	}
	return Zero
}

// Format renders d with the given number of decimals and ',' as separator
func Format(d decimal.Decimal, places int32) string {
	return strings.Replace(d.StringFixed(places), ".", ",", 1)
}

// FormatAmount re-renders amount text with ',' as separator, keeping its scale.
// Text that is not a number is returned unchanged.
func FormatAmount(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	d, err := Parse(s)
	if err != nil {
		return s
	}
	places := int32(0)
	if exp := d.Exponent(); exp < 0 {
		places = -exp
	}
	return Format(d, places)
}

// Dotted converts amount text to '.' separated form for systems that need it
func Dotted(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
}

// NormalizeRate strips trailing zeros from a percentage, e.g. "25.50" -> "25.5"
func NormalizeRate(s string) string {
	d, err := Parse(s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return d.String()
}

// CalculateVAT computes amount * rate / 100 rounded to cents
func CalculateVAT(amount, ratePercent decimal.Decimal) decimal.Decimal {
	if ratePercent.IsZero() {
		return Zero
	}
	return amount.Mul(ratePercent).Div(hundred).Round(2)
}

// Sum sums a slice of decimals
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}

// IsPositive returns true if decimal is greater than zero
func IsPositive(d decimal.Decimal) bool {
	return d.GreaterThan(Zero)
}
