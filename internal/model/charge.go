package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Charge parsing errors.
var (
	ErrMalformedCharge = errors.New("malformed charge amount")
	ErrNegativeCharge  = errors.New("charge amount cannot be negative")
)

// ParseCharge parses a formatted charge such as "$1,234.50" into a decimal.
// Currency symbols, thousands separators and whitespace are stripped first.
func ParseCharge(text string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', ',', ' ', '\t', '\u00a0':
			return -1
		}
		return r
	}, text)

	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrMalformedCharge)
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrMalformedCharge, text)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNegativeCharge, text)
	}
	return amount, nil
}

// FormatCharge renders an amount the way submissions write it: "$29.00".
func FormatCharge(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}

// NormalizeCharge parses and re-formats a charge in one step.
func NormalizeCharge(text string) (string, error) {
	amount, err := ParseCharge(text)
	if err != nil {
		return "", err
	}
	return FormatCharge(amount), nil
}
