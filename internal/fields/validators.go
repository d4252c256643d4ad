// Package fields validates and normalizes the raw strings extracted from a
// payment receipt, and decodes the house number hidden in the cents of the
// paid amount.
package fields

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// House number range accepted by default. Override via ValidatorConfig.
const (
	DefaultMinHouse = 1
	DefaultMaxHouse = 66
)

// ValidatorConfig holds the configurable validation bounds
type ValidatorConfig struct {
	MinHouse int
	MaxHouse int
}

// DefaultConfig returns the standard validation bounds
func DefaultConfig() ValidatorConfig {
	return ValidatorConfig{MinHouse: DefaultMinHouse, MaxHouse: DefaultMaxHouse}
}

// ValidateAmount checks that raw parses as a decimal strictly greater than
// zero. The offending input is echoed in the error so the user sees what
// was rejected.
func ValidateAmount(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("amount is empty: %q", raw)
	}

	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount is not a valid number: %q", raw)
	}

	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be greater than zero: %q", raw)
	}

	return amount, nil
}

// ValidateDate checks that raw is a usable payment date. Receipts carry
// dates in a handful of layouts; anything non-blank that is not pure
// whitespace is accepted as-is, normalization to a time.Time happens at
// commit where the layout list lives.
func ValidateDate(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("payment date is empty: %q", raw)
	}
	return trimmed, nil
}

// ValidateTime checks that raw is a usable transaction time
func ValidateTime(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("transaction time is empty: %q", raw)
	}
	return trimmed, nil
}

// ValidateReference normalizes the free-text bank reference. It is the only
// optional field: blank is valid and normalizes to the empty string.
func ValidateReference(raw string) (string, error) {
	return strings.TrimSpace(raw), nil
}

// ValidateHouseNumber checks that raw is an integer within the configured
// range.
func (c ValidatorConfig) ValidateHouseNumber(raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("house number is empty: %q", raw)
	}

	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("house number is not a whole number: %q", raw)
	}

	if n < c.MinHouse || n > c.MaxHouse {
		return 0, fmt.Errorf("house number %d is outside the valid range %d-%d", n, c.MinHouse, c.MaxHouse)
	}

	return n, nil
}
