package utils

import (
	"os"

	"github.com/shopspring/decimal"
)

// GetEnvVariable reads an environment variable with a fallback default.
func GetEnvVariable(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// ParseDecimal parses a decimal string, returning zero for empty input.
// Fee and payment amounts travel as strings to avoid float rounding.
func ParseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
