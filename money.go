package upto

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// USDCDecimals is the number of decimals USDC uses on every supported network.
const USDCDecimals = 6

// ParseUSDCAmount converts a dollar-denominated price string into a decimal
// string of smallest USDC units. It strips a leading "$" and any thousands
// separators, and rejects negative or non-numeric input. This is one of the
// two places in this module permitted to cross through floating point (see
// FormatUSDCAmount for the other); everywhere else, amounts are compared and
// clamped as arbitrary-precision integers.
func ParseUSDCAmount(price string) (string, error) {
	cleaned := strings.TrimSpace(price)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return "", fmt.Errorf("empty price")
	}

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return "", fmt.Errorf("invalid price %q: %w", price, err)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "", fmt.Errorf("invalid price %q: not a finite number", price)
	}
	if amount < 0 {
		return "", fmt.Errorf("invalid price %q: negative amount", price)
	}

	scale := new(big.Float).SetInt(pow10(USDCDecimals))
	scaled := new(big.Float).SetPrec(256).Mul(big.NewFloat(amount), scale)
	scaled.Add(scaled, big.NewFloat(0.5))
	units, _ := scaled.Int(nil)
	return units.String(), nil
}

// FormatUSDCAmount converts a decimal string of smallest USDC units into a
// dollar string rounded to the nearest cent for display.
func FormatUSDCAmount(units string) (string, error) {
	value, ok := new(big.Int).SetString(units, 10)
	if !ok {
		return "", fmt.Errorf("invalid smallest-unit amount %q", units)
	}
	if value.Sign() < 0 {
		return "", fmt.Errorf("invalid smallest-unit amount %q: negative", units)
	}

	scale := pow10(USDCDecimals)
	dollars := new(big.Float).Quo(new(big.Float).SetInt(value), new(big.Float).SetInt(scale))
	cents := new(big.Float).Mul(dollars, big.NewFloat(100))
	roundedCents, _ := cents.Float64()
	return fmt.Sprintf("%.2f", math.Round(roundedCents)/100), nil
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
