package upto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUSDCAmount(t *testing.T) {
	cases := []struct {
		name  string
		price string
		want  string
	}{
		{"one dollar", "1.00", "1000000"},
		{"dollar sign prefix", "$1.00", "1000000"},
		{"thousands separator", "$1,000.00", "1000000000"},
		{"sub-cent price", "0.0001", "100"},
		{"zero", "0", "0"},
		{"whole dollars", "5", "5000000"},
		{"whole-cent price near float boundary", "0.29", "290000"},
		{"whole-cent price with fractional dollars", "19.99", "19990000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseUSDCAmount(tc.price)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseUSDCAmountRejectsInvalid(t *testing.T) {
	cases := []string{"", "-1.00", "not a number", "NaN", "Inf"}
	for _, price := range cases {
		t.Run(price, func(t *testing.T) {
			_, err := ParseUSDCAmount(price)
			assert.Error(t, err)
		})
	}
}

func TestFormatUSDCAmount(t *testing.T) {
	cases := []struct {
		units string
		want  string
	}{
		{"1000000", "1.00"},
		{"43700", "0.04"},
		{"0", "0.00"},
		{"999999", "1.00"},
	}
	for _, tc := range cases {
		t.Run(tc.units, func(t *testing.T) {
			got, err := FormatUSDCAmount(tc.units)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFormatUSDCAmountRejectsInvalid(t *testing.T) {
	_, err := FormatUSDCAmount("-100")
	assert.Error(t, err)

	_, err = FormatUSDCAmount("not a number")
	assert.Error(t, err)
}

func TestParseFormatRoundTripForWholeCentAmounts(t *testing.T) {
	prices := []string{"0.01", "0.29", "1.00", "5.50", "19.99", "100.00"}
	for _, price := range prices {
		t.Run(price, func(t *testing.T) {
			units, err := ParseUSDCAmount(price)
			require.NoError(t, err)
			formatted, err := FormatUSDCAmount(units)
			require.NoError(t, err)
			assert.Equal(t, price, formatted)
		})
	}
}
