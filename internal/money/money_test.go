package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"45", "45"},
		{"12,50", "12.50"},
		{"12.50", "12.50"},
		{"R$12,50", "12.50"},
		{"r$ 12.50", "12.50"},
		{"$7", "7"},
		{"€3,5", "3.5"},
		{"1.234,56", "1234.56"},
		{"1,234.56", "1234.56"},
		{"1.000.000", "1000000"},
		{"1,000,000", "1000000"},
		{"1.500", "1.5"},
		{"1,500", "1.5"},
		{"45reais", "45"},
		{"0,01", "0.01"},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err, "Parse(%q)", tt.in)
		assert.True(t, dec(tt.want).Equal(got), "Parse(%q) = %s, want %s", tt.in, got, tt.want)
	}
}

func TestParseCommaAndDotAgree(t *testing.T) {
	pairs := [][2]string{
		{"12,50", "12.50"},
		{"0,99", "0.99"},
		{"100,1", "100.1"},
		{"1.234,56", "1,234.56"},
		{"7,00", "7.00"},
	}
	for _, p := range pairs {
		a, err := Parse(p[0])
		require.NoError(t, err)
		b, err := Parse(p[1])
		require.NoError(t, err)
		assert.True(t, a.Equal(b), "%q and %q differ: %s vs %s", p[0], p[1], a, b)
	}
}

func TestParseRejects(t *testing.T) {
	bad := []string{
		"",
		"R$",
		"0",
		"0,00",
		"-5",
		"12,345,6",
		"1.2.3,4,5",
		"12,3,4",
		"1,2345.6",
		"12.505",
		"abc",
		"12a",
		",50",
		"50,",
		"1..2",
		"1.234,",
		"1,234.",
	}
	for _, in := range bad {
		_, err := Parse(in)
		assert.Error(t, err, "Parse(%q) should fail", in)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "R$ 0,00"},
		{"45", "R$ 45,00"},
		{"1234.5", "R$ 1.234,50"},
		{"1000000", "R$ 1.000.000,00"},
		{"-12.3", "-R$ 12,30"},
		{"999", "R$ 999,00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(dec(tt.in)), "Format(%s)", tt.in)
	}
}

func TestHasDigits(t *testing.T) {
	assert.True(t, HasDigits("R$45"))
	assert.False(t, HasDigits("mercado"))
}
