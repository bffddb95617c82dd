package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var currencyPrefixes = []string{"r$", "us$", "brl", "$", "€", "£"}

var hundred = decimal.NewFromInt(100)

// HasDigits reports whether s contains at least one ASCII digit.
func HasDigits(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

// Parse converts a money token such as "12,50", "R$12.50", "1.234,56" or "1,234.56" into a decimal.
// A lone separator is always decimal. A repeated separator is thousands grouping.
// With both present, the last one is decimal.
func Parse(token string) (decimal.Decimal, error) {
	s := stripCurrency(strings.ToLower(strings.TrimSpace(token)))
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount %q", token)
	}
	if strings.HasPrefix(s, "-") {
		return decimal.Zero, fmt.Errorf("amount %q must be positive", token)
	}

	normalized, err := normalizeSeparators(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q: %w", token, err)
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", token, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount %q must be positive", token)
	}
	if !IsCents(d) {
		return decimal.Zero, fmt.Errorf("amount %q has more than 2 decimal places", token)
	}
	return d, nil
}

// IsCents reports whether d has at most two decimal places.
func IsCents(d decimal.Decimal) bool {
	return d.Mul(hundred).Equal(d.Mul(hundred).Floor())
}

// Format renders d in Brazilian notation, e.g. "R$ 1.234,56".
func Format(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	fixed := d.StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%sR$ %s,%s", sign, b.String(), frac)
}

func stripCurrency(s string) string {
	for _, p := range currencyPrefixes {
		s = strings.TrimSpace(strings.TrimPrefix(s, p))
		s = strings.TrimSpace(strings.TrimSuffix(s, p))
	}
	s = strings.TrimSuffix(s, "reais")
	return strings.TrimSpace(s)
}

func normalizeSeparators(s string) (string, error) {
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' && r != ',' {
			return "", fmt.Errorf("unexpected character %q", r)
		}
	}

	dots := strings.Count(s, ".")
	commas := strings.Count(s, ",")

	switch {
	case dots == 0 && commas == 0:
		return s, nil
	case dots > 0 && commas > 0:
		decSep, groupSep := ",", "."
		if strings.LastIndex(s, ".") > strings.LastIndex(s, ",") {
			decSep, groupSep = ".", ","
		}
		if strings.Count(s, decSep) > 1 {
			return "", fmt.Errorf("repeated decimal separator")
		}
		intPart, frac, _ := strings.Cut(s, decSep)
		if frac == "" {
			return "", fmt.Errorf("dangling separator")
		}
		if err := checkGroups(intPart, groupSep); err != nil {
			return "", err
		}
		return strings.ReplaceAll(intPart, groupSep, "") + "." + frac, nil
	default:
		sep := "."
		n := dots
		if commas > 0 {
			sep, n = ",", commas
		}
		if n == 1 {
			intPart, frac, _ := strings.Cut(s, sep)
			if intPart == "" || frac == "" {
				return "", fmt.Errorf("dangling separator")
			}
			return intPart + "." + frac, nil
		}
		if err := checkGroups(s, sep); err != nil {
			return "", err
		}
		return strings.ReplaceAll(s, sep, ""), nil
	}
}

// checkGroups verifies thousands grouping such as "1.234.567".
func checkGroups(s, sep string) error {
	groups := strings.Split(s, sep)
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return fmt.Errorf("malformed digit grouping")
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return fmt.Errorf("malformed digit grouping")
		}
	}
	return nil
}
