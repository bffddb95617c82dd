package evaluate

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Split is an MTP (Método Traz Paz) allocation in percent. The parts sum to 100.
type Split struct {
	Savings    decimal.Decimal `json:"savings_pct" yaml:"savings"`
	Investment decimal.Decimal `json:"investment_pct" yaml:"investment"`
	Expense    decimal.Decimal `json:"expense_pct" yaml:"expense"`
}

// Default MTP percentages.
var (
	DefaultSavingsPct    = decimal.NewFromInt(20)
	DefaultInvestmentPct = decimal.NewFromInt(10)
	DefaultExpensePct    = decimal.NewFromInt(70)
)

// DefaultSplit returns the 20/10/70 split.
func DefaultSplit() Split {
	return Split{Savings: DefaultSavingsPct, Investment: DefaultInvestmentPct, Expense: DefaultExpensePct}
}

// Validate checks that no part is negative and the parts sum to 100.
func (s Split) Validate() error {
	for name, pct := range map[string]decimal.Decimal{"savings": s.Savings, "investment": s.Investment, "expense": s.Expense} {
		if pct.IsNegative() {
			return fmt.Errorf("mtp %s percentage %s is negative", name, pct)
		}
	}
	if sum := s.Savings.Add(s.Investment).Add(s.Expense); !sum.Equal(hundred) {
		return fmt.Errorf("mtp percentages sum to %s, want 100", sum)
	}
	return nil
}

// Allocation is income divided by a Split.
type Allocation struct {
	Income     decimal.Decimal `json:"income"`
	Savings    decimal.Decimal `json:"savings"`
	Investment decimal.Decimal `json:"investment"`
	Expense    decimal.Decimal `json:"expense"`
	Split      Split           `json:"split"`
}

// Allocate splits income. Savings and investment are rounded to cents and expense
// takes the remainder, so the three parts always add up to income exactly.
// Income that is zero or negative allocates nothing.
func Allocate(income decimal.Decimal, s Split) Allocation {
	a := Allocation{
		Income:     income,
		Savings:    decimal.Zero,
		Investment: decimal.Zero,
		Expense:    decimal.Zero,
		Split:      s,
	}
	if !income.IsPositive() {
		return a
	}
	a.Savings = income.Mul(s.Savings).Div(hundred).Round(2)
	a.Investment = income.Mul(s.Investment).Div(hundred).Round(2)
	a.Expense = income.Sub(a.Savings).Sub(a.Investment)
	return a
}
