package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SavingsGoal tracks saved money toward a target.
type SavingsGoal struct {
	ID        int64
	UserID    int64
	Name      string
	Target    decimal.Decimal
	Current   decimal.Decimal
	CreatedAt time.Time
}

// PctComplete returns Current/Target as a percentage rounded to 2 places.
func (g SavingsGoal) PctComplete() decimal.Decimal {
	if !g.Target.IsPositive() {
		return decimal.Zero
	}
	return g.Current.Div(g.Target).Mul(decimal.NewFromInt(100)).Round(2)
}

// Complete reports whether the goal reached its target.
func (g SavingsGoal) Complete() bool {
	return g.Target.IsPositive() && g.Current.GreaterThanOrEqual(g.Target)
}

// Remaining returns how much is left to save, never negative.
func (g SavingsGoal) Remaining() decimal.Decimal {
	left := g.Target.Sub(g.Current)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}
