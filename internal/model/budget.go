package model

import (
	"github.com/shopspring/decimal"

	"github.com/finbot-dev/finbot/internal/period"
)

// BudgetScope says what a budget limits.
type BudgetScope string

const (
	ScopeMonthlyTotal BudgetScope = "monthly_total"
	ScopeCategory     BudgetScope = "category"
)

// Budget is a spending limit for one period. Category is set iff Scope is ScopeCategory.
type Budget struct {
	UserID   int64
	Scope    BudgetScope
	Category string
	Limit    decimal.Decimal
	Period   period.Period
}
