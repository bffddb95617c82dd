package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies a ledger transaction.
type Kind string

const (
	KindIncome      Kind = "income"
	KindExpense     Kind = "expense"
	KindFixedCost   Kind = "fixed_cost"
	KindMealVoucher Kind = "meal_voucher"
)

// Kinds lists every transaction kind in display order.
var Kinds = []Kind{KindIncome, KindExpense, KindFixedCost, KindMealVoucher}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindIncome, KindExpense, KindFixedCost, KindMealVoucher:
		return true
	}
	return false
}

// IsSpend reports whether k counts toward spending.
func (k Kind) IsSpend() bool {
	return k == KindExpense || k == KindFixedCost || k == KindMealVoucher
}

// DefaultCategory is the category recorded for kinds that are not asked for one.
func (k Kind) DefaultCategory() string {
	switch k {
	case KindIncome:
		return "Receita"
	case KindFixedCost:
		return "Gastos Fixos"
	case KindMealVoucher:
		return "Vale-Alimentação"
	}
	return ""
}

// Transaction is one committed ledger row.
type Transaction struct {
	ID             int64
	UserID         int64
	Kind           Kind
	Amount         decimal.Decimal // always > 0, at most 2 decimal places
	Category       string
	Description    string
	Date           time.Time // calendar date, midnight UTC
	CreatedAt      time.Time
	IdempotencyKey string // unique; a retried commit with the same key never inserts twice
	RecurringID    int64  // 0 unless materialized from a recurring payment
}
