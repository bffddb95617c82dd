package sqlite

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/period"
	"github.com/finbot-dev/finbot/internal/textnorm"
)

const dateFormat = "2006-01-02"

// Amounts are stored as decimal text so sums never pass through binary floats.

type transactionRow struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	UserID         int64  `gorm:"index:idx_tx_user_date;not null"`
	TxDate         string `gorm:"index:idx_tx_user_date;not null"`
	Kind           string `gorm:"not null"`
	Amount         string `gorm:"not null"`
	Category       string
	CategoryKey    string `gorm:"index"`
	Description    string
	CreatedAt      time.Time
	IdempotencyKey string `gorm:"uniqueIndex;not null"`
	RecurringID    int64
}

func (transactionRow) TableName() string { return "transactions" }

func toTransactionRow(tx model.Transaction) transactionRow {
	return transactionRow{
		ID:             tx.ID,
		UserID:         tx.UserID,
		TxDate:         tx.Date.Format(dateFormat),
		Kind:           string(tx.Kind),
		Amount:         tx.Amount.String(),
		Category:       tx.Category,
		CategoryKey:    textnorm.Fold(tx.Category),
		Description:    tx.Description,
		CreatedAt:      tx.CreatedAt,
		IdempotencyKey: tx.IdempotencyKey,
		RecurringID:    tx.RecurringID,
	}
}

func (r transactionRow) model() (model.Transaction, error) {
	date, err := time.Parse(dateFormat, r.TxDate)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("transaction %d: parsing date %q: %w", r.ID, r.TxDate, err)
	}
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("transaction %d: parsing amount %q: %w", r.ID, r.Amount, err)
	}
	return model.Transaction{
		ID:             r.ID,
		UserID:         r.UserID,
		Kind:           model.Kind(r.Kind),
		Amount:         amount,
		Category:       r.Category,
		Description:    r.Description,
		Date:           date,
		CreatedAt:      r.CreatedAt.UTC(),
		IdempotencyKey: r.IdempotencyKey,
		RecurringID:    r.RecurringID,
	}, nil
}

type categoryRow struct {
	ID     int64  `gorm:"primaryKey;autoIncrement"`
	UserID int64  `gorm:"uniqueIndex:idx_category_user_key;not null"`
	Key    string `gorm:"column:name_key;uniqueIndex:idx_category_user_key;not null"`
	Name   string `gorm:"not null"`
}

func (categoryRow) TableName() string { return "categories" }

type goalRow struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	UserID    int64  `gorm:"index;not null"`
	Name      string `gorm:"not null"`
	Target    string `gorm:"not null"`
	Current   string `gorm:"not null"`
	CreatedAt time.Time
}

func (goalRow) TableName() string { return "savings_goals" }

func (r goalRow) model() (model.SavingsGoal, error) {
	target, err := decimal.NewFromString(r.Target)
	if err != nil {
		return model.SavingsGoal{}, fmt.Errorf("goal %d: parsing target %q: %w", r.ID, r.Target, err)
	}
	current, err := decimal.NewFromString(r.Current)
	if err != nil {
		return model.SavingsGoal{}, fmt.Errorf("goal %d: parsing current %q: %w", r.ID, r.Current, err)
	}
	return model.SavingsGoal{
		ID:        r.ID,
		UserID:    r.UserID,
		Name:      r.Name,
		Target:    target,
		Current:   current,
		CreatedAt: r.CreatedAt.UTC(),
	}, nil
}

type budgetRow struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	UserID      int64  `gorm:"uniqueIndex:idx_budget_key;not null"`
	Scope       string `gorm:"uniqueIndex:idx_budget_key;not null"`
	CategoryKey string `gorm:"uniqueIndex:idx_budget_key;not null"`
	Period      string `gorm:"uniqueIndex:idx_budget_key;not null"`
	Category    string
	LimitAmount string `gorm:"not null"`
}

func (budgetRow) TableName() string { return "budgets" }

func (r budgetRow) model() (model.Budget, error) {
	limit, err := decimal.NewFromString(r.LimitAmount)
	if err != nil {
		return model.Budget{}, fmt.Errorf("budget %d: parsing limit %q: %w", r.ID, r.LimitAmount, err)
	}
	p, err := period.Parse(r.Period)
	if err != nil {
		return model.Budget{}, fmt.Errorf("budget %d: %w", r.ID, err)
	}
	return model.Budget{
		UserID:   r.UserID,
		Scope:    model.BudgetScope(r.Scope),
		Category: r.Category,
		Limit:    limit,
		Period:   p,
	}, nil
}

type recurringRow struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	UserID      int64  `gorm:"index;not null"`
	Amount      string `gorm:"not null"`
	DayOfMonth  int    `gorm:"not null"`
	Description string
	Active      bool
}

func (recurringRow) TableName() string { return "recurring_payments" }

func (r recurringRow) model() (model.RecurringPayment, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return model.RecurringPayment{}, fmt.Errorf("recurring payment %d: parsing amount %q: %w", r.ID, r.Amount, err)
	}
	return model.RecurringPayment{
		ID:          r.ID,
		UserID:      r.UserID,
		Amount:      amount,
		DayOfMonth:  r.DayOfMonth,
		Description: r.Description,
		Active:      r.Active,
	}, nil
}

type reminderRow struct {
	ID          int64 `gorm:"primaryKey;autoIncrement"`
	UserID      int64 `gorm:"index;not null"`
	ChatID      int64
	DayOfMonth  int
	Date        string
	Description string
	FiredFor    string `gorm:"not null;default:''"`
	Active      bool
}

func (reminderRow) TableName() string { return "reminders" }

func (r reminderRow) model() (model.Reminder, error) {
	rem := model.Reminder{
		ID:          r.ID,
		UserID:      r.UserID,
		ChatID:      r.ChatID,
		DayOfMonth:  r.DayOfMonth,
		Description: r.Description,
		Active:      r.Active,
	}
	if r.Date != "" {
		d, err := time.Parse(dateFormat, r.Date)
		if err != nil {
			return model.Reminder{}, fmt.Errorf("reminder %d: parsing date %q: %w", r.ID, r.Date, err)
		}
		rem.Date = d
	}
	if r.FiredFor != "" {
		p, err := period.Parse(r.FiredFor)
		if err != nil {
			return model.Reminder{}, fmt.Errorf("reminder %d: %w", r.ID, err)
		}
		rem.FiredFor = p
	}
	return rem, nil
}
