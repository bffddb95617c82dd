package ledger

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/period"
	"github.com/finbot-dev/finbot/internal/textnorm"
)

var (
	// ErrNotFound is returned when a keyed row does not exist for the user.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique name already exists for the user.
	ErrDuplicate = errors.New("already exists")
)

// Filter selects a user's transactions. Zero fields match everything.
type Filter struct {
	UserID   int64
	From     time.Time // inclusive calendar date
	To       time.Time // inclusive calendar date
	Kinds    []model.Kind
	Category string // matched case-insensitively
}

// ForPeriod returns a Filter covering one calendar month.
func ForPeriod(userID int64, p period.Period) Filter {
	return Filter{UserID: userID, From: p.Start(), To: p.End()}
}

// Page is a keyset page: rows with ID > AfterID, at most Limit, ordered by ID.
type Page struct {
	AfterID int64
	Limit   int
}

// TransactionStore persists committed transactions.
type TransactionStore interface {
	// InsertTransaction stores tx atomically. When tx.IdempotencyKey already exists the
	// stored row is returned with inserted=false and nothing is written.
	InsertTransaction(ctx context.Context, tx model.Transaction) (saved model.Transaction, inserted bool, err error)
	ListTransactions(ctx context.Context, f Filter, p Page) ([]model.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id int64) (bool, error)
}

// CategoryStore persists custom categories. Built-ins are never stored.
type CategoryStore interface {
	ListCategories(ctx context.Context, userID int64) ([]model.Category, error)
	AddCategory(ctx context.Context, c model.Category) error
	RemoveCategory(ctx context.Context, userID int64, name string) (bool, error)
}

// GoalStore persists savings goals.
type GoalStore interface {
	InsertGoal(ctx context.Context, g model.SavingsGoal) (model.SavingsGoal, error)
	GetGoal(ctx context.Context, userID, id int64) (model.SavingsGoal, error)
	ListGoals(ctx context.Context, userID int64) ([]model.SavingsGoal, error)
	AddGoalProgress(ctx context.Context, userID, id int64, amount decimal.Decimal) (model.SavingsGoal, error)
}

// BudgetStore persists budgets. One row per (user, scope, category, period).
type BudgetStore interface {
	UpsertBudget(ctx context.Context, b model.Budget) error
	ListBudgets(ctx context.Context, userID int64, p period.Period) ([]model.Budget, error)
}

// RecurringStore persists recurring payments.
type RecurringStore interface {
	InsertRecurring(ctx context.Context, r model.RecurringPayment) (model.RecurringPayment, error)
	GetRecurring(ctx context.Context, userID, id int64) (model.RecurringPayment, error)
	ListRecurring(ctx context.Context, userID int64) ([]model.RecurringPayment, error)
}

// ReminderStore persists reminders and their firing stamps.
type ReminderStore interface {
	InsertReminder(ctx context.Context, r model.Reminder) (model.Reminder, error)
	ListReminders(ctx context.Context, userID int64) ([]model.Reminder, error)
	// ReminderOwners lists users that have at least one active reminder.
	ReminderOwners(ctx context.Context) ([]int64, error)
	// MarkReminderFired stamps the reminder with p unless it already carries p.
	// It reports whether this call did the stamping.
	MarkReminderFired(ctx context.Context, userID, id int64, p period.Period) (bool, error)
}

// Purger removes every row a user owns, in every table, in one unit of work.
type Purger interface {
	PurgeUser(ctx context.Context, userID int64) error
}

// Store is the full Ledger Store.
type Store interface {
	TransactionStore
	CategoryStore
	GoalStore
	BudgetStore
	RecurringStore
	ReminderStore
	Purger
	Close() error
}

// Match reports whether tx satisfies f. Stores that filter in memory use it.
func (f Filter) Match(tx model.Transaction) bool {
	if f.UserID != 0 && tx.UserID != f.UserID {
		return false
	}
	if !f.From.IsZero() && tx.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && tx.Date.After(f.To) {
		return false
	}
	if len(f.Kinds) > 0 && !slices.Contains(f.Kinds, tx.Kind) {
		return false
	}
	if f.Category != "" && textnorm.Fold(f.Category) != textnorm.Fold(tx.Category) {
		return false
	}
	return true
}
