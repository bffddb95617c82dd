package ledger

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finbot-dev/finbot/internal/apperr"
	"github.com/finbot-dev/finbot/internal/categories"
	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/money"
	"github.com/finbot-dev/finbot/internal/period"
	"github.com/finbot-dev/finbot/internal/textnorm"
)

// DefaultPageSize is the number of transactions fetched per Query round trip.
const DefaultPageSize = 200

// Service provides business rules on top of a Store.
type Service struct {
	store    Store
	now      func() time.Time
	pageSize int
}

// NewService creates a ledger Service.
func NewService(store Store, now func() time.Time) *Service {
	return &Service{store: store, now: now, pageSize: DefaultPageSize}
}

// WithPageSize returns a copy of the service that pages Query results by n.
func (s *Service) WithPageSize(n int) *Service {
	cp := *s
	cp.pageSize = n
	return &cp
}

// Store returns the underlying store.
func (s *Service) Store() Store {
	return s.store
}

// Commit validates and persists a transaction. Committing twice with the same
// IdempotencyKey returns the first row and writes nothing.
func (s *Service) Commit(ctx context.Context, tx model.Transaction) (model.Transaction, error) {
	if tx.IdempotencyKey == "" {
		tx.IdempotencyKey = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = s.now().UTC()
	}
	if tx.Category == "" {
		tx.Category = tx.Kind.DefaultCategory()
	}
	tx.Category = strings.TrimSpace(tx.Category)
	tx.Description = strings.TrimSpace(tx.Description)
	if !tx.Date.IsZero() {
		tx.Date = period.DateOf(tx.Date)
	}

	if verrs := Validate(tx); len(verrs) > 0 {
		return model.Transaction{}, &apperr.Error{Kind: apperr.ValidationFailure, Op: "ledger.Commit", Err: verrs}
	}

	saved, _, err := s.store.InsertTransaction(ctx, tx)
	if err != nil {
		return model.Transaction{}, apperr.Wrap(apperr.StorageFailure, "ledger.Commit", err)
	}
	return saved, nil
}

// DeleteTransaction removes one of the user's transactions.
func (s *Service) DeleteTransaction(ctx context.Context, userID, id int64) error {
	ok, err := s.store.DeleteTransaction(ctx, userID, id)
	if err != nil {
		return apperr.Wrap(apperr.StorageFailure, "ledger.DeleteTransaction", err)
	}
	if !ok {
		return apperr.New(apperr.ValidationFailure, "ledger.DeleteTransaction", fmt.Sprintf("unknown transaction %d", id))
	}
	return nil
}

// Query returns the transactions matching f, fetched lazily page by page.
// Each range over the sequence starts again from the first page.
func (s *Service) Query(ctx context.Context, f Filter) iter.Seq2[model.Transaction, error] {
	return func(yield func(model.Transaction, error) bool) {
		page := Page{Limit: s.pageSize}
		for {
			rows, err := s.store.ListTransactions(ctx, f, page)
			if err != nil {
				yield(model.Transaction{}, apperr.Wrap(apperr.StorageFailure, "ledger.Query", err))
				return
			}
			for _, tx := range rows {
				if !yield(tx, nil) {
					return
				}
			}
			if len(rows) < page.Limit {
				return
			}
			page.AfterID = rows[len(rows)-1].ID
		}
	}
}

// Collect drains Query into a slice.
func (s *Service) Collect(ctx context.Context, f Filter) ([]model.Transaction, error) {
	var out []model.Transaction
	for tx, err := range s.Query(ctx, f) {
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// ListCategories returns the built-in categories followed by the user's custom ones.
func (s *Service) ListCategories(ctx context.Context, userID int64) ([]model.Category, error) {
	custom, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageFailure, "ledger.ListCategories", err)
	}
	all := categories.Builtin()
	for i := range all {
		all[i].UserID = userID
	}
	return append(all, custom...), nil
}

// Vocabulary returns the user's category vocabulary.
func (s *Service) Vocabulary(ctx context.Context, userID int64) (*categories.Vocabulary, error) {
	cats, err := s.ListCategories(ctx, userID)
	if err != nil {
		return nil, err
	}
	return categories.NewVocabulary(cats), nil
}

// AddCategory creates a custom category.
func (s *Service) AddCategory(ctx context.Context, userID int64, name string) (model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Category{}, apperr.New(apperr.ValidationFailure, "ledger.AddCategory", "category name is required")
	}
	vocab, err := s.Vocabulary(ctx, userID)
	if err != nil {
		return model.Category{}, err
	}
	if existing, ok := vocab.Canonical(name); ok {
		return model.Category{}, apperr.New(apperr.ValidationFailure, "ledger.AddCategory", fmt.Sprintf("category %q already exists", existing))
	}

	c := model.Category{UserID: userID, Name: name, IsCustom: true}
	if err := s.store.AddCategory(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return model.Category{}, apperr.New(apperr.ValidationFailure, "ledger.AddCategory", fmt.Sprintf("category %q already exists", name))
		}
		return model.Category{}, apperr.Wrap(apperr.StorageFailure, "ledger.AddCategory", err)
	}
	return c, nil
}

// RemoveCategory deletes a custom category. Built-ins cannot be removed.
func (s *Service) RemoveCategory(ctx context.Context, userID int64, name string) error {
	if categories.IsBuiltin(name) {
		return apperr.New(apperr.ValidationFailure, "ledger.RemoveCategory", fmt.Sprintf("category %q is built in", name))
	}
	ok, err := s.store.RemoveCategory(ctx, userID, name)
	if err != nil {
		return apperr.Wrap(apperr.StorageFailure, "ledger.RemoveCategory", err)
	}
	if !ok {
		return apperr.New(apperr.ValidationFailure, "ledger.RemoveCategory", fmt.Sprintf("unknown category %q", name))
	}
	return nil
}

// AddGoal creates a savings goal with nothing saved yet.
func (s *Service) AddGoal(ctx context.Context, userID int64, name string, target decimal.Decimal) (model.SavingsGoal, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.SavingsGoal{}, apperr.New(apperr.ValidationFailure, "ledger.AddGoal", "goal name is required")
	}
	if err := checkAmount("ledger.AddGoal", target); err != nil {
		return model.SavingsGoal{}, err
	}
	g, err := s.store.InsertGoal(ctx, model.SavingsGoal{
		UserID:    userID,
		Name:      name,
		Target:    target,
		Current:   decimal.Zero,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return model.SavingsGoal{}, apperr.Wrap(apperr.StorageFailure, "ledger.AddGoal", err)
	}
	return g, nil
}

// AddGoalProgress adds a positive amount to a goal.
func (s *Service) AddGoalProgress(ctx context.Context, userID, goalID int64, amount decimal.Decimal) (model.SavingsGoal, error) {
	if err := checkAmount("ledger.AddGoalProgress", amount); err != nil {
		return model.SavingsGoal{}, err
	}
	g, err := s.store.AddGoalProgress(ctx, userID, goalID, amount)
	if errors.Is(err, ErrNotFound) {
		return model.SavingsGoal{}, apperr.New(apperr.ValidationFailure, "ledger.AddGoalProgress", fmt.Sprintf("unknown goal %d", goalID))
	}
	if err != nil {
		return model.SavingsGoal{}, apperr.Wrap(apperr.StorageFailure, "ledger.AddGoalProgress", err)
	}
	return g, nil
}

// ListGoals returns the user's goals.
func (s *Service) ListGoals(ctx context.Context, userID int64) ([]model.SavingsGoal, error) {
	goals, err := s.store.ListGoals(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageFailure, "ledger.ListGoals", err)
	}
	return goals, nil
}

// SetBudget creates or replaces the budget for (scope, category, period).
func (s *Service) SetBudget(ctx context.Context, userID int64, scope model.BudgetScope, category string, limit decimal.Decimal, p period.Period) (model.Budget, error) {
	if err := checkAmount("ledger.SetBudget", limit); err != nil {
		return model.Budget{}, err
	}
	b := model.Budget{UserID: userID, Scope: scope, Limit: limit, Period: p}
	switch scope {
	case model.ScopeMonthlyTotal:
	case model.ScopeCategory:
		vocab, err := s.Vocabulary(ctx, userID)
		if err != nil {
			return model.Budget{}, err
		}
		name, ok := vocab.Canonical(category)
		if !ok {
			return model.Budget{}, apperr.New(apperr.ValidationFailure, "ledger.SetBudget", fmt.Sprintf("unknown category %q", category))
		}
		b.Category = name
	default:
		return model.Budget{}, apperr.New(apperr.ValidationFailure, "ledger.SetBudget", fmt.Sprintf("unknown scope %q", scope))
	}
	if err := s.store.UpsertBudget(ctx, b); err != nil {
		return model.Budget{}, apperr.Wrap(apperr.StorageFailure, "ledger.SetBudget", err)
	}
	return b, nil
}

// ListBudgets returns the budgets active in p.
func (s *Service) ListBudgets(ctx context.Context, userID int64, p period.Period) ([]model.Budget, error) {
	budgets, err := s.store.ListBudgets(ctx, userID, p)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageFailure, "ledger.ListBudgets", err)
	}
	return budgets, nil
}

// AddRecurring registers a monthly payment due on day (1-31).
func (s *Service) AddRecurring(ctx context.Context, userID int64, amount decimal.Decimal, day int, description string) (model.RecurringPayment, error) {
	if err := checkAmount("ledger.AddRecurring", amount); err != nil {
		return model.RecurringPayment{}, err
	}
	if err := checkDay("ledger.AddRecurring", day); err != nil {
		return model.RecurringPayment{}, err
	}
	r, err := s.store.InsertRecurring(ctx, model.RecurringPayment{
		UserID:      userID,
		Amount:      amount,
		DayOfMonth:  day,
		Description: strings.TrimSpace(description),
		Active:      true,
	})
	if err != nil {
		return model.RecurringPayment{}, apperr.Wrap(apperr.StorageFailure, "ledger.AddRecurring", err)
	}
	return r, nil
}

// ListRecurring returns the user's recurring payments.
func (s *Service) ListRecurring(ctx context.Context, userID int64) ([]model.RecurringPayment, error) {
	rs, err := s.store.ListRecurring(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageFailure, "ledger.ListRecurring", err)
	}
	return rs, nil
}

// MaterializeRecurring commits a recurring payment as a fixed cost for p.
// It runs at most once per payment and period.
func (s *Service) MaterializeRecurring(ctx context.Context, userID, recurringID int64, p period.Period) (model.Transaction, error) {
	r, err := s.store.GetRecurring(ctx, userID, recurringID)
	if errors.Is(err, ErrNotFound) {
		return model.Transaction{}, apperr.New(apperr.ValidationFailure, "ledger.MaterializeRecurring", fmt.Sprintf("unknown recurring payment %d", recurringID))
	}
	if err != nil {
		return model.Transaction{}, apperr.Wrap(apperr.StorageFailure, "ledger.MaterializeRecurring", err)
	}
	return s.Commit(ctx, model.Transaction{
		UserID:         userID,
		Kind:           model.KindFixedCost,
		Amount:         r.Amount,
		Description:    r.Description,
		Date:           p.ClampDay(r.DayOfMonth),
		RecurringID:    r.ID,
		IdempotencyKey: fmt.Sprintf("recurring:%d:%s", r.ID, p),
	})
}

// AddReminder registers a monthly reminder (day 1-31) or, when date is set, a one-off.
func (s *Service) AddReminder(ctx context.Context, userID, chatID int64, day int, date time.Time, description string) (model.Reminder, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return model.Reminder{}, apperr.New(apperr.ValidationFailure, "ledger.AddReminder", "reminder description is required")
	}
	r := model.Reminder{UserID: userID, ChatID: chatID, Description: description, Active: true}
	if date.IsZero() {
		if err := checkDay("ledger.AddReminder", day); err != nil {
			return model.Reminder{}, err
		}
		r.DayOfMonth = day
	} else {
		r.Date = period.DateOf(date)
	}
	saved, err := s.store.InsertReminder(ctx, r)
	if err != nil {
		return model.Reminder{}, apperr.Wrap(apperr.StorageFailure, "ledger.AddReminder", err)
	}
	return saved, nil
}

// ListReminders returns the user's reminders.
func (s *Service) ListReminders(ctx context.Context, userID int64) ([]model.Reminder, error) {
	rs, err := s.store.ListReminders(ctx, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageFailure, "ledger.ListReminders", err)
	}
	return rs, nil
}

// ReminderOwners lists users with active reminders.
func (s *Service) ReminderOwners(ctx context.Context) ([]int64, error) {
	ids, err := s.store.ReminderOwners(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.StorageFailure, "ledger.ReminderOwners", err)
	}
	return ids, nil
}

// MarkReminderFired stamps a reminder for p, reporting whether this call stamped it.
func (s *Service) MarkReminderFired(ctx context.Context, userID, id int64, p period.Period) (bool, error) {
	ok, err := s.store.MarkReminderFired(ctx, userID, id, p)
	if err != nil {
		return false, apperr.Wrap(apperr.StorageFailure, "ledger.MarkReminderFired", err)
	}
	return ok, nil
}

// Reset deletes everything the user has stored. Other users are untouched.
func (s *Service) Reset(ctx context.Context, userID int64) error {
	if err := s.store.PurgeUser(ctx, userID); err != nil {
		return apperr.Wrap(apperr.StorageFailure, "ledger.Reset", err)
	}
	return nil
}

// SameCategory reports whether two category names fold to the same key.
func SameCategory(a, b string) bool {
	return textnorm.Fold(a) == textnorm.Fold(b)
}

func checkAmount(op string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return apperr.New(apperr.ValidationFailure, op, fmt.Sprintf("amount %s must be positive", d))
	}
	if !money.IsCents(d) {
		return apperr.New(apperr.ValidationFailure, op, fmt.Sprintf("amount %s has more than 2 decimal places", d))
	}
	return nil
}

func checkDay(op string, day int) error {
	if day < 1 || day > 31 {
		return apperr.New(apperr.ValidationFailure, op, fmt.Sprintf("day %d must be between 1 and 31", day))
	}
	return nil
}
