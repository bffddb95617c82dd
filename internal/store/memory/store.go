package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/finbot-dev/finbot/internal/ledger"
	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/period"
	"github.com/finbot-dev/finbot/internal/textnorm"
)

// Store is an in-memory ledger.Store, safe for concurrent use.
type Store struct {
	mu sync.Mutex

	nextID       int64
	transactions []model.Transaction
	byKey        map[string]int // idempotency key -> index into transactions
	categories   map[int64][]model.Category
	goals        []model.SavingsGoal
	budgets      map[budgetKey]model.Budget
	recurring    []model.RecurringPayment
	reminders    []model.Reminder
}

type budgetKey struct {
	userID   int64
	scope    model.BudgetScope
	category string
	period   period.Period
}

var _ ledger.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		byKey:      make(map[string]int),
		categories: make(map[int64][]model.Category),
		budgets:    make(map[budgetKey]model.Budget),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// InsertTransaction implements ledger.TransactionStore.
func (s *Store) InsertTransaction(_ context.Context, tx model.Transaction) (model.Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.byKey[tx.IdempotencyKey]; ok && tx.IdempotencyKey != "" {
		return s.transactions[i], false, nil
	}
	tx.ID = s.id()
	s.transactions = append(s.transactions, tx)
	if tx.IdempotencyKey != "" {
		s.byKey[tx.IdempotencyKey] = len(s.transactions) - 1
	}
	return tx, true, nil
}

// ListTransactions implements ledger.TransactionStore.
func (s *Store) ListTransactions(_ context.Context, f ledger.Filter, p ledger.Page) ([]model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Transaction
	for _, tx := range s.transactions {
		if tx.ID <= p.AfterID || !f.Match(tx) {
			continue
		}
		out = append(out, tx)
		if p.Limit > 0 && len(out) == p.Limit {
			break
		}
	}
	return out, nil
}

// DeleteTransaction implements ledger.TransactionStore.
func (s *Store) DeleteTransaction(_ context.Context, userID, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.transactions, func(tx model.Transaction) bool {
		return tx.ID == id && tx.UserID == userID
	})
	if i < 0 {
		return false, nil
	}
	s.transactions = slices.Delete(s.transactions, i, i+1)
	s.reindex()
	return true, nil
}

func (s *Store) reindex() {
	s.byKey = make(map[string]int, len(s.transactions))
	for j, tx := range s.transactions {
		if tx.IdempotencyKey != "" {
			s.byKey[tx.IdempotencyKey] = j
		}
	}
}

// Count returns the number of stored transactions.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transactions)
}

// ListCategories implements ledger.CategoryStore.
func (s *Store) ListCategories(_ context.Context, userID int64) ([]model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := slices.Clone(s.categories[userID])
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// AddCategory implements ledger.CategoryStore.
func (s *Store) AddCategory(_ context.Context, c model.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.categories[c.UserID] {
		if textnorm.Fold(existing.Name) == textnorm.Fold(c.Name) {
			return ledger.ErrDuplicate
		}
	}
	s.categories[c.UserID] = append(s.categories[c.UserID], c)
	return nil
}

// RemoveCategory implements ledger.CategoryStore.
func (s *Store) RemoveCategory(_ context.Context, userID int64, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cats := s.categories[userID]
	i := slices.IndexFunc(cats, func(c model.Category) bool {
		return textnorm.Fold(c.Name) == textnorm.Fold(name)
	})
	if i < 0 {
		return false, nil
	}
	s.categories[userID] = slices.Delete(cats, i, i+1)
	return true, nil
}

// InsertGoal implements ledger.GoalStore.
func (s *Store) InsertGoal(_ context.Context, g model.SavingsGoal) (model.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g.ID = s.id()
	s.goals = append(s.goals, g)
	return g, nil
}

// GetGoal implements ledger.GoalStore.
func (s *Store) GetGoal(_ context.Context, userID, id int64) (model.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.goals {
		if g.ID == id && g.UserID == userID {
			return g, nil
		}
	}
	return model.SavingsGoal{}, ledger.ErrNotFound
}

// ListGoals implements ledger.GoalStore.
func (s *Store) ListGoals(_ context.Context, userID int64) ([]model.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.SavingsGoal
	for _, g := range s.goals {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

// AddGoalProgress implements ledger.GoalStore.
func (s *Store) AddGoalProgress(_ context.Context, userID, id int64, amount decimal.Decimal) (model.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, g := range s.goals {
		if g.ID == id && g.UserID == userID {
			s.goals[i].Current = g.Current.Add(amount)
			return s.goals[i], nil
		}
	}
	return model.SavingsGoal{}, ledger.ErrNotFound
}

// UpsertBudget implements ledger.BudgetStore.
func (s *Store) UpsertBudget(_ context.Context, b model.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.budgets[budgetKey{b.UserID, b.Scope, textnorm.Fold(b.Category), b.Period}] = b
	return nil
}

// ListBudgets implements ledger.BudgetStore.
func (s *Store) ListBudgets(_ context.Context, userID int64, p period.Period) ([]model.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Budget
	for k, b := range s.budgets {
		if k.userID == userID && k.period == p {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Scope != out[j].Scope {
			return out[i].Scope > out[j].Scope
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

// InsertRecurring implements ledger.RecurringStore.
func (s *Store) InsertRecurring(_ context.Context, r model.RecurringPayment) (model.RecurringPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.id()
	s.recurring = append(s.recurring, r)
	return r, nil
}

// GetRecurring implements ledger.RecurringStore.
func (s *Store) GetRecurring(_ context.Context, userID, id int64) (model.RecurringPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.recurring {
		if r.ID == id && r.UserID == userID {
			return r, nil
		}
	}
	return model.RecurringPayment{}, ledger.ErrNotFound
}

// ListRecurring implements ledger.RecurringStore.
func (s *Store) ListRecurring(_ context.Context, userID int64) ([]model.RecurringPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.RecurringPayment
	for _, r := range s.recurring {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

// InsertReminder implements ledger.ReminderStore.
func (s *Store) InsertReminder(_ context.Context, r model.Reminder) (model.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = s.id()
	s.reminders = append(s.reminders, r)
	return r, nil
}

// ListReminders implements ledger.ReminderStore.
func (s *Store) ListReminders(_ context.Context, userID int64) ([]model.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Reminder
	for _, r := range s.reminders {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

// ReminderOwners implements ledger.ReminderStore.
func (s *Store) ReminderOwners(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []int64
	for _, r := range s.reminders {
		if r.Active && !slices.Contains(out, r.UserID) {
			out = append(out, r.UserID)
		}
	}
	slices.Sort(out)
	return out, nil
}

// MarkReminderFired implements ledger.ReminderStore.
func (s *Store) MarkReminderFired(_ context.Context, userID, id int64, p period.Period) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.reminders {
		if r.ID == id && r.UserID == userID {
			if r.FiredFor == p {
				return false, nil
			}
			s.reminders[i].FiredFor = p
			return true, nil
		}
	}
	return false, ledger.ErrNotFound
}

// PurgeUser implements ledger.Purger.
func (s *Store) PurgeUser(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions = slices.DeleteFunc(s.transactions, func(tx model.Transaction) bool { return tx.UserID == userID })
	s.reindex()
	delete(s.categories, userID)
	s.goals = slices.DeleteFunc(s.goals, func(g model.SavingsGoal) bool { return g.UserID == userID })
	for k := range s.budgets {
		if k.userID == userID {
			delete(s.budgets, k)
		}
	}
	s.recurring = slices.DeleteFunc(s.recurring, func(r model.RecurringPayment) bool { return r.UserID == userID })
	s.reminders = slices.DeleteFunc(s.reminders, func(r model.Reminder) bool { return r.UserID == userID })
	return nil
}

// Close implements ledger.Store.
func (s *Store) Close() error { return nil }
