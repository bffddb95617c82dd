// Package ledgertest holds the behavioural contract every ledger.Store must satisfy.
package ledgertest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbot-dev/finbot/internal/ledger"
	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/period"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) ledger.Store

// Run exercises store against the full contract.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s ledger.Store)
	}{
		{"InsertIsIdempotent", testInsertIdempotent},
		{"ConcurrentInsertSameKey", testConcurrentInsert},
		{"ListFilterAndPage", testListFilterAndPage},
		{"DeleteTransaction", testDeleteTransaction},
		{"Categories", testCategories},
		{"Goals", testGoals},
		{"Budgets", testBudgets},
		{"Recurring", testRecurring},
		{"Reminders", testReminders},
		{"ReminderFiresOnce", testReminderFiresOnce},
		{"PurgeUser", testPurgeUser},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

// Tx builds a valid expense for tests.
func Tx(userID int64, amount, category, date, key string) model.Transaction {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return model.Transaction{
		UserID:         userID,
		Kind:           model.KindExpense,
		Amount:         decimal.RequireFromString(amount),
		Category:       category,
		Description:    "test " + key,
		Date:           d,
		CreatedAt:      time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC),
		IdempotencyKey: key,
	}
}

func testInsertIdempotent(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	first, inserted, err := s.InsertTransaction(ctx, Tx(1, "45.00", "Alimentação", "2025-03-11", "k1"))
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotZero(t, first.ID)

	again, inserted, err := s.InsertTransaction(ctx, Tx(1, "99.00", "Pix", "2025-03-11", "k1"))
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.ID, again.ID)
	assert.True(t, again.Amount.Equal(decimal.RequireFromString("45")))
	assert.Equal(t, "Alimentação", again.Category)

	rows, err := s.ListTransactions(ctx, ledger.Filter{UserID: 1}, ledger.Page{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2025-03-11", rows[0].Date.Format("2006-01-02"))
	assert.Equal(t, model.KindExpense, rows[0].Kind)
}

func testConcurrentInsert(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	insertedCount := 0
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, inserted, err := s.InsertTransaction(ctx, Tx(1, "10", "Pix", "2025-03-01", "same"))
			assert.NoError(t, err)
			if inserted {
				mu.Lock()
				insertedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, insertedCount)
	rows, err := s.ListTransactions(ctx, ledger.Filter{UserID: 1}, ledger.Page{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func testListFilterAndPage(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		_, _, err := s.InsertTransaction(ctx, Tx(1, "10", "Alimentação", fmt.Sprintf("2025-03-%02d", i), fmt.Sprintf("a%d", i)))
		require.NoError(t, err)
	}
	_, _, err := s.InsertTransaction(ctx, Tx(1, "20", "Pix", "2025-04-01", "b1"))
	require.NoError(t, err)
	income := Tx(1, "3000", "Receita", "2025-03-05", "c1")
	income.Kind = model.KindIncome
	_, _, err = s.InsertTransaction(ctx, income)
	require.NoError(t, err)
	_, _, err = s.InsertTransaction(ctx, Tx(2, "10", "Alimentação", "2025-03-01", "other-user"))
	require.NoError(t, err)

	march := ledger.ForPeriod(1, period.New(2025, time.March))
	rows, err := s.ListTransactions(ctx, march, ledger.Page{})
	require.NoError(t, err)
	assert.Len(t, rows, 6)

	rows, err = s.ListTransactions(ctx, ledger.Filter{UserID: 1, Category: "alimentacao"}, ledger.Page{})
	require.NoError(t, err)
	assert.Len(t, rows, 5, "category filter folds case and accents")

	rows, err = s.ListTransactions(ctx, ledger.Filter{UserID: 1, Kinds: []model.Kind{model.KindIncome}}, ledger.Page{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "c1", rows[0].IdempotencyKey)

	page1, err := s.ListTransactions(ctx, march, ledger.Page{Limit: 4})
	require.NoError(t, err)
	require.Len(t, page1, 4)
	page2, err := s.ListTransactions(ctx, march, ledger.Page{AfterID: page1[3].ID, Limit: 4})
	require.NoError(t, err)
	require.Len(t, page2, 2)
	for i := 1; i < len(page1); i++ {
		assert.Less(t, page1[i-1].ID, page1[i].ID)
	}
	assert.Less(t, page1[3].ID, page2[0].ID)
}

func testDeleteTransaction(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	tx, _, err := s.InsertTransaction(ctx, Tx(1, "10", "Pix", "2025-03-01", "d1"))
	require.NoError(t, err)

	ok, err := s.DeleteTransaction(ctx, 2, tx.ID)
	require.NoError(t, err)
	assert.False(t, ok, "other users cannot delete")

	ok, err = s.DeleteTransaction(ctx, 1, tx.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	rows, err := s.ListTransactions(ctx, ledger.Filter{UserID: 1}, ledger.Page{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func testCategories(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	require.NoError(t, s.AddCategory(ctx, model.Category{UserID: 1, Name: "Transporte", IsCustom: true}))
	require.NoError(t, s.AddCategory(ctx, model.Category{UserID: 1, Name: "Lazer", IsCustom: true}))
	require.NoError(t, s.AddCategory(ctx, model.Category{UserID: 2, Name: "Transporte", IsCustom: true}))

	err := s.AddCategory(ctx, model.Category{UserID: 1, Name: "TRANSPORTE", IsCustom: true})
	assert.ErrorIs(t, err, ledger.ErrDuplicate)

	cats, err := s.ListCategories(ctx, 1)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "Lazer", cats[0].Name)
	assert.Equal(t, "Transporte", cats[1].Name)
	assert.True(t, cats[0].IsCustom)

	ok, err := s.RemoveCategory(ctx, 1, "transporte")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.RemoveCategory(ctx, 1, "transporte")
	require.NoError(t, err)
	assert.False(t, ok)

	cats, err = s.ListCategories(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, cats, 1)
}

func testGoals(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	g, err := s.InsertGoal(ctx, model.SavingsGoal{
		UserID:    1,
		Name:      "Viagem",
		Target:    decimal.RequireFromString("1000"),
		Current:   decimal.Zero,
		CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.NotZero(t, g.ID)

	g, err = s.AddGoalProgress(ctx, 1, g.ID, decimal.RequireFromString("250.50"))
	require.NoError(t, err)
	assert.Equal(t, "250.50", g.Current.StringFixed(2))

	got, err := s.GetGoal(ctx, 1, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "250.50", got.Current.StringFixed(2))
	assert.Equal(t, "Viagem", got.Name)

	_, err = s.GetGoal(ctx, 2, g.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
	_, err = s.AddGoalProgress(ctx, 1, g.ID+100, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	goals, err := s.ListGoals(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, goals, 1)
}

func testBudgets(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	mar := period.New(2025, time.March)
	apr := period.New(2025, time.April)

	require.NoError(t, s.UpsertBudget(ctx, model.Budget{UserID: 1, Scope: model.ScopeCategory, Category: "Pix", Limit: decimal.NewFromInt(100), Period: mar}))
	require.NoError(t, s.UpsertBudget(ctx, model.Budget{UserID: 1, Scope: model.ScopeMonthlyTotal, Limit: decimal.NewFromInt(2000), Period: mar}))
	require.NoError(t, s.UpsertBudget(ctx, model.Budget{UserID: 1, Scope: model.ScopeCategory, Category: "Alimentação", Limit: decimal.NewFromInt(500), Period: mar}))
	require.NoError(t, s.UpsertBudget(ctx, model.Budget{UserID: 1, Scope: model.ScopeMonthlyTotal, Limit: decimal.NewFromInt(1), Period: apr}))

	// Replaces the earlier row for the same key.
	require.NoError(t, s.UpsertBudget(ctx, model.Budget{UserID: 1, Scope: model.ScopeCategory, Category: "pix", Limit: decimal.NewFromInt(150), Period: mar}))

	budgets, err := s.ListBudgets(ctx, 1, mar)
	require.NoError(t, err)
	require.Len(t, budgets, 3)
	assert.Equal(t, model.ScopeMonthlyTotal, budgets[0].Scope)
	assert.Equal(t, "Alimentação", budgets[1].Category)
	assert.Equal(t, "150", budgets[2].Limit.String())
	assert.Equal(t, mar, budgets[2].Period)
}

func testRecurring(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	r, err := s.InsertRecurring(ctx, model.RecurringPayment{UserID: 1, Amount: decimal.RequireFromString("89.90"), DayOfMonth: 10, Description: "Internet", Active: true})
	require.NoError(t, err)
	assert.NotZero(t, r.ID)

	got, err := s.GetRecurring(ctx, 1, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "89.90", got.Amount.StringFixed(2))
	assert.Equal(t, 10, got.DayOfMonth)
	assert.True(t, got.Active)

	_, err = s.GetRecurring(ctx, 2, r.ID)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	all, err := s.ListRecurring(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testReminders(t *testing.T, s ledger.Store) {
	ctx := context.Background()

	_, err := s.InsertReminder(ctx, model.Reminder{UserID: 3, ChatID: 30, DayOfMonth: 5, Description: "Aluguel", Active: true})
	require.NoError(t, err)
	once, err := s.InsertReminder(ctx, model.Reminder{UserID: 1, ChatID: 10, Date: time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC), Description: "IPVA", Active: true})
	require.NoError(t, err)
	_, err = s.InsertReminder(ctx, model.Reminder{UserID: 2, ChatID: 20, DayOfMonth: 1, Description: "Off", Active: false})
	require.NoError(t, err)

	owners, err := s.ReminderOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, owners)

	rs, err := s.ListReminders(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, once.ID, rs[0].ID)
	assert.Equal(t, "2025-03-20", rs[0].Date.Format("2006-01-02"))
	assert.Equal(t, int64(10), rs[0].ChatID)
	assert.True(t, rs[0].FiredFor.IsZero())
}

func testReminderFiresOnce(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	mar := period.New(2025, time.March)

	r, err := s.InsertReminder(ctx, model.Reminder{UserID: 1, DayOfMonth: 5, Description: "Aluguel", Active: true})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	stamped := 0
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.MarkReminderFired(ctx, 1, r.ID, mar)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				stamped++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, stamped)

	ok, err := s.MarkReminderFired(ctx, 1, r.ID, mar.Next())
	require.NoError(t, err)
	assert.True(t, ok, "a new period fires again")

	rs, err := s.ListReminders(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rs, 1)
	assert.Equal(t, mar.Next(), rs[0].FiredFor)

	_, err = s.MarkReminderFired(ctx, 1, r.ID+100, mar)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func testPurgeUser(t *testing.T, s ledger.Store) {
	ctx := context.Background()
	mar := period.New(2025, time.March)

	for _, user := range []int64{1, 2} {
		key := fmt.Sprintf("p%d", user)
		_, _, err := s.InsertTransaction(ctx, Tx(user, "10", "Pix", "2025-03-01", key))
		require.NoError(t, err)
		require.NoError(t, s.AddCategory(ctx, model.Category{UserID: user, Name: "Lazer", IsCustom: true}))
		_, err = s.InsertGoal(ctx, model.SavingsGoal{UserID: user, Name: "Viagem", Target: decimal.NewFromInt(100), Current: decimal.Zero})
		require.NoError(t, err)
		require.NoError(t, s.UpsertBudget(ctx, model.Budget{UserID: user, Scope: model.ScopeMonthlyTotal, Limit: decimal.NewFromInt(500), Period: mar}))
		_, err = s.InsertRecurring(ctx, model.RecurringPayment{UserID: user, Amount: decimal.NewFromInt(50), DayOfMonth: 5, Description: "Internet", Active: true})
		require.NoError(t, err)
		_, err = s.InsertReminder(ctx, model.Reminder{UserID: user, ChatID: user * 10, DayOfMonth: 5, Description: "Aluguel", Active: true})
		require.NoError(t, err)
	}

	require.NoError(t, s.PurgeUser(ctx, 1))

	txs, err := s.ListTransactions(ctx, ledger.Filter{UserID: 1}, ledger.Page{})
	require.NoError(t, err)
	assert.Empty(t, txs)
	cats, err := s.ListCategories(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, cats)
	goals, err := s.ListGoals(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, goals)
	budgets, err := s.ListBudgets(ctx, 1, mar)
	require.NoError(t, err)
	assert.Empty(t, budgets)
	recurring, err := s.ListRecurring(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, recurring)
	reminders, err := s.ListReminders(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, reminders)

	owners, err := s.ReminderOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, owners)

	txs, err = s.ListTransactions(ctx, ledger.Filter{UserID: 2}, ledger.Page{})
	require.NoError(t, err)
	assert.Len(t, txs, 1, "other users keep their data")
	cats, err = s.ListCategories(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, cats, 1)

	// The purged idempotency key no longer blocks a new insert.
	_, inserted, err := s.InsertTransaction(ctx, Tx(1, "20", "Pix", "2025-03-02", "p1"))
	require.NoError(t, err)
	assert.True(t, inserted)

	// Purging a user with nothing stored is not an error.
	require.NoError(t, s.PurgeUser(ctx, 99))
}
