package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbot-dev/finbot/internal/apperr"
	"github.com/finbot-dev/finbot/internal/ledger"
	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/period"
	"github.com/finbot-dev/finbot/internal/store/memory"
)

var fixedNow = time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*ledger.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return ledger.NewService(store, func() time.Time { return fixedNow }), store
}

func expense(amount, category string) model.Transaction {
	return model.Transaction{
		UserID:   1,
		Kind:     model.KindExpense,
		Amount:   decimal.RequireFromString(amount),
		Category: category,
		Date:     time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC),
	}
}

func TestCommitAssignsKeyAndTimestamps(t *testing.T) {
	svc, _ := newService(t)

	tx := expense("45.00", " Alimentação ")
	tx.Date = time.Date(2025, 3, 11, 21, 30, 0, 0, time.FixedZone("BRT", -3*3600))
	saved, err := svc.Commit(context.Background(), tx)
	require.NoError(t, err)

	assert.NotZero(t, saved.ID)
	assert.NotEmpty(t, saved.IdempotencyKey)
	assert.Equal(t, fixedNow, saved.CreatedAt)
	assert.Equal(t, "Alimentação", saved.Category)
	assert.Equal(t, "2025-03-11", saved.Date.Format("2006-01-02"), "calendar date is kept, clock is dropped")
}

func TestCommitIsIdempotent(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	tx := expense("45", "Alimentação")
	tx.IdempotencyKey = "conv-1"
	first, err := svc.Commit(ctx, tx)
	require.NoError(t, err)
	second, err := svc.Commit(ctx, tx)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.Count())
}

func TestCommitDefaultsCategoryByKind(t *testing.T) {
	svc, _ := newService(t)

	tx := expense("3000", "")
	tx.Kind = model.KindIncome
	saved, err := svc.Commit(context.Background(), tx)
	require.NoError(t, err)
	assert.Equal(t, "Receita", saved.Category)
}

func TestCommitValidation(t *testing.T) {
	tests := []struct {
		name  string
		tx    model.Transaction
		field string
	}{
		{"zero amount", expense("0", "Pix"), "amount"},
		{"negative amount", expense("-5", "Pix"), "amount"},
		{"sub-cent amount", expense("1.005", "Pix"), "amount"},
		{"missing category", expense("5", ""), "category"},
		{"unresolved date", func() model.Transaction { tx := expense("5", "Pix"); tx.Date = time.Time{}; return tx }(), "date"},
		{"unknown kind", func() model.Transaction { tx := expense("5", "Pix"); tx.Kind = "loan"; return tx }(), "kind"},
		{"no user", func() model.Transaction { tx := expense("5", "Pix"); tx.UserID = 0; return tx }(), "user_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newService(t)

			_, err := svc.Commit(context.Background(), tt.tx)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.ValidationFailure))

			var verrs ledger.ValidationErrors
			require.True(t, errors.As(err, &verrs))
			fields := make([]string, len(verrs))
			for i, v := range verrs {
				fields[i] = v.Field
			}
			assert.Contains(t, fields, tt.field)
			assert.Zero(t, store.Count())
		})
	}
}

type failingStore struct {
	*memory.Store
}

func (failingStore) InsertTransaction(context.Context, model.Transaction) (model.Transaction, bool, error) {
	return model.Transaction{}, false, errors.New("disk full")
}

func TestCommitStorageFailure(t *testing.T) {
	svc := ledger.NewService(failingStore{memory.New()}, func() time.Time { return fixedNow })

	_, err := svc.Commit(context.Background(), expense("10", "Pix"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.StorageFailure))
	assert.Contains(t, err.Error(), "disk full")
}

func TestQueryPagesLazilyAndRestarts(t *testing.T) {
	svc, _ := newService(t)
	svc = svc.WithPageSize(3)
	ctx := context.Background()

	for i := range 7 {
		tx := expense(fmt.Sprintf("%d", i+1), "Pix")
		_, err := svc.Commit(ctx, tx)
		require.NoError(t, err)
	}

	seq := svc.Query(ctx, ledger.Filter{UserID: 1})
	var first []string
	for tx, err := range seq {
		require.NoError(t, err)
		first = append(first, tx.Amount.String())
	}
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6", "7"}, first)

	// A second range starts from the beginning.
	var again []string
	for tx, err := range seq {
		require.NoError(t, err)
		again = append(again, tx.Amount.String())
		if len(again) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"1", "2"}, again)

	all, err := svc.Collect(ctx, ledger.Filter{UserID: 2})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDeleteTransaction(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	tx, err := svc.Commit(ctx, expense("10", "Pix"))
	require.NoError(t, err)

	err = svc.DeleteTransaction(ctx, 1, tx.ID+1)
	assert.True(t, apperr.Is(err, apperr.ValidationFailure))

	require.NoError(t, svc.DeleteTransaction(ctx, 1, tx.ID))
	assert.Zero(t, store.Count())
}

func TestCategories(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.AddCategory(ctx, 1, "  Transporte ")
	require.NoError(t, err)

	_, err = svc.AddCategory(ctx, 1, "transporte")
	assert.True(t, apperr.Is(err, apperr.ValidationFailure))
	_, err = svc.AddCategory(ctx, 1, "alimentacao")
	assert.True(t, apperr.Is(err, apperr.ValidationFailure), "built-ins cannot be shadowed")
	_, err = svc.AddCategory(ctx, 1, " ")
	assert.True(t, apperr.Is(err, apperr.ValidationFailure))

	cats, err := svc.ListCategories(ctx, 1)
	require.NoError(t, err)
	names := make([]string, len(cats))
	for i, c := range cats {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"Débito", "Crédito", "Alimentação", "Pix", "Transporte"}, names)

	vocab, err := svc.Vocabulary(ctx, 1)
	require.NoError(t, err)
	assert.True(t, vocab.Exists("TRANSPORTE"))

	assert.True(t, apperr.Is(svc.RemoveCategory(ctx, 1, "Pix"), apperr.ValidationFailure))
	assert.True(t, apperr.Is(svc.RemoveCategory(ctx, 1, "Lazer"), apperr.ValidationFailure))
	require.NoError(t, svc.RemoveCategory(ctx, 1, "transporte"))
}

func TestGoals(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	g, err := svc.AddGoal(ctx, 1, "Viagem", decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.True(t, g.Current.IsZero())

	g, err = svc.AddGoalProgress(ctx, 1, g.ID, decimal.NewFromInt(400))
	require.NoError(t, err)
	assert.Equal(t, "40", g.PctComplete().String())

	_, err = svc.AddGoalProgress(ctx, 1, g.ID, decimal.NewFromInt(-1))
	assert.True(t, apperr.Is(err, apperr.ValidationFailure))
	_, err = svc.AddGoalProgress(ctx, 1, 999, decimal.NewFromInt(1))
	assert.True(t, apperr.Is(err, apperr.ValidationFailure))
	_, err = svc.AddGoal(ctx, 1, "", decimal.NewFromInt(1))
	assert.True(t, apperr.Is(err, apperr.ValidationFailure))

	goals, err := svc.ListGoals(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, goals, 1)
}

func TestSetBudget(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	mar := period.New(2025, time.March)

	b, err := svc.SetBudget(ctx, 1, model.ScopeCategory, "alimentacao", decimal.NewFromInt(500), mar)
	require.NoError(t, err)
	assert.Equal(t, "Alimentação", b.Category, "category is stored under its canonical name")

	_, err = svc.SetBudget(ctx, 1, model.ScopeCategory, "Lazer", decimal.NewFromInt(500), mar)
	assert.True(t, apperr.Is(err, apperr.ValidationFailure))
	_, err = svc.SetBudget(ctx, 1, "weekly", "", decimal.NewFromInt(500), mar)
	assert.True(t, apperr.Is(err, apperr.ValidationFailure))
	_, err = svc.SetBudget(ctx, 1, model.ScopeMonthlyTotal, "", decimal.Zero, mar)
	assert.True(t, apperr.Is(err, apperr.ValidationFailure))

	_, err = svc.SetBudget(ctx, 1, model.ScopeMonthlyTotal, "", decimal.NewFromInt(2000), mar)
	require.NoError(t, err)
	budgets, err := svc.ListBudgets(ctx, 1, mar)
	require.NoError(t, err)
	assert.Len(t, budgets, 2)
}

func TestMaterializeRecurringOncePerPeriod(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	r, err := svc.AddRecurring(ctx, 1, decimal.RequireFromString("1200"), 31, "Aluguel")
	require.NoError(t, err)

	feb := period.New(2025, time.February)
	tx, err := svc.MaterializeRecurring(ctx, 1, r.ID, feb)
	require.NoError(t, err)
	assert.Equal(t, model.KindFixedCost, tx.Kind)
	assert.Equal(t, "Gastos Fixos", tx.Category)
	assert.Equal(t, "2025-02-28", tx.Date.Format("2006-01-02"), "day 31 clamps to the end of February")
	assert.Equal(t, r.ID, tx.RecurringID)

	again, err := svc.MaterializeRecurring(ctx, 1, r.ID, feb)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, again.ID)
	assert.Equal(t, 1, store.Count())

	_, err = svc.MaterializeRecurring(ctx, 1, r.ID, feb.Next())
	require.NoError(t, err)
	assert.Equal(t, 2, store.Count())

	_, err = svc.MaterializeRecurring(ctx, 1, r.ID+50, feb)
	assert.True(t, apperr.Is(err, apperr.ValidationFailure))

	_, err = svc.AddRecurring(ctx, 1, decimal.NewFromInt(10), 32, "x")
	assert.True(t, apperr.Is(err, apperr.ValidationFailure))
}

func TestReminders(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	monthly, err := svc.AddReminder(ctx, 1, 100, 5, time.Time{}, "Pagar aluguel")
	require.NoError(t, err)
	assert.Equal(t, 5, monthly.DayOfMonth)

	once, err := svc.AddReminder(ctx, 1, 100, 0, time.Date(2025, 4, 2, 13, 0, 0, 0, time.UTC), "IPVA")
	require.NoError(t, err)
	assert.Equal(t, "2025-04-02", once.Date.Format("2006-01-02"))
	assert.Zero(t, once.DayOfMonth)

	_, err = svc.AddReminder(ctx, 1, 100, 0, time.Time{}, "sem dia")
	assert.True(t, apperr.Is(err, apperr.ValidationFailure))
	_, err = svc.AddReminder(ctx, 1, 100, 5, time.Time{}, "")
	assert.True(t, apperr.Is(err, apperr.ValidationFailure))

	owners, err := svc.ReminderOwners(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, owners)

	mar := period.New(2025, time.March)
	ok, err := svc.MarkReminderFired(ctx, 1, monthly.ID, mar)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.MarkReminderFired(ctx, 1, monthly.ID, mar)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.MarkReminderFired(ctx, 1, 999, mar)
	assert.True(t, apperr.Is(err, apperr.StorageFailure))
}
