package evaluate

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbot-dev/finbot/internal/ledger"
	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/period"
	"github.com/finbot-dev/finbot/internal/store/memory"
)

var (
	now   = time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)
	march = period.New(2025, time.March)
)

type fixture struct {
	svc  *ledger.Service
	eval *Evaluator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := func() time.Time { return now }
	svc := ledger.NewService(memory.New(), clock)
	return &fixture{svc: svc, eval: New(svc, clock, Options{})}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (f *fixture) commit(t *testing.T, kind model.Kind, amount, category string, day int) model.Transaction {
	t.Helper()
	tx, err := f.svc.Commit(context.Background(), model.Transaction{
		UserID:   1,
		Kind:     kind,
		Amount:   dec(amount),
		Category: category,
		Date:     time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return tx
}

func TestOverBudgetIsStrict(t *testing.T) {
	tests := []struct {
		spent   []string
		over    bool
		warning bool
	}{
		{[]string{"200", "300"}, false, true},
		{[]string{"200", "301"}, true, false},
		{[]string{"100"}, false, false},
		{[]string{"375"}, false, true},
	}
	for _, tt := range tests {
		f := newFixture(t)
		ctx := context.Background()
		_, err := f.svc.SetBudget(ctx, 1, model.ScopeCategory, "Alimentação", dec("500"), march)
		require.NoError(t, err)
		for i, amt := range tt.spent {
			f.commit(t, model.KindExpense, amt, "Alimentação", i+1)
		}

		res, err := f.eval.Evaluate(ctx, 1, march)
		require.NoError(t, err)
		require.Len(t, res.Budgets, 1)
		b := res.Budgets[0]
		assert.Equal(t, tt.over, b.OverBudget, tt.spent)
		assert.Equal(t, tt.warning, b.Warning, tt.spent)
		assert.True(t, b.Limit.Valid)
	}
}

func TestOverBudgetAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SetBudget(ctx, 1, model.ScopeCategory, "Alimentação", dec("500"), march)
	require.NoError(t, err)
	f.commit(t, model.KindExpense, "501", "alimentação", 3)

	res, err := f.eval.Evaluate(ctx, 1, march)
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)
	a := res.Alerts[0]
	assert.Equal(t, AlertOverBudget, a.Type)
	assert.Equal(t, "Alimentação", a.Category)
	assert.Equal(t, "Orçamento de Alimentação estourado: R$ 501,00 de R$ 500,00.", a.Message)

	assert.Len(t, res.AlertsFor("ALIMENTACAO"), 1)
	assert.Empty(t, res.AlertsFor("Pix"))
}

func TestCategoryWithoutBudgetHasNullLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SetBudget(ctx, 1, model.ScopeMonthlyTotal, "", dec("1000"), march)
	require.NoError(t, err)
	f.commit(t, model.KindExpense, "80", "Pix", 2)
	f.commit(t, model.KindFixedCost, "900", "", 5)

	res, err := f.eval.Evaluate(ctx, 1, march)
	require.NoError(t, err)
	require.Len(t, res.Budgets, 3)

	assert.Equal(t, model.ScopeMonthlyTotal, res.Budgets[0].Scope)
	assert.Equal(t, "980", res.Budgets[0].Spent.String())
	assert.Equal(t, "98", res.Budgets[0].PctUsed.Decimal.String())
	assert.True(t, res.Budgets[0].Warning)

	assert.Equal(t, "Gastos Fixos", res.Budgets[1].Category)
	assert.Equal(t, "Pix", res.Budgets[2].Category)
	for _, b := range res.Budgets[1:] {
		assert.False(t, b.Limit.Valid)
		assert.False(t, b.PctUsed.Valid)
		assert.False(t, b.OverBudget)
	}

	require.Len(t, res.Alerts, 1, "categories without a budget never alert")
	assert.Equal(t, AlertBudgetWarning, res.Alerts[0].Type)
	assert.Len(t, res.AlertsFor("Pix"), 1, "monthly alerts apply to every category")
}

func TestTotalsAndGrouping(t *testing.T) {
	f := newFixture(t)
	f.commit(t, model.KindIncome, "3000", "", 5)
	f.commit(t, model.KindExpense, "45", "Alimentação", 11)
	f.commit(t, model.KindExpense, "12.50", "Pix", 11)
	f.commit(t, model.KindMealVoucher, "30", "", 12)
	f.commit(t, model.KindFixedCost, "1200", "", 10)

	res, err := f.eval.Evaluate(context.Background(), 1, march)
	require.NoError(t, err)

	assert.Equal(t, "3000", res.TotalIncome.String())
	assert.Equal(t, "1287.5", res.TotalSpent.String())
	assert.Equal(t, "1712.5", res.Net.String())
	assert.Equal(t, []KindTotal{
		{Kind: model.KindExpense, Amount: dec("57.5")},
		{Kind: model.KindFixedCost, Amount: dec("1200")},
		{Kind: model.KindMealVoucher, Amount: dec("30")},
	}, normalizeKinds(res.SpentByKind))

	names := make([]string, len(res.SpentByCategory))
	for i, c := range res.SpentByCategory {
		names[i] = c.Category
	}
	assert.Equal(t, []string{"Alimentação", "Gastos Fixos", "Pix", "Vale-Alimentação"}, names)
}

// normalizeKinds rebuilds amounts so assert.Equal compares values, not decimal internals.
func normalizeKinds(in []KindTotal) []KindTotal {
	out := make([]KindTotal, len(in))
	for i, k := range in {
		out[i] = KindTotal{Kind: k.Kind, Amount: dec(k.Amount.String())}
	}
	return out
}

func TestMTPAllocationSumsExactly(t *testing.T) {
	a := Allocate(dec("3000"), DefaultSplit())
	assert.Equal(t, "600", a.Savings.String())
	assert.Equal(t, "300", a.Investment.String())
	assert.Equal(t, "2100", a.Expense.String())
	assert.True(t, a.Savings.Add(a.Investment).Add(a.Expense).Equal(dec("3000")))

	for _, income := range []string{"0.01", "0.05", "1", "333.33", "1234.57", "99999.99"} {
		a := Allocate(dec(income), DefaultSplit())
		assert.True(t, a.Savings.Add(a.Investment).Add(a.Expense).Equal(dec(income)), income)
	}

	zero := Allocate(decimal.Zero, DefaultSplit())
	assert.True(t, zero.Savings.IsZero())
	assert.True(t, zero.Expense.IsZero())
	assert.True(t, Allocate(dec("-10"), DefaultSplit()).Expense.IsZero())
}

func TestSplitValidate(t *testing.T) {
	require.NoError(t, DefaultSplit().Validate())
	assert.Error(t, Split{Savings: dec("50"), Investment: dec("50"), Expense: dec("1")}.Validate())
	assert.Error(t, Split{Savings: dec("-10"), Investment: dec("40"), Expense: dec("70")}.Validate())
}

func TestEvaluateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.commit(t, model.KindIncome, "3000", "", 1)
	f.commit(t, model.KindExpense, "45", "Alimentação", 11)
	f.commit(t, model.KindExpense, "80", "Pix", 11)
	_, err := f.svc.SetBudget(ctx, 1, model.ScopeCategory, "Pix", dec("50"), march)
	require.NoError(t, err)
	g, err := f.svc.AddGoal(ctx, 1, "Reserva", dec("100"))
	require.NoError(t, err)
	_, err = f.svc.AddGoalProgress(ctx, 1, g.ID, dec("100"))
	require.NoError(t, err)
	_, err = f.svc.AddRecurring(ctx, 1, dec("89.90"), 20, "Internet")
	require.NoError(t, err)
	_, err = f.svc.AddReminder(ctx, 1, 10, 5, time.Time{}, "Aluguel")
	require.NoError(t, err)

	first, err := f.eval.Evaluate(ctx, 1, march)
	require.NoError(t, err)
	second, err := f.eval.Evaluate(ctx, 1, march)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	goals, err := f.svc.ListGoals(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "100", goals[0].Current.String(), "evaluation does not touch goals")

	types := make([]AlertType, len(first.Alerts))
	for i, al := range first.Alerts {
		types[i] = al.Type
	}
	assert.Equal(t, []AlertType{AlertOverBudget, AlertGoalComplete}, types)
}

func TestProjections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	past, err := f.svc.AddRecurring(ctx, 1, dec("50"), 5, "Academia")
	require.NoError(t, err)
	internet, err := f.svc.AddRecurring(ctx, 1, dec("89.90"), 20, "Internet")
	require.NoError(t, err)
	rent, err := f.svc.AddRecurring(ctx, 1, dec("1200"), 31, "Aluguel")
	require.NoError(t, err)
	paid, err := f.svc.AddRecurring(ctx, 1, dec("40"), 25, "Streaming")
	require.NoError(t, err)
	todayDue, err := f.svc.AddRecurring(ctx, 1, dec("15"), 12, "Jornal")
	require.NoError(t, err)

	// Paid early by hand, matched by description and amount.
	_, err = f.svc.Commit(ctx, model.Transaction{UserID: 1, Kind: model.KindFixedCost, Amount: dec("40"), Description: "streaming", Date: now})
	require.NoError(t, err)

	res, err := f.eval.Evaluate(ctx, 1, march)
	require.NoError(t, err)

	ids := make([]int64, len(res.Projected))
	for i, p := range res.Projected {
		ids[i] = p.RecurringID
	}
	assert.Equal(t, []int64{todayDue.ID, internet.ID, rent.ID}, ids)
	assert.NotContains(t, ids, past.ID)
	assert.NotContains(t, ids, paid.ID)
	assert.Equal(t, "2025-03-31", res.Projected[2].Date)
	assert.Equal(t, "1304.9", res.ProjectedTotal.String())
	assert.Equal(t, "40", res.TotalSpent.String(), "projections are not realized spend")

	_, err = f.svc.MaterializeRecurring(ctx, 1, internet.ID, march)
	require.NoError(t, err)
	res, err = f.eval.Evaluate(ctx, 1, march)
	require.NoError(t, err)
	assert.Len(t, res.Projected, 2)

	april, err := f.eval.Evaluate(ctx, 1, march.Next())
	require.NoError(t, err)
	assert.Len(t, april.Projected, 5, "every payment is still ahead next month")
	feb, err := f.eval.Evaluate(ctx, 1, march.Prev())
	require.NoError(t, err)
	assert.Empty(t, feb.Projected)
}

func TestReminderFiresOncePerPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, err := f.svc.AddReminder(ctx, 1, 10, 5, time.Time{}, "Pagar aluguel")
	require.NoError(t, err)

	total := 0
	for range 10 {
		events, err := f.eval.Poll(ctx, 1, now)
		require.NoError(t, err)
		total += len(events)
		_, err = f.eval.Evaluate(ctx, 1, march)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, total)

	res, err := f.eval.Evaluate(ctx, 1, march)
	require.NoError(t, err)
	require.Len(t, res.Reminders, 1)
	assert.Equal(t, r.ID, res.Reminders[0].ID)
	assert.True(t, res.Reminders[0].Fired)
	assert.True(t, res.Reminders[0].Due)

	events, err := f.eval.Poll(ctx, 1, now.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Len(t, events, 1, "fires again next month")
}

func TestReminderFiresOnceUnderConcurrentPolls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddReminder(ctx, 1, 10, 1, time.Time{}, "Fatura")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			events, err := f.eval.Poll(ctx, 1, now)
			assert.NoError(t, err)
			mu.Lock()
			total += len(events)
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, total)
}

func TestReminderNotDueYet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddReminder(ctx, 1, 10, 20, time.Time{}, "Cartão")
	require.NoError(t, err)
	_, err = f.svc.AddReminder(ctx, 1, 10, 0, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), "IPVA")
	require.NoError(t, err)

	events, err := f.eval.Poll(ctx, 1, now)
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = f.eval.Poll(ctx, 1, time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, events, 1, "only the one-off is due on April 1st")
	assert.Equal(t, "IPVA", events[0].Reminder.Description)
}

func TestReminderDayClampsToMonthEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.AddReminder(ctx, 1, 10, 31, time.Time{}, "Fechamento")
	require.NoError(t, err)

	febEnd := time.Date(2025, 2, 28, 8, 0, 0, 0, time.UTC)
	events, err := f.eval.Poll(ctx, 1, febEnd.AddDate(0, 0, -1))
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = f.eval.Poll(ctx, 1, febEnd)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "2025-02-28", events[0].DueDate.Format(time.DateOnly))

	all, err := f.eval.PollAll(ctx, febEnd)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestTopCompareHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.commit(t, model.KindExpense, "45", "Alimentação", 11)
	f.commit(t, model.KindExpense, "300", "Pix", 2)
	f.commit(t, model.KindFixedCost, "120", "", 5)
	f.commit(t, model.KindExpense, "10", "Pix", 7)
	f.commit(t, model.KindIncome, "5000", "", 1)
	_, err := f.svc.Commit(ctx, model.Transaction{UserID: 1, Kind: model.KindExpense, Amount: dec("500"), Category: "Pix", Date: time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	top, err := f.eval.Top(ctx, 1, march, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "300", top[0].Amount.String())
	assert.Equal(t, "120", top[1].Amount.String())
	assert.Equal(t, "45", top[2].Amount.String())

	c, err := f.eval.Compare(ctx, 1, march)
	require.NoError(t, err)
	assert.Equal(t, "475", c.Current.Spent.String())
	assert.Equal(t, "500", c.Previous.Spent.String())
	assert.Equal(t, "-25", c.Difference.String())
	assert.Equal(t, "-5", c.PctChange.Decimal.String())
	require.NotEmpty(t, c.ByCategory)
	assert.Equal(t, "Pix", c.ByCategory[0].Category)

	h, err := f.eval.History(ctx, 1, march, 3)
	require.NoError(t, err)
	require.Len(t, h, 3)
	assert.Equal(t, "2025-01", h[0].Period)
	assert.True(t, h[0].Spent.IsZero())
	assert.Equal(t, "500", h[1].Spent.String())
	assert.Equal(t, "5000", h[2].Income.String())
}
