// Package evaluate computes budget, goal and allocation status from the ledger.
package evaluate

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbot-dev/finbot/internal/ledger"
	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/money"
	"github.com/finbot-dev/finbot/internal/period"
	"github.com/finbot-dev/finbot/internal/textnorm"
)

// DefaultWarnPct is the share of a budget at which a warning is raised.
var DefaultWarnPct = decimal.NewFromInt(75)

// AlertType names an alert condition.
type AlertType string

const (
	AlertOverBudget    AlertType = "over_budget"
	AlertBudgetWarning AlertType = "budget_warning"
	AlertGoalComplete  AlertType = "goal_complete"
)

// Alert is a condition worth telling the user about.
type Alert struct {
	Type     AlertType         `json:"type"`
	Scope    model.BudgetScope `json:"scope,omitempty"`
	Category string            `json:"category,omitempty"`
	GoalID   int64             `json:"goal_id,omitempty"`
	Message  string            `json:"message"`
}

// KindTotal is the spend of one transaction kind.
type KindTotal struct {
	Kind   model.Kind      `json:"kind"`
	Amount decimal.Decimal `json:"amount"`
}

// CategoryTotal is the spend of one category.
type CategoryTotal struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// BudgetStatus compares spend with a limit. Limit and PctUsed are null for a category without a budget.
type BudgetStatus struct {
	Scope      model.BudgetScope   `json:"scope"`
	Category   string              `json:"category,omitempty"`
	Limit      decimal.NullDecimal `json:"limit"`
	Spent      decimal.Decimal     `json:"spent"`
	PctUsed    decimal.NullDecimal `json:"pct_used"`
	OverBudget bool                `json:"over_budget"`
	Warning    bool                `json:"warning"`
}

// GoalStatus is a savings goal's progress.
type GoalStatus struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Target      decimal.Decimal `json:"target"`
	Current     decimal.Decimal `json:"current"`
	Remaining   decimal.Decimal `json:"remaining"`
	PctComplete decimal.Decimal `json:"pct_complete"`
	Complete    bool            `json:"complete"`
}

// Projection is a recurring payment expected later in the period and not yet recorded.
type Projection struct {
	RecurringID int64           `json:"recurring_id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
}

// DueReminder is a reminder scheduled in the period.
type DueReminder struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Due         bool   `json:"due"`   // date is today or earlier
	Fired       bool   `json:"fired"` // already delivered this period
}

// Result is a full evaluation of one user and period.
type Result struct {
	UserID          int64           `json:"user_id"`
	Period          string          `json:"period"`
	TotalIncome     decimal.Decimal `json:"total_income"`
	TotalSpent      decimal.Decimal `json:"total_spent"`
	Net             decimal.Decimal `json:"net"`
	SpentByKind     []KindTotal     `json:"spent_by_kind"`
	SpentByCategory []CategoryTotal `json:"spent_by_category"`
	Budgets         []BudgetStatus  `json:"budgets"`
	Goals           []GoalStatus    `json:"goals"`
	Projected       []Projection    `json:"projected"`
	ProjectedTotal  decimal.Decimal `json:"projected_total"`
	MTP             Allocation      `json:"mtp"`
	Reminders       []DueReminder   `json:"reminders"`
	Alerts          []Alert         `json:"alerts"`
}

// AlertsFor returns the budget alerts touching category or the monthly total.
func (r Result) AlertsFor(category string) []Alert {
	var out []Alert
	for _, a := range r.Alerts {
		switch {
		case a.Scope == model.ScopeMonthlyTotal:
			out = append(out, a)
		case a.Scope == model.ScopeCategory && ledger.SameCategory(a.Category, category):
			out = append(out, a)
		}
	}
	return out
}

// Options tunes an Evaluator.
type Options struct {
	Split   Split
	WarnPct decimal.Decimal
}

// Evaluator reads the ledger and derives status. Evaluate never writes.
type Evaluator struct {
	ledger  *ledger.Service
	now     func() time.Time
	split   Split
	warnPct decimal.Decimal
}

// New creates an Evaluator. Zero options take the defaults.
func New(svc *ledger.Service, now func() time.Time, opts Options) *Evaluator {
	e := &Evaluator{ledger: svc, now: now, split: opts.Split, warnPct: opts.WarnPct}
	if e.split == (Split{}) {
		e.split = DefaultSplit()
	}
	if e.warnPct.IsZero() {
		e.warnPct = DefaultWarnPct
	}
	return e
}

// Split returns the MTP split in use.
func (e *Evaluator) Split() Split {
	return e.split
}

// Evaluate computes the status of userID for p. Calling it again without ledger
// writes in between returns an identical Result.
func (e *Evaluator) Evaluate(ctx context.Context, userID int64, p period.Period) (Result, error) {
	txs, err := e.ledger.Collect(ctx, ledger.ForPeriod(userID, p))
	if err != nil {
		return Result{}, err
	}
	budgets, err := e.ledger.ListBudgets(ctx, userID, p)
	if err != nil {
		return Result{}, err
	}
	goals, err := e.ledger.ListGoals(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	recurring, err := e.ledger.ListRecurring(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	reminders, err := e.ledger.ListReminders(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	today := period.DateOf(e.now())
	sum := summarize(txs)

	res := Result{
		UserID:          userID,
		Period:          p.String(),
		TotalIncome:     sum.income,
		TotalSpent:      sum.spent,
		Net:             sum.income.Sub(sum.spent),
		SpentByKind:     sum.byKind(),
		SpentByCategory: sum.byCategory(),
		Goals:           []GoalStatus{},
		Projected:       []Projection{},
		ProjectedTotal:  decimal.Zero,
		MTP:             Allocate(sum.income, e.split),
		Reminders:       []DueReminder{},
		Alerts:          []Alert{},
	}

	res.Budgets = e.budgetStatuses(budgets, sum)
	for _, b := range res.Budgets {
		if a, ok := budgetAlert(b); ok {
			res.Alerts = append(res.Alerts, a)
		}
	}

	slices.SortFunc(goals, func(a, b model.SavingsGoal) int { return cmp.Compare(a.ID, b.ID) })
	for _, g := range goals {
		gs := GoalStatus{
			ID:          g.ID,
			Name:        g.Name,
			Target:      g.Target,
			Current:     g.Current,
			Remaining:   g.Remaining(),
			PctComplete: g.PctComplete(),
			Complete:    g.Complete(),
		}
		res.Goals = append(res.Goals, gs)
		if gs.Complete {
			res.Alerts = append(res.Alerts, Alert{
				Type:    AlertGoalComplete,
				GoalID:  g.ID,
				Message: fmt.Sprintf("Meta %q concluída: %s de %s.", g.Name, money.Format(g.Current), money.Format(g.Target)),
			})
		}
	}

	res.Projected = project(recurring, txs, p, today)
	for _, pr := range res.Projected {
		res.ProjectedTotal = res.ProjectedTotal.Add(pr.Amount)
	}

	for _, r := range reminders {
		date, ok := r.DueIn(p)
		if !ok {
			continue
		}
		res.Reminders = append(res.Reminders, DueReminder{
			ID:          r.ID,
			Description: r.Description,
			Date:        date.Format(time.DateOnly),
			Due:         !date.After(today),
			Fired:       r.FiredFor == p,
		})
	}
	slices.SortFunc(res.Reminders, func(a, b DueReminder) int {
		return cmp.Or(cmp.Compare(a.Date, b.Date), cmp.Compare(a.ID, b.ID))
	})

	return res, nil
}

func (e *Evaluator) budgetStatuses(budgets []model.Budget, sum summary) []BudgetStatus {
	statuses := []BudgetStatus{}
	covered := make(map[string]bool)

	for _, b := range budgets {
		st := BudgetStatus{Scope: b.Scope, Category: b.Category, Limit: decimal.NewNullDecimal(b.Limit)}
		switch b.Scope {
		case model.ScopeMonthlyTotal:
			st.Spent = sum.spent
		case model.ScopeCategory:
			key := textnorm.Fold(b.Category)
			covered[key] = true
			st.Spent = sum.categoryAmount(key)
		default:
			continue
		}
		if b.Limit.IsPositive() {
			pct := st.Spent.Div(b.Limit).Mul(hundred).Round(2)
			st.PctUsed = decimal.NewNullDecimal(pct)
			st.OverBudget = st.Spent.GreaterThan(b.Limit)
			st.Warning = !st.OverBudget && pct.GreaterThanOrEqual(e.warnPct)
		}
		statuses = append(statuses, st)
	}

	for _, c := range sum.byCategory() {
		if covered[textnorm.Fold(c.Category)] {
			continue
		}
		statuses = append(statuses, BudgetStatus{Scope: model.ScopeCategory, Category: c.Category, Spent: c.Amount})
	}

	slices.SortStableFunc(statuses, func(a, b BudgetStatus) int {
		if a.Scope != b.Scope {
			if a.Scope == model.ScopeMonthlyTotal {
				return -1
			}
			return 1
		}
		return cmp.Compare(textnorm.Fold(a.Category), textnorm.Fold(b.Category))
	})
	return statuses
}

func budgetAlert(b BudgetStatus) (Alert, bool) {
	if !b.Limit.Valid {
		return Alert{}, false
	}
	label := "mensal"
	if b.Scope == model.ScopeCategory {
		label = "de " + b.Category
	}
	switch {
	case b.OverBudget:
		return Alert{
			Type:     AlertOverBudget,
			Scope:    b.Scope,
			Category: b.Category,
			Message:  fmt.Sprintf("Orçamento %s estourado: %s de %s.", label, money.Format(b.Spent), money.Format(b.Limit.Decimal)),
		}, true
	case b.Warning:
		return Alert{
			Type:     AlertBudgetWarning,
			Scope:    b.Scope,
			Category: b.Category,
			Message:  fmt.Sprintf("Atenção: %s%% do orçamento %s usado (%s de %s).", b.PctUsed.Decimal.StringFixed(0), label, money.Format(b.Spent), money.Format(b.Limit.Decimal)),
		}, true
	}
	return Alert{}, false
}

// project lists active recurring payments due from today to the end of p
// that have no matching transaction yet.
func project(recurring []model.RecurringPayment, txs []model.Transaction, p period.Period, today time.Time) []Projection {
	out := []Projection{}
	for _, r := range recurring {
		if !r.Active {
			continue
		}
		due := p.ClampDay(r.DayOfMonth)
		if due.Before(today) {
			continue
		}
		if slices.ContainsFunc(txs, func(tx model.Transaction) bool { return recorded(r, tx) }) {
			continue
		}
		out = append(out, Projection{
			RecurringID: r.ID,
			Description: r.Description,
			Amount:      r.Amount,
			Date:        due.Format(time.DateOnly),
		})
	}
	slices.SortFunc(out, func(a, b Projection) int {
		return cmp.Or(cmp.Compare(a.Date, b.Date), cmp.Compare(a.RecurringID, b.RecurringID))
	})
	return out
}

func recorded(r model.RecurringPayment, tx model.Transaction) bool {
	if tx.RecurringID != 0 {
		return tx.RecurringID == r.ID
	}
	return tx.Kind.IsSpend() &&
		tx.Amount.Equal(r.Amount) &&
		r.Description != "" &&
		textnorm.Fold(tx.Description) == textnorm.Fold(r.Description)
}
