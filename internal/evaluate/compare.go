package evaluate

import (
	"cmp"
	"context"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/finbot-dev/finbot/internal/ledger"
	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/period"
)

// MonthTotals is income and spend for one period.
type MonthTotals struct {
	Period string          `json:"period"`
	Income decimal.Decimal `json:"income"`
	Spent  decimal.Decimal `json:"spent"`
}

// Comparison sets a period against the one before it.
type Comparison struct {
	Current    MonthTotals         `json:"current"`
	Previous   MonthTotals         `json:"previous"`
	Difference decimal.Decimal     `json:"difference"` // current spend minus previous spend
	PctChange  decimal.NullDecimal `json:"pct_change"` // null when nothing was spent previously
	ByCategory []CategoryTotal     `json:"by_category"`
}

// Top returns the n largest spends in p, largest first.
func (e *Evaluator) Top(ctx context.Context, userID int64, p period.Period, n int) ([]model.Transaction, error) {
	f := ledger.ForPeriod(userID, p)
	f.Kinds = []model.Kind{model.KindExpense, model.KindFixedCost, model.KindMealVoucher}
	txs, err := e.ledger.Collect(ctx, f)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(txs, func(a, b model.Transaction) int {
		return cmp.Or(b.Amount.Cmp(a.Amount), a.Date.Compare(b.Date), cmp.Compare(a.ID, b.ID))
	})
	if n >= 0 && len(txs) > n {
		txs = txs[:n]
	}
	return txs, nil
}

// Compare measures p's spend against the previous period.
func (e *Evaluator) Compare(ctx context.Context, userID int64, p period.Period) (Comparison, error) {
	cur, err := e.month(ctx, userID, p)
	if err != nil {
		return Comparison{}, err
	}
	prev, err := e.month(ctx, userID, p.Prev())
	if err != nil {
		return Comparison{}, err
	}

	c := Comparison{
		Current:    cur.totals(p),
		Previous:   prev.totals(p.Prev()),
		ByCategory: topCategories(cur.byCategory()),
	}
	c.Difference = c.Current.Spent.Sub(c.Previous.Spent)
	if c.Previous.Spent.IsPositive() {
		c.PctChange = decimal.NewNullDecimal(c.Difference.Div(c.Previous.Spent).Mul(hundred).Round(2))
	}
	return c, nil
}

// History returns per-month totals for the months periods ending at p, oldest first.
func (e *Evaluator) History(ctx context.Context, userID int64, p period.Period, months int) ([]MonthTotals, error) {
	if months < 1 {
		months = 1
	}
	start := p
	for range months - 1 {
		start = start.Prev()
	}

	f := ledger.Filter{UserID: userID, From: start.Start(), To: p.End()}
	byPeriod := make(map[period.Period][]model.Transaction)
	for tx, err := range e.ledger.Query(ctx, f) {
		if err != nil {
			return nil, err
		}
		byPeriod[period.Of(tx.Date)] = append(byPeriod[period.Of(tx.Date)], tx)
	}

	out := make([]MonthTotals, 0, months)
	for q := start; !p.Before(q); q = q.Next() {
		out = append(out, summarize(byPeriod[q]).totals(q))
	}
	return out, nil
}

func (e *Evaluator) month(ctx context.Context, userID int64, p period.Period) (summary, error) {
	txs, err := e.ledger.Collect(ctx, ledger.ForPeriod(userID, p))
	if err != nil {
		return summary{}, err
	}
	return summarize(txs), nil
}

func (s summary) totals(p period.Period) MonthTotals {
	return MonthTotals{Period: p.String(), Income: s.income, Spent: s.spent}
}
