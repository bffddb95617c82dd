package evaluate

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/textnorm"
)

// summary accumulates one period's transactions.
type summary struct {
	income     decimal.Decimal
	spent      decimal.Decimal
	kinds      map[model.Kind]decimal.Decimal
	categories map[string]decimal.Decimal // folded name -> spend
	names      map[string]string          // folded name -> first spelling seen
}

func summarize(txs []model.Transaction) summary {
	s := summary{
		income:     decimal.Zero,
		spent:      decimal.Zero,
		kinds:      make(map[model.Kind]decimal.Decimal),
		categories: make(map[string]decimal.Decimal),
		names:      make(map[string]string),
	}
	for _, tx := range txs {
		if tx.Kind == model.KindIncome {
			s.income = s.income.Add(tx.Amount)
			continue
		}
		if !tx.Kind.IsSpend() {
			continue
		}
		s.spent = s.spent.Add(tx.Amount)
		s.kinds[tx.Kind] = s.kinds[tx.Kind].Add(tx.Amount)

		key := textnorm.Fold(tx.Category)
		s.categories[key] = s.categories[key].Add(tx.Amount)
		if _, ok := s.names[key]; !ok {
			s.names[key] = tx.Category
		}
	}
	return s
}

func (s summary) categoryAmount(key string) decimal.Decimal {
	if amt, ok := s.categories[key]; ok {
		return amt
	}
	return decimal.Zero
}

// byKind lists spend per kind in model.Kinds order, skipping kinds with no spend.
func (s summary) byKind() []KindTotal {
	out := []KindTotal{}
	for _, k := range model.Kinds {
		if amt, ok := s.kinds[k]; ok {
			out = append(out, KindTotal{Kind: k, Amount: amt})
		}
	}
	return out
}

// byCategory lists spend per category sorted by folded name.
func (s summary) byCategory() []CategoryTotal {
	keys := make([]string, 0, len(s.categories))
	for k := range s.categories {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make([]CategoryTotal, 0, len(keys))
	for _, k := range keys {
		out = append(out, CategoryTotal{Category: s.names[k], Amount: s.categories[k]})
	}
	return out
}

// topCategories orders category totals by spend, largest first.
func topCategories(totals []CategoryTotal) []CategoryTotal {
	out := slices.Clone(totals)
	slices.SortStableFunc(out, func(a, b CategoryTotal) int {
		return b.Amount.Cmp(a.Amount)
	})
	return out
}
