package report

import (
	"fmt"
	"strings"

	"github.com/finbot-dev/finbot/internal/conversation"
	"github.com/finbot-dev/finbot/internal/evaluate"
	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/money"
)

// TextRenderer renders plain text suitable for a chat message.
type TextRenderer struct{}

func (TextRenderer) Format() string { return "text" }

func (TextRenderer) Render(p Payload) (Document, error) {
	var text string
	switch p.View {
	case ViewSummary:
		text = Summary(p.Result)
	case ViewDetailed:
		text = Detailed(p.Result, p.Transactions)
	case ViewDashboard, "":
		text = Dashboard(p.Result)
	default:
		return Document{}, fmt.Errorf("unknown view %q", p.View)
	}
	return Document{
		Name:     fileName(p.Result, p.View, "txt"),
		MIMEType: "text/plain; charset=utf-8",
		Data:     []byte(text),
	}, nil
}

// Summary is the short monthly balance.
func Summary(r evaluate.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Resumo %s\n", r.Period)
	fmt.Fprintf(&b, "Receitas: %s\n", money.Format(r.TotalIncome))
	fmt.Fprintf(&b, "Gastos: %s\n", money.Format(r.TotalSpent))
	fmt.Fprintf(&b, "Saldo: %s\n", money.Format(r.Net))
	return b.String()
}

// Dashboard is the full evaluation as text.
func Dashboard(r evaluate.Result) string {
	var b strings.Builder
	b.WriteString(Summary(r))

	if len(r.SpentByKind) > 0 {
		b.WriteString("\nPor tipo:\n")
		for _, k := range r.SpentByKind {
			fmt.Fprintf(&b, "  %s: %s\n", conversation.KindNoun(k.Kind), money.Format(k.Amount))
		}
	}
	if len(r.SpentByCategory) > 0 {
		b.WriteString("\nPor categoria:\n")
		for _, c := range r.SpentByCategory {
			fmt.Fprintf(&b, "  %s: %s\n", c.Category, money.Format(c.Amount))
		}
	}

	var budgets []evaluate.BudgetStatus
	for _, s := range r.Budgets {
		if s.Limit.Valid {
			budgets = append(budgets, s)
		}
	}
	if len(budgets) > 0 {
		b.WriteString("\nOrçamentos:\n")
		for _, s := range budgets {
			name := "Total do mês"
			if s.Scope == model.ScopeCategory {
				name = s.Category
			}
			fmt.Fprintf(&b, "  %s: %s de %s (%s%%)%s\n", name,
				money.Format(s.Spent), money.Format(s.Limit.Decimal),
				s.PctUsed.Decimal.StringFixed(0), budgetMark(s))
		}
	}

	if len(r.Goals) > 0 {
		b.WriteString("\nMetas:\n")
		for _, g := range r.Goals {
			fmt.Fprintf(&b, "  %s: %s de %s (%s%%)\n", g.Name,
				money.Format(g.Current), money.Format(g.Target), g.PctComplete.StringFixed(0))
		}
	}

	if len(r.Projected) > 0 {
		b.WriteString("\nPrevistos:\n")
		for _, p := range r.Projected {
			fmt.Fprintf(&b, "  %s %s: %s\n", p.Date, p.Description, money.Format(p.Amount))
		}
		fmt.Fprintf(&b, "  Total previsto: %s\n", money.Format(r.ProjectedTotal))
	}

	if r.MTP.Income.IsPositive() {
		b.WriteString("\n")
		b.WriteString(MTP(r.MTP))
	}

	if len(r.Alerts) > 0 {
		b.WriteString("\nAlertas:\n")
		for _, a := range r.Alerts {
			fmt.Fprintf(&b, "  %s\n", a.Message)
		}
	}
	return b.String()
}

// MTP renders an allocation.
func MTP(a evaluate.Allocation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Método Traz Paz sobre %s:\n", money.Format(a.Income))
	fmt.Fprintf(&b, "  Poupança (%s%%): %s\n", a.Split.Savings.String(), money.Format(a.Savings))
	fmt.Fprintf(&b, "  Investimento (%s%%): %s\n", a.Split.Investment.String(), money.Format(a.Investment))
	fmt.Fprintf(&b, "  Gastos (%s%%): %s\n", a.Split.Expense.String(), money.Format(a.Expense))
	return b.String()
}

// Detailed lists every transaction after the summary.
func Detailed(r evaluate.Result, txs []model.Transaction) string {
	var b strings.Builder
	b.WriteString(Summary(r))
	if len(txs) == 0 {
		b.WriteString("\nNenhuma transação no período.\n")
		return b.String()
	}
	b.WriteString("\nTransações:\n")
	for _, tx := range txs {
		fmt.Fprintf(&b, "  %s %s %s %s", tx.Date.Format("02/01"), conversation.KindNoun(tx.Kind), tx.Category, money.Format(tx.Amount))
		if tx.Description != "" {
			fmt.Fprintf(&b, " (%s)", tx.Description)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func budgetMark(s evaluate.BudgetStatus) string {
	switch {
	case s.OverBudget:
		return " estourado"
	case s.Warning:
		return " atenção"
	}
	return ""
}
