package intent

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbot-dev/finbot/internal/apperr"
	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/period"
)

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestParseNotACommand(t *testing.T) {
	for _, text := range []string{"gastei 45 no mercado", "", "   ", "/", "sim"} {
		_, ok, err := Parse(text)
		assert.False(t, ok, text)
		assert.NoError(t, err, text)
	}
}

func TestParseAddTransaction(t *testing.T) {
	tests := []struct {
		text string
		want Intent
	}{
		{
			text: "/addgasto 50 Supermercado",
			want: Intent{Action: AddTransaction, Command: "addgasto", Kind: model.KindExpense, Amount: amount("50"), Description: "Supermercado"},
		},
		{
			text: "/addgasto 12,50",
			want: Intent{Action: AddTransaction, Command: "addgasto", Kind: model.KindExpense, Amount: amount("12.50")},
		},
		{
			text: "/addreceita 3000 salário março",
			want: Intent{Action: AddTransaction, Command: "addreceita", Kind: model.KindIncome, Amount: amount("3000"), Description: "salário março"},
		},
		{
			text: "/addreceita_parceiro 1500",
			want: Intent{Action: AddTransaction, Command: "addreceita_parceiro", Kind: model.KindIncome, Amount: amount("1500"), Category: "Receita Parceiro"},
		},
		{
			text: "/fixo 1200 aluguel",
			want: Intent{Action: AddTransaction, Command: "fixo", Kind: model.KindFixedCost, Amount: amount("1200"), Description: "aluguel"},
		},
		{
			text: "/vale R$30 almoço",
			want: Intent{Action: AddTransaction, Command: "vale", Kind: model.KindMealVoucher, Amount: amount("30"), Description: "almoço"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok, err := Parse(tt.text)
			require.True(t, ok)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Action, got.Action)
			assert.Equal(t, tt.want.Command, got.Command)
			assert.Equal(t, tt.want.Kind, got.Kind)
			assert.True(t, tt.want.Amount.Decimal.Equal(got.Amount.Decimal))
			assert.True(t, got.Amount.Valid)
			assert.Equal(t, tt.want.Category, got.Category)
			assert.Equal(t, tt.want.Description, got.Description)
			assert.True(t, got.Mutates())
		})
	}
}

func TestParseBadArgumentsCarryUsage(t *testing.T) {
	tests := []string{
		"/addgasto",
		"/addgasto abc mercado",
		"/addgasto -5 mercado",
		"/progresso_meta 1",
		"/progresso_meta x 10",
		"/orcamento_categoria 500",
		"/addrecorrente 100 40 aluguel",
		"/addlembrete 0 pagar conta",
		"/historico_meses 99",
		"/ia",
		"/relatorio 13 2024",
	}
	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			_, ok, err := Parse(text)
			assert.True(t, ok)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.ValidationFailure))
		})
	}

	_, _, err := Parse("/addgasto")
	assert.Contains(t, err.Error(), "Uso correto: /addgasto <valor> <descrição>")
}

func TestParseUnknownCommand(t *testing.T) {
	in, ok, err := Parse("/voar alto")
	assert.True(t, ok)
	assert.Equal(t, "voar", in.Command)
	assert.True(t, apperr.Is(err, apperr.ValidationFailure))
}

func TestParseStripsBotName(t *testing.T) {
	in, ok, err := Parse("/saldo@finbot")
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, Balance, in.Action)
}

func TestParseBudgets(t *testing.T) {
	in, _, err := Parse("/orcamento 1500")
	require.NoError(t, err)
	assert.Equal(t, SetBudget, in.Action)
	assert.Equal(t, model.ScopeMonthlyTotal, in.Scope)
	assert.True(t, in.Period.IsZero())

	in, _, err = Parse("/orcamento 1500 2025-04")
	require.NoError(t, err)
	assert.Equal(t, period.New(2025, time.April), in.Period)

	in, _, err = Parse("/orcamento_categoria Fast Food 300,00")
	require.NoError(t, err)
	assert.Equal(t, model.ScopeCategory, in.Scope)
	assert.Equal(t, "Fast Food", in.Category)
	assert.True(t, in.Amount.Decimal.Equal(decimal.NewFromInt(300)))
}

func TestParseGoalsRecurringReminders(t *testing.T) {
	in, _, err := Parse("/addmeta 5000 Viagem Japão")
	require.NoError(t, err)
	assert.Equal(t, AddGoal, in.Action)
	assert.Equal(t, "Viagem Japão", in.Name)

	in, _, err = Parse("/progresso_meta #2 150,5")
	require.NoError(t, err)
	assert.Equal(t, int64(2), in.ID)
	assert.True(t, in.Amount.Decimal.Equal(decimal.RequireFromString("150.5")))

	in, _, err = Parse("/addrecorrente 89,90 10 internet")
	require.NoError(t, err)
	assert.Equal(t, AddRecurring, in.Action)
	assert.Equal(t, 10, in.Day)
	assert.Equal(t, "internet", in.Description)

	in, _, err = Parse("/pagar_recorrente 4")
	require.NoError(t, err)
	assert.Equal(t, PayRecurring, in.Action)
	assert.Equal(t, int64(4), in.ID)

	in, _, err = Parse("/addlembrete 31 pagar cartão")
	require.NoError(t, err)
	assert.Equal(t, 31, in.Day)
	assert.True(t, in.Date.IsZero())

	in, _, err = Parse("/addlembrete 15/04/2025 IPVA")
	require.NoError(t, err)
	assert.Equal(t, 0, in.Day)
	assert.Equal(t, time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC), in.Date)
	assert.Equal(t, "IPVA", in.Description)
}

func TestParseReports(t *testing.T) {
	tests := []struct {
		text   string
		format string
		view   string
		period period.Period
	}{
		{"/relatorio", "text", "summary", period.Period{}},
		{"/relatorio pdf", "pdf", "summary", period.Period{}},
		{"/relatorio_mes 9 2024", "text", "summary", period.New(2024, time.September)},
		{"/relatorio_detalhado 03/2025", "text", "detailed", period.New(2025, time.March)},
		{"/relatorio_exportar", "csv", "", period.Period{}},
		{"/relatorio_exportar xlsx", "xlsx", "", period.Period{}},
		{"/grafico", "chart", "", period.Period{}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			in, ok, err := Parse(tt.text)
			require.True(t, ok)
			require.NoError(t, err)
			assert.Equal(t, Report, in.Action)
			assert.Equal(t, tt.format, in.Format)
			assert.Equal(t, tt.view, in.View)
			assert.Equal(t, tt.period, in.Period)
			assert.False(t, in.Mutates())
		})
	}
}

func TestParseQueries(t *testing.T) {
	in, _, _ := Parse("/top3")
	assert.Equal(t, Top, in.Action)
	assert.Equal(t, 3, in.Count)

	in, _, _ = Parse("/historico_meses")
	assert.Equal(t, DefaultHistoryMonths, in.Count)

	in, _, _ = Parse("/mtp 3000")
	assert.Equal(t, MTP, in.Action)
	assert.True(t, in.Amount.Valid)

	in, _, _ = Parse("/mtp 2025-02")
	assert.False(t, in.Amount.Valid)
	assert.Equal(t, period.New(2025, time.February), in.Period)

	in, _, _ = Parse("/ia como economizar mais?")
	assert.Equal(t, Ask, in.Action)
	assert.Equal(t, "como economizar mais?", in.Text)

	in, _, _ = Parse("/CANCELAR")
	assert.Equal(t, Cancel, in.Action)
}

func TestParseReset(t *testing.T) {
	in, ok, err := Parse("/reset")
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, Reset, in.Action)
	assert.True(t, in.Mutates())
	assert.Contains(t, HelpText(), "/reset")
}

func TestEveryCommandHasAHandler(t *testing.T) {
	for _, name := range Commands() {
		_, ok, _ := Parse("/" + name)
		assert.True(t, ok, name)
	}
	assert.Contains(t, HelpText(), "/addgasto")
}
