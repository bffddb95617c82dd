// Package intent turns slash commands into structured requests.
package intent

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbot-dev/finbot/internal/apperr"
	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/money"
	"github.com/finbot-dev/finbot/internal/period"
)

// Action is what a command asks for.
type Action string

const (
	AddTransaction Action = "add_transaction"
	AddGoal        Action = "add_goal"
	ListGoals      Action = "list_goals"
	GoalProgress   Action = "goal_progress"
	SetBudget      Action = "set_budget"
	AddRecurring   Action = "add_recurring"
	ListRecurring  Action = "list_recurring"
	PayRecurring   Action = "pay_recurring"
	AddReminder    Action = "add_reminder"
	ListReminders  Action = "list_reminders"
	AddCategory    Action = "add_category"
	ListCategories Action = "list_categories"
	RemoveCategory Action = "remove_category"
	Report         Action = "report"
	Dashboard      Action = "dashboard"
	Balance        Action = "balance"
	MTP            Action = "mtp"
	Top            Action = "top"
	Compare        Action = "compare"
	History        Action = "history"
	Invoice        Action = "invoice"
	Cancel         Action = "cancel"
	Reset          Action = "reset"
	Help           Action = "help"
	Ask            Action = "ask"
)

// DefaultHistoryMonths is the window of /historico_meses without an argument.
const DefaultHistoryMonths = 6

// Intent is one parsed command. Fields not used by Action are zero.
type Intent struct {
	Action  Action
	Command string

	Kind        model.Kind
	Amount      decimal.NullDecimal
	Category    string
	Description string
	Scope       model.BudgetScope
	Name        string
	ID          int64
	Day         int
	Date        time.Time
	Period      period.Period // zero means the current period
	Format      string
	View        string
	Count       int
	Text        string
}

// Mutates reports whether the intent writes to the ledger.
func (in Intent) Mutates() bool {
	switch in.Action {
	case AddTransaction, AddGoal, GoalProgress, SetBudget, AddRecurring, PayRecurring,
		AddReminder, AddCategory, RemoveCategory, Reset:
		return true
	}
	return false
}

type parser func(cmd string, args []string) (Intent, error)

var commands = map[string]parser{
	"start":               simple(Help),
	"ajuda":               simple(Help),
	"help":                simple(Help),
	"cancelar":            simple(Cancel),
	"cancel":              simple(Cancel),
	"reset":               simple(Reset),
	"addgasto":            addTransaction(model.KindExpense, ""),
	"addreceita":          addTransaction(model.KindIncome, ""),
	"addreceita_parceiro": addTransaction(model.KindIncome, "Receita Parceiro"),
	"fixo":                addTransaction(model.KindFixedCost, ""),
	"vale":                addTransaction(model.KindMealVoucher, ""),
	"addmeta":             addGoal,
	"metas":               simple(ListGoals),
	"progresso_meta":      goalProgress,
	"orcamento":           budgetTotal,
	"orcamento_categoria": budgetCategory,
	"addrecorrente":       addRecurring,
	"recorrentes":         simple(ListRecurring),
	"pagar_recorrente":    payRecurring,
	"addlembrete":         addReminder,
	"lembretes":           simple(ListReminders),
	"addcategoria":        categoryName(AddCategory),
	"categorias":          simple(ListCategories),
	"removecategoria":     categoryName(RemoveCategory),
	"relatorio":           report("text", "summary"),
	"relatorio_mes":       report("text", "summary"),
	"relatorio_detalhado": report("text", "detailed"),
	"relatorio_exportar":  report("csv", ""),
	"grafico":             report("chart", ""),
	"grafico_mensal":      report("chart", ""),
	"dashboard":           withPeriod(Dashboard),
	"saldo":               withPeriod(Balance),
	"saldo_mes":           withPeriod(Balance),
	"mtp":                 mtp,
	"top3":                top,
	"comparar_meses":      withPeriod(Compare),
	"historico_meses":     history,
	"fatura":              withPeriod(Invoice),
	"ia":                  ask,
}

// Commands returns every recognized command name, sorted.
func Commands() []string {
	out := make([]string, 0, len(commands))
	for name := range commands {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Parse reads a slash command. ok is false when text is not a command.
// A recognized command with bad arguments returns a ValidationFailure carrying its usage.
func Parse(text string) (in Intent, ok bool, err error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Intent{}, false, nil
	}
	fields := strings.Fields(text[1:])
	if len(fields) == 0 {
		return Intent{}, false, nil
	}
	// Telegram appends the bot name in groups: /saldo@finbot.
	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	p, found := commands[name]
	if !found {
		return Intent{Command: name}, true, apperr.New(apperr.ValidationFailure, "intent.Parse", "comando desconhecido: /"+name)
	}
	in, err = p(name, fields[1:])
	in.Command = name
	if err != nil {
		usage := Usage(name)
		return in, true, &apperr.Error{Kind: apperr.ValidationFailure, Op: "intent.Parse", Msg: usage, Err: err}
	}
	return in, true, nil
}

func simple(a Action) parser {
	return func(string, []string) (Intent, error) {
		return Intent{Action: a}, nil
	}
}

func addTransaction(kind model.Kind, category string) parser {
	return func(_ string, args []string) (Intent, error) {
		if len(args) == 0 {
			return Intent{}, fmt.Errorf("missing amount")
		}
		amount, err := money.Parse(args[0])
		if err != nil {
			return Intent{}, err
		}
		return Intent{
			Action:      AddTransaction,
			Kind:        kind,
			Amount:      decimal.NewNullDecimal(amount),
			Category:    category,
			Description: strings.Join(args[1:], " "),
		}, nil
	}
}

func addGoal(_ string, args []string) (Intent, error) {
	if len(args) < 2 {
		return Intent{}, fmt.Errorf("missing target or name")
	}
	amount, err := money.Parse(args[0])
	if err != nil {
		return Intent{}, err
	}
	return Intent{Action: AddGoal, Amount: decimal.NewNullDecimal(amount), Name: strings.Join(args[1:], " ")}, nil
}

func goalProgress(_ string, args []string) (Intent, error) {
	if len(args) != 2 {
		return Intent{}, fmt.Errorf("want goal id and amount")
	}
	id, err := parseID(args[0])
	if err != nil {
		return Intent{}, err
	}
	amount, err := money.Parse(args[1])
	if err != nil {
		return Intent{}, err
	}
	return Intent{Action: GoalProgress, ID: id, Amount: decimal.NewNullDecimal(amount)}, nil
}

func budgetTotal(_ string, args []string) (Intent, error) {
	if len(args) == 0 {
		return Intent{}, fmt.Errorf("missing limit")
	}
	amount, err := money.Parse(args[0])
	if err != nil {
		return Intent{}, err
	}
	p, err := parsePeriod(args[1:])
	if err != nil {
		return Intent{}, err
	}
	return Intent{Action: SetBudget, Scope: model.ScopeMonthlyTotal, Amount: decimal.NewNullDecimal(amount), Period: p}, nil
}

func budgetCategory(_ string, args []string) (Intent, error) {
	if len(args) < 2 {
		return Intent{}, fmt.Errorf("missing category or limit")
	}
	amount, err := money.Parse(args[len(args)-1])
	if err != nil {
		return Intent{}, err
	}
	return Intent{
		Action:   SetBudget,
		Scope:    model.ScopeCategory,
		Category: strings.Join(args[:len(args)-1], " "),
		Amount:   decimal.NewNullDecimal(amount),
	}, nil
}

func addRecurring(_ string, args []string) (Intent, error) {
	if len(args) < 2 {
		return Intent{}, fmt.Errorf("missing amount or day")
	}
	amount, err := money.Parse(args[0])
	if err != nil {
		return Intent{}, err
	}
	day, err := parseDay(args[1])
	if err != nil {
		return Intent{}, err
	}
	return Intent{
		Action:      AddRecurring,
		Amount:      decimal.NewNullDecimal(amount),
		Day:         day,
		Description: strings.Join(args[2:], " "),
	}, nil
}

func payRecurring(_ string, args []string) (Intent, error) {
	if len(args) == 0 {
		return Intent{}, fmt.Errorf("missing recurring payment id")
	}
	id, err := parseID(args[0])
	if err != nil {
		return Intent{}, err
	}
	p, err := parsePeriod(args[1:])
	if err != nil {
		return Intent{}, err
	}
	return Intent{Action: PayRecurring, ID: id, Period: p}, nil
}

func addReminder(_ string, args []string) (Intent, error) {
	if len(args) == 0 {
		return Intent{}, fmt.Errorf("missing day or date")
	}
	in := Intent{Action: AddReminder, Description: strings.Join(args[1:], " ")}
	if d, err := time.Parse("02/01/2006", args[0]); err == nil {
		in.Date = d
		return in, nil
	}
	day, err := parseDay(args[0])
	if err != nil {
		return Intent{}, err
	}
	in.Day = day
	return in, nil
}

func categoryName(a Action) parser {
	return func(_ string, args []string) (Intent, error) {
		if len(args) == 0 {
			return Intent{}, fmt.Errorf("missing category name")
		}
		return Intent{Action: a, Name: strings.Join(args, " ")}, nil
	}
}

var reportFormats = []string{"text", "csv", "pdf", "xlsx", "chart"}

func report(format, view string) parser {
	return func(_ string, args []string) (Intent, error) {
		in := Intent{Action: Report, Format: format, View: view}
		if len(args) > 0 && slices.Contains(reportFormats, strings.ToLower(args[0])) {
			in.Format = strings.ToLower(args[0])
			args = args[1:]
		}
		p, err := parsePeriod(args)
		if err != nil {
			return Intent{}, err
		}
		in.Period = p
		return in, nil
	}
}

func withPeriod(a Action) parser {
	return func(_ string, args []string) (Intent, error) {
		p, err := parsePeriod(args)
		if err != nil {
			return Intent{}, err
		}
		return Intent{Action: a, Period: p}, nil
	}
}

func mtp(_ string, args []string) (Intent, error) {
	in := Intent{Action: MTP}
	if len(args) == 0 {
		return in, nil
	}
	if p, err := parsePeriod(args); err == nil {
		in.Period = p
		return in, nil
	}
	amount, err := money.Parse(args[0])
	if err != nil {
		return Intent{}, err
	}
	in.Amount = decimal.NewNullDecimal(amount)
	return in, nil
}

func top(_ string, args []string) (Intent, error) {
	p, err := parsePeriod(args)
	if err != nil {
		return Intent{}, err
	}
	return Intent{Action: Top, Count: 3, Period: p}, nil
}

func history(_ string, args []string) (Intent, error) {
	in := Intent{Action: History, Count: DefaultHistoryMonths}
	if len(args) == 0 {
		return in, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > 24 {
		return Intent{}, fmt.Errorf("months must be between 1 and 24")
	}
	in.Count = n
	return in, nil
}

func ask(_ string, args []string) (Intent, error) {
	if len(args) == 0 {
		return Intent{}, fmt.Errorf("missing question")
	}
	return Intent{Action: Ask, Text: strings.Join(args, " ")}, nil
}

// parsePeriod accepts nothing, "2025-03", "03/2025" or "3 2025".
func parsePeriod(args []string) (period.Period, error) {
	switch len(args) {
	case 0:
		return period.Period{}, nil
	case 1:
		s := args[0]
		if m, y, ok := strings.Cut(s, "/"); ok {
			return monthYear(m, y)
		}
		return period.Parse(s)
	case 2:
		return monthYear(args[0], args[1])
	}
	return period.Period{}, fmt.Errorf("too many arguments")
}

func monthYear(m, y string) (period.Period, error) {
	month, err := strconv.Atoi(m)
	if err != nil || month < 1 || month > 12 {
		return period.Period{}, fmt.Errorf("invalid month %q", m)
	}
	year, err := strconv.Atoi(y)
	if err != nil || year < 2000 || year > 2100 {
		return period.Period{}, fmt.Errorf("invalid year %q", y)
	}
	return period.New(year, time.Month(month)), nil
}

func parseDay(s string) (int, error) {
	day, err := strconv.Atoi(s)
	if err != nil || day < 1 || day > 31 {
		return 0, fmt.Errorf("day must be between 1 and 31")
	}
	return day, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
