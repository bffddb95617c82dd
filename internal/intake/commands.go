package intake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finbot-dev/finbot/internal/apperr"
	"github.com/finbot-dev/finbot/internal/auditlog"
	"github.com/finbot-dev/finbot/internal/conversation"
	"github.com/finbot-dev/finbot/internal/evaluate"
	"github.com/finbot-dev/finbot/internal/intent"
	"github.com/finbot-dev/finbot/internal/ledger"
	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/money"
	"github.com/finbot-dev/finbot/internal/period"
	"github.com/finbot-dev/finbot/internal/report"
	"github.com/finbot-dev/finbot/internal/textnorm"
)

const rejectText = "Há um registro em andamento. Responda a pergunta abaixo ou envie /cancelar."

// creditCategory is the built-in category /fatura sums.
const creditCategory = "Crédito"

// Execute runs a command. A command that writes to the ledger while a conversation is
// open either cancels the conversation first or is refused, depending on the policy.
// Read-only commands leave the conversation alone.
func (e *Engine) Execute(ctx context.Context, in Inbound, it intent.Intent) (Reply, error) {
	sess, err := e.store.Acquire(ctx, in.key())
	if err != nil {
		return Reply{}, err
	}
	defer sess.Release()
	e.noteExpired(sess)

	st, active := sess.State()
	if it.Action == intent.Cancel {
		if !active {
			return Reply{Text: "Nada para cancelar."}, nil
		}
		st.Stage = conversation.StageAbandoned
		sess.Clear()
		e.record(st, auditlog.EventAbandoned, "/"+it.Command)
		return stateReply(st), nil
	}

	var prefix string
	if active && it.Mutates() {
		switch e.policy {
		case conversation.OnCommandReject:
			e.record(st, auditlog.EventRejected, "/"+it.Command)
			r := stateReply(st)
			r.Text = rejectText + "\n" + r.Text
			return r, nil
		default:
			st.Stage = conversation.StageAbandoned
			sess.Clear()
			e.record(st, auditlog.EventAbandoned, "cancelled by /"+it.Command)
			prefix = "Registro anterior cancelado.\n"
		}
	}

	reply, err := e.run(ctx, sess, in, it)
	if err != nil {
		reply, err = e.failure("intake.Execute", err)
	}
	reply.Text = prefix + reply.Text
	return reply, err
}

func (e *Engine) run(ctx context.Context, sess *conversation.Session, in Inbound, it intent.Intent) (Reply, error) {
	switch it.Action {
	case intent.Help:
		return Reply{Text: intent.HelpText()}, nil
	case intent.AddTransaction:
		return e.addTransaction(ctx, sess, in, it)
	case intent.Reset:
		return e.reset(sess, in, it), nil
	case intent.AddGoal:
		return e.addGoal(ctx, in, it)
	case intent.ListGoals:
		return e.listGoals(ctx, in)
	case intent.GoalProgress:
		return e.goalProgress(ctx, in, it)
	case intent.SetBudget:
		return e.setBudget(ctx, in, it)
	case intent.AddRecurring:
		return e.addRecurring(ctx, in, it)
	case intent.ListRecurring:
		return e.listRecurring(ctx, in)
	case intent.PayRecurring:
		return e.payRecurring(ctx, in, it)
	case intent.AddReminder:
		return e.addReminder(ctx, in, it)
	case intent.ListReminders:
		return e.listReminders(ctx, in)
	case intent.AddCategory:
		c, err := e.ledger.AddCategory(ctx, in.UserID, it.Name)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Text: fmt.Sprintf("Categoria %q criada.", c.Name)}, nil
	case intent.ListCategories:
		return e.listCategories(ctx, in)
	case intent.RemoveCategory:
		if err := e.ledger.RemoveCategory(ctx, in.UserID, it.Name); err != nil {
			return Reply{}, err
		}
		return Reply{Text: fmt.Sprintf("Categoria %q removida.", it.Name)}, nil
	case intent.Report:
		return e.report(ctx, in, it)
	case intent.Dashboard, intent.Balance:
		res, err := e.eval.Evaluate(ctx, in.UserID, e.period(it))
		if err != nil {
			return Reply{}, err
		}
		if it.Action == intent.Balance {
			return Reply{Text: report.Summary(res)}, nil
		}
		return Reply{Text: report.Dashboard(res), Alerts: res.Alerts}, nil
	case intent.MTP:
		return e.mtp(ctx, in, it)
	case intent.Top:
		return e.top(ctx, in, it)
	case intent.Compare:
		return e.compare(ctx, in, it)
	case intent.History:
		return e.history(ctx, in, it)
	case intent.Invoice:
		return e.invoice(ctx, in, it)
	case intent.Ask:
		return e.ask(ctx, it)
	}
	return Reply{}, apperr.New(apperr.ValidationFailure, "intake.Execute", "comando não suportado: /"+it.Command)
}

// period returns the intent's period, defaulting to the current month.
func (e *Engine) period(it intent.Intent) period.Period {
	if !it.Period.IsZero() {
		return it.Period
	}
	return period.Of(e.now())
}

// addTransaction commits directly when the category and date are known. A date phrase
// in the description sets the date. An expense whose description names no single
// category, or that carries no date, continues as a conversation.
func (e *Engine) addTransaction(ctx context.Context, sess *conversation.Session, in Inbound, it intent.Intent) (Reply, error) {
	now := e.now()
	category := it.Category
	if category == "" {
		category = it.Kind.DefaultCategory()
	}

	draft := model.Draft{
		Kind:        it.Kind,
		Amount:      it.Amount,
		Category:    category,
		Description: it.Description,
		Date:        period.DateOf(now),
		Confidence:  model.ConfidenceHigh,
		RawText:     in.Text,
	}
	if date, rest, ok := e.findDate(it.Description, now); ok {
		draft.Date = date
		draft.DateExplicit = true
		draft.Description = rest
	}

	askDate := draft.Kind == model.KindExpense && !draft.DateExplicit
	if category == "" || askDate {
		vocab, err := e.ledger.Vocabulary(ctx, in.UserID)
		if err != nil {
			return Reply{}, err
		}
		if category == "" {
			matches, _ := vocab.Match(textnorm.Words(draft.Description))
			if len(matches) == 1 {
				draft.Category = matches[0]
			} else {
				draft.Confidence = model.ConfidenceLow
				draft.Candidates = matches
				draft.CategoryGuess = draft.Description
			}
		}
		if draft.Category == "" || askDate {
			st := e.machine.Begin(e.newID(), in.key(), draft, vocab, now)
			sess.Put(st)
			e.record(st, auditlog.EventStarted, "/"+it.Command)
			return stateReply(st), nil
		}
	}

	saved, err := e.ledger.Commit(ctx, model.Transaction{
		UserID:         in.UserID,
		Kind:           draft.Kind,
		Amount:         draft.Amount.Decimal,
		Category:       draft.Category,
		Description:    draft.Description,
		Date:           draft.Date,
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		return Reply{}, err
	}
	return e.committed(ctx, in.key(), saved), nil
}

// findDate takes the first date phrase out of a command's free text, along with
// the fillers and prepositions right before it ("dia", "em").
func (e *Engine) findDate(text string, now time.Time) (time.Time, string, bool) {
	resolver := e.machine.Resolver()
	tokens := textnorm.Tokens(text)
	date, span, ok := resolver.Find(textnorm.Folded(tokens), now)
	if !ok {
		return time.Time{}, text, false
	}
	lex := resolver.Lexicon()
	drop := make(map[int]bool, len(span)+1)
	for _, i := range span {
		drop[i] = true
	}
	for i := span[0] - 1; i >= 0 && (lex.IsFiller(tokens[i].Folded) || lex.IsPreposition(tokens[i].Folded)); i-- {
		drop[i] = true
	}
	rest := make([]string, 0, len(tokens))
	for i, t := range tokens {
		if !drop[i] {
			rest = append(rest, t.Raw)
		}
	}
	return date, strings.Join(rest, " "), true
}

// reset opens the confirmation step for wiping the user's data.
func (e *Engine) reset(sess *conversation.Session, in Inbound, it intent.Intent) Reply {
	st := e.machine.BeginReset(e.newID(), in.key(), e.now())
	sess.Put(st)
	e.record(st, auditlog.EventStarted, "/"+it.Command)
	return stateReply(st)
}

func (e *Engine) addGoal(ctx context.Context, in Inbound, it intent.Intent) (Reply, error) {
	g, err := e.ledger.AddGoal(ctx, in.UserID, it.Name, it.Amount.Decimal)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf("Meta #%d %q criada: %s.", g.ID, g.Name, money.Format(g.Target))}, nil
}

func (e *Engine) listGoals(ctx context.Context, in Inbound) (Reply, error) {
	goals, err := e.ledger.ListGoals(ctx, in.UserID)
	if err != nil {
		return Reply{}, err
	}
	if len(goals) == 0 {
		return Reply{Text: "Nenhuma meta cadastrada. Use /addmeta <valor> <nome>."}, nil
	}
	var b strings.Builder
	b.WriteString("Metas:")
	for _, g := range goals {
		fmt.Fprintf(&b, "\n#%d %s: %s de %s (%s%%)", g.ID, g.Name,
			money.Format(g.Current), money.Format(g.Target), g.PctComplete().StringFixed(0))
		if g.Complete() {
			b.WriteString(" concluída")
		}
	}
	return Reply{Text: b.String()}, nil
}

func (e *Engine) goalProgress(ctx context.Context, in Inbound, it intent.Intent) (Reply, error) {
	before, err := e.findGoal(ctx, in.UserID, it.ID)
	if err != nil {
		return Reply{}, err
	}
	g, err := e.ledger.AddGoalProgress(ctx, in.UserID, it.ID, it.Amount.Decimal)
	if err != nil {
		return Reply{}, err
	}
	reply := Reply{Text: fmt.Sprintf("Meta %q: %s de %s (%s%%).", g.Name,
		money.Format(g.Current), money.Format(g.Target), g.PctComplete().StringFixed(0))}
	if g.Complete() && !before.Complete() {
		a := evaluate.Alert{
			Type:    evaluate.AlertGoalComplete,
			GoalID:  g.ID,
			Message: fmt.Sprintf("Parabéns! Meta %s concluída.", g.Name),
		}
		reply.Alerts = []evaluate.Alert{a}
		reply.Text += "\n" + a.Message
		e.publish(ctx, alertEvent(in.key(), a, e.now()))
	}
	return reply, nil
}

func (e *Engine) findGoal(ctx context.Context, userID, id int64) (model.SavingsGoal, error) {
	goals, err := e.ledger.ListGoals(ctx, userID)
	if err != nil {
		return model.SavingsGoal{}, err
	}
	for _, g := range goals {
		if g.ID == id {
			return g, nil
		}
	}
	return model.SavingsGoal{}, apperr.New(apperr.ValidationFailure, "intake.GoalProgress", fmt.Sprintf("meta #%d não encontrada", id))
}

func (e *Engine) setBudget(ctx context.Context, in Inbound, it intent.Intent) (Reply, error) {
	p := e.period(it)
	b, err := e.ledger.SetBudget(ctx, in.UserID, it.Scope, it.Category, it.Amount.Decimal, p)
	if err != nil {
		return Reply{}, err
	}
	if b.Scope == model.ScopeCategory {
		return Reply{Text: fmt.Sprintf("Orçamento de %s em %s: %s.", b.Category, p, money.Format(b.Limit))}, nil
	}
	return Reply{Text: fmt.Sprintf("Orçamento mensal de %s: %s.", p, money.Format(b.Limit))}, nil
}

func (e *Engine) addRecurring(ctx context.Context, in Inbound, it intent.Intent) (Reply, error) {
	r, err := e.ledger.AddRecurring(ctx, in.UserID, it.Amount.Decimal, it.Day, it.Description)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf("Pagamento recorrente #%d: %s todo dia %d (%s).",
		r.ID, money.Format(r.Amount), r.DayOfMonth, r.Description)}, nil
}

func (e *Engine) listRecurring(ctx context.Context, in Inbound) (Reply, error) {
	list, err := e.ledger.ListRecurring(ctx, in.UserID)
	if err != nil {
		return Reply{}, err
	}
	if len(list) == 0 {
		return Reply{Text: "Nenhum pagamento recorrente. Use /addrecorrente <valor> <dia> <descrição>."}, nil
	}
	var b strings.Builder
	b.WriteString("Pagamentos recorrentes:")
	for _, r := range list {
		fmt.Fprintf(&b, "\n#%d dia %d: %s %s", r.ID, r.DayOfMonth, r.Description, money.Format(r.Amount))
	}
	return Reply{Text: b.String()}, nil
}

// payRecurring records a recurring payment for a period. Paying twice in one
// period returns the first transaction.
func (e *Engine) payRecurring(ctx context.Context, in Inbound, it intent.Intent) (Reply, error) {
	tx, err := e.ledger.MaterializeRecurring(ctx, in.UserID, it.ID, e.period(it))
	if err != nil {
		return Reply{}, err
	}
	return e.committed(ctx, in.key(), tx), nil
}

func (e *Engine) addReminder(ctx context.Context, in Inbound, it intent.Intent) (Reply, error) {
	r, err := e.ledger.AddReminder(ctx, in.UserID, in.ChatID, it.Day, it.Date, it.Description)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Text: fmt.Sprintf("Lembrete #%d criado: %s (%s).", r.ID, r.Description, reminderWhen(r))}, nil
}

func (e *Engine) listReminders(ctx context.Context, in Inbound) (Reply, error) {
	list, err := e.ledger.ListReminders(ctx, in.UserID)
	if err != nil {
		return Reply{}, err
	}
	if len(list) == 0 {
		return Reply{Text: "Nenhum lembrete. Use /addlembrete <dia> <descrição>."}, nil
	}
	var b strings.Builder
	b.WriteString("Lembretes:")
	for _, r := range list {
		fmt.Fprintf(&b, "\n#%d %s: %s", r.ID, reminderWhen(r), r.Description)
	}
	return Reply{Text: b.String()}, nil
}

func reminderWhen(r model.Reminder) string {
	if !r.Date.IsZero() {
		return r.Date.Format("02/01/2006")
	}
	return fmt.Sprintf("todo dia %d", r.DayOfMonth)
}

func (e *Engine) listCategories(ctx context.Context, in Inbound) (Reply, error) {
	cats, err := e.ledger.ListCategories(ctx, in.UserID)
	if err != nil {
		return Reply{}, err
	}
	var builtin, custom []string
	for _, c := range cats {
		if c.IsCustom {
			custom = append(custom, c.Name)
		} else {
			builtin = append(builtin, c.Name)
		}
	}
	text := "Categorias padrão: " + strings.Join(builtin, ", ")
	if len(custom) > 0 {
		text += "\nSuas categorias: " + strings.Join(custom, ", ")
	}
	return Reply{Text: text}, nil
}

func (e *Engine) report(ctx context.Context, in Inbound, it intent.Intent) (Reply, error) {
	p := e.period(it)
	res, err := e.eval.Evaluate(ctx, in.UserID, p)
	if err != nil {
		return Reply{}, err
	}
	txs, err := e.ledger.Collect(ctx, ledger.ForPeriod(in.UserID, p))
	if err != nil {
		return Reply{}, err
	}
	doc, err := e.reports.Render(it.Format, report.Payload{View: report.View(it.View), Result: res, Transactions: txs})
	if err != nil {
		return Reply{}, err
	}
	if it.Format == "text" {
		return Reply{Text: string(doc.Data)}, nil
	}
	return Reply{Text: fmt.Sprintf("Relatório de %s em anexo.", p), Document: &doc}, nil
}

func (e *Engine) mtp(ctx context.Context, in Inbound, it intent.Intent) (Reply, error) {
	if it.Amount.Valid {
		return Reply{Text: report.MTP(evaluate.Allocate(it.Amount.Decimal, e.eval.Split()))}, nil
	}
	res, err := e.eval.Evaluate(ctx, in.UserID, e.period(it))
	if err != nil {
		return Reply{}, err
	}
	if !res.MTP.Income.IsPositive() {
		return Reply{Text: "Nenhuma receita no período. Use /mtp <renda> ou registre com /addreceita."}, nil
	}
	return Reply{Text: report.MTP(res.MTP)}, nil
}

func (e *Engine) top(ctx context.Context, in Inbound, it intent.Intent) (Reply, error) {
	txs, err := e.eval.Top(ctx, in.UserID, e.period(it), it.Count)
	if err != nil {
		return Reply{}, err
	}
	if len(txs) == 0 {
		return Reply{Text: "Nenhum gasto no período."}, nil
	}
	var b strings.Builder
	b.WriteString("Maiores gastos:")
	for i, tx := range txs {
		fmt.Fprintf(&b, "\n%d. %s %s %s", i+1, tx.Date.Format("02/01"), tx.Category, money.Format(tx.Amount))
		if tx.Description != "" {
			fmt.Fprintf(&b, " (%s)", tx.Description)
		}
	}
	return Reply{Text: b.String()}, nil
}

func (e *Engine) compare(ctx context.Context, in Inbound, it intent.Intent) (Reply, error) {
	c, err := e.eval.Compare(ctx, in.UserID, e.period(it))
	if err != nil {
		return Reply{}, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", c.Current.Period, money.Format(c.Current.Spent))
	fmt.Fprintf(&b, "%s: %s\n", c.Previous.Period, money.Format(c.Previous.Spent))
	fmt.Fprintf(&b, "Diferença: %s", money.Format(c.Difference))
	if c.PctChange.Valid {
		fmt.Fprintf(&b, " (%s%%)", c.PctChange.Decimal.StringFixed(1))
	}
	for _, ct := range c.ByCategory {
		fmt.Fprintf(&b, "\n  %s: %s", ct.Category, money.Format(ct.Amount))
	}
	return Reply{Text: b.String()}, nil
}

func (e *Engine) history(ctx context.Context, in Inbound, it intent.Intent) (Reply, error) {
	months, err := e.eval.History(ctx, in.UserID, e.period(it), it.Count)
	if err != nil {
		return Reply{}, err
	}
	var b strings.Builder
	b.WriteString("Histórico:")
	for _, m := range months {
		fmt.Fprintf(&b, "\n%s receitas %s, gastos %s", m.Period, money.Format(m.Income), money.Format(m.Spent))
	}
	return Reply{Text: b.String()}, nil
}

func (e *Engine) invoice(ctx context.Context, in Inbound, it intent.Intent) (Reply, error) {
	p := e.period(it)
	f := ledger.ForPeriod(in.UserID, p)
	f.Category = creditCategory
	txs, err := e.ledger.Collect(ctx, f)
	if err != nil {
		return Reply{}, err
	}
	total := decimal.Zero
	var b strings.Builder
	for _, tx := range txs {
		total = total.Add(tx.Amount)
		fmt.Fprintf(&b, "\n%s %s %s", tx.Date.Format("02/01"), tx.Description, money.Format(tx.Amount))
	}
	return Reply{Text: fmt.Sprintf("Fatura do cartão %s: %s%s", p, money.Format(total), b.String())}, nil
}

func (e *Engine) ask(ctx context.Context, it intent.Intent) (Reply, error) {
	if e.asker == nil {
		return Reply{Text: "IA não configurada."}, nil
	}
	answer, err := e.asker.Ask(ctx, it.Text)
	if err != nil {
		e.log.Warn("asking AI", "err", err)
		return Reply{Text: "IA indisponível no momento. Tente novamente mais tarde."}, nil
	}
	return Reply{Text: answer}, nil
}
