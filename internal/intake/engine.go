// Package intake turns inbound messages into ledger writes and replies.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finbot-dev/finbot/internal/apperr"
	"github.com/finbot-dev/finbot/internal/auditlog"
	"github.com/finbot-dev/finbot/internal/categories"
	"github.com/finbot-dev/finbot/internal/conversation"
	"github.com/finbot-dev/finbot/internal/evaluate"
	"github.com/finbot-dev/finbot/internal/events"
	"github.com/finbot-dev/finbot/internal/extract"
	"github.com/finbot-dev/finbot/internal/intent"
	"github.com/finbot-dev/finbot/internal/ledger"
	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/period"
	"github.com/finbot-dev/finbot/internal/report"
)

const (
	unparseableText = "Não encontrei um valor nessa mensagem. Tente algo como: gastei 45 no mercado"
	retryLaterText  = "Não consegui acessar seus dados agora. Tente novamente em instantes."
)

// Inbound is one message from a user in a chat.
type Inbound struct {
	UserID int64
	ChatID int64
	Text   string
}

func (in Inbound) key() conversation.Key {
	return conversation.Key{UserID: in.UserID, ChatID: in.ChatID}
}

// Reply is what the engine wants delivered back to the chat.
type Reply struct {
	Text      string
	Options   []string
	Document  *report.Document
	Alerts    []evaluate.Alert
	Stage     conversation.Stage // stage the conversation reached, "" outside a conversation
	Committed *model.Transaction
}

// Auditor records conversation lifecycle entries.
type Auditor interface {
	Record(e auditlog.Entry) error
}

// Asker answers free-form finance questions.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Options holds the engine's optional collaborators.
type Options struct {
	Policy    conversation.Policy
	Publisher events.Publisher
	Auditor   Auditor
	Reports   *report.Registry
	Asker     Asker
	Logger    *slog.Logger
	NewID     func() string
}

// Engine runs conversations and commands against the ledger.
type Engine struct {
	store     *conversation.Store
	machine   *conversation.Machine
	extractor extract.Extractor
	ledger    *ledger.Service
	eval      *evaluate.Evaluator
	now       func() time.Time

	policy  conversation.Policy
	pub     events.Publisher
	audit   Auditor
	reports *report.Registry
	asker   Asker
	log     *slog.Logger
	newID   func() string
}

// New creates an Engine. Zero options fall back to the cancel policy, no events,
// no audit log, the default report registry and no AI answers.
func New(store *conversation.Store, machine *conversation.Machine, extractor extract.Extractor,
	svc *ledger.Service, eval *evaluate.Evaluator, now func() time.Time, opts Options) *Engine {
	e := &Engine{
		store:     store,
		machine:   machine,
		extractor: extractor,
		ledger:    svc,
		eval:      eval,
		now:       now,
		policy:    opts.Policy,
		pub:       opts.Publisher,
		audit:     opts.Auditor,
		reports:   opts.Reports,
		asker:     opts.Asker,
		log:       opts.Logger,
		newID:     opts.NewID,
	}
	if e.policy == "" {
		e.policy = conversation.OnCommandCancel
	}
	if e.pub == nil {
		e.pub = events.Nop{}
	}
	if e.reports == nil {
		e.reports = report.DefaultRegistry()
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e
}

// Handle routes one inbound message: slash commands go to Execute and everything
// else to Say.
func (e *Engine) Handle(ctx context.Context, in Inbound) (Reply, error) {
	it, isCommand, err := intent.Parse(in.Text)
	if err != nil {
		return e.failure("intake.Handle", err)
	}
	if isCommand {
		return e.Execute(ctx, in, it)
	}
	return e.Say(ctx, in)
}

// Say handles free text: it continues the open conversation or starts a new one.
func (e *Engine) Say(ctx context.Context, in Inbound) (Reply, error) {
	sess, err := e.store.Acquire(ctx, in.key())
	if err != nil {
		return Reply{}, err
	}
	defer sess.Release()
	e.noteExpired(sess)

	vocab, err := e.ledger.Vocabulary(ctx, in.UserID)
	if err != nil {
		return e.failure("intake.Say", err)
	}

	if st, ok := sess.State(); ok {
		return e.advance(ctx, sess, st, in.Text, vocab)
	}
	return e.begin(ctx, sess, in, vocab)
}

func (e *Engine) begin(ctx context.Context, sess *conversation.Session, in Inbound, vocab *categories.Vocabulary) (Reply, error) {
	draft, err := e.extractor.Extract(ctx, in.Text, extract.UserContext{UserID: in.UserID, Vocabulary: vocab})
	if err != nil {
		return e.failure("intake.Say", err)
	}
	st := e.machine.Begin(e.newID(), in.key(), draft, vocab, e.now())
	sess.Put(st)
	e.record(st, auditlog.EventStarted, "confidence="+string(draft.Confidence))
	return stateReply(st), nil
}

func (e *Engine) advance(ctx context.Context, sess *conversation.Session, st conversation.State, text string, vocab *categories.Vocabulary) (Reply, error) {
	next, outcome := e.machine.Advance(st, text, vocab, e.now())
	switch outcome {
	case conversation.Reprompt:
		sess.Put(next)
		e.record(next, auditlog.EventReprompted, string(next.Notice))
		return stateReply(next), nil

	case conversation.Advanced:
		sess.Put(next)
		e.record(next, auditlog.EventAdvanced, "")
		return stateReply(next), nil

	case conversation.Abandon:
		sess.Clear()
		e.record(next, auditlog.EventAbandoned, "")
		return stateReply(next), nil
	}

	if next.Purpose == conversation.PurposeReset {
		return e.confirmReset(ctx, sess, st, next)
	}

	// Confirmed. The stored state only changes once the write succeeded, so a
	// failed commit can be retried with the same idempotency key.
	reply, err := e.commitDraft(ctx, next, vocab)
	if err != nil {
		r, ferr := e.failure("intake.Commit", err)
		r.Stage = st.Stage
		r.Options = conversation.PromptFor(st).Options
		return r, ferr
	}
	sess.Clear()
	e.record(next, auditlog.EventCommitted, fmt.Sprintf("transaction=%d", reply.Committed.ID))
	return reply, nil
}

// confirmReset wipes the user's data once they confirmed. A failed purge keeps the
// confirmation open.
func (e *Engine) confirmReset(ctx context.Context, sess *conversation.Session, st, next conversation.State) (Reply, error) {
	if err := e.ledger.Reset(ctx, st.Key.UserID); err != nil {
		r, ferr := e.failure("intake.Reset", err)
		r.Stage = st.Stage
		r.Options = conversation.PromptFor(st).Options
		return r, ferr
	}
	sess.Clear()
	e.record(next, auditlog.EventCommitted, "reset")
	e.log.Info("user data reset", "user", st.Key.UserID)
	return stateReply(next), nil
}

// commitDraft persists a confirmed conversation. A category typed as free text is
// created first.
func (e *Engine) commitDraft(ctx context.Context, st conversation.State, vocab *categories.Vocabulary) (Reply, error) {
	d := st.Draft
	if d.Kind == "" {
		d.Kind = model.KindExpense
	}
	if d.Category != "" && !vocab.Exists(d.Category) && d.Category != d.Kind.DefaultCategory() {
		if _, err := e.ledger.AddCategory(ctx, st.Key.UserID, d.Category); err != nil && !apperr.Is(err, apperr.ValidationFailure) {
			return Reply{}, err
		}
	}
	tx := model.Transaction{
		UserID:         st.Key.UserID,
		Kind:           d.Kind,
		Amount:         d.Amount.Decimal,
		Category:       d.Category,
		Description:    d.Description,
		Date:           d.Date,
		IdempotencyKey: st.ID,
	}
	saved, err := e.ledger.Commit(ctx, tx)
	if err != nil {
		return Reply{}, err
	}
	return e.committed(ctx, st.Key, saved), nil
}

// committed builds the reply for a persisted transaction and announces it.
// Evaluation runs after the insert is acknowledged.
func (e *Engine) committed(ctx context.Context, key conversation.Key, tx model.Transaction) Reply {
	done := conversation.State{
		Key:   key,
		Stage: conversation.StageCommitted,
		Draft: model.Draft{Kind: tx.Kind, Amount: decimal.NewNullDecimal(tx.Amount), Category: tx.Category, Date: tx.Date},
	}
	reply := Reply{
		Text:      conversation.PromptFor(done).Text,
		Stage:     conversation.StageCommitted,
		Committed: &tx,
	}

	evs := []events.Event{{
		Type:        events.TransactionCommitted,
		UserID:      key.UserID,
		ChatID:      key.ChatID,
		OccurredAt:  e.now().UTC(),
		Transaction: &tx,
	}}

	if tx.Kind.IsSpend() {
		res, err := e.eval.Evaluate(ctx, key.UserID, period.Of(tx.Date))
		if err != nil {
			e.log.Warn("evaluating after commit", "user", key.UserID, "err", err)
		} else {
			reply.Alerts = res.AlertsFor(tx.Category)
		}
	}
	for _, a := range reply.Alerts {
		reply.Text += "\n" + a.Message
		evs = append(evs, alertEvent(key, a, e.now()))
	}
	e.publish(ctx, evs...)
	return reply
}

// RecordExpired logs a conversation evicted by the janitor.
func (e *Engine) RecordExpired(st conversation.State) {
	e.record(st, auditlog.EventExpired, "")
}

func (e *Engine) noteExpired(sess *conversation.Session) {
	if old, ok := sess.Expired(); ok {
		e.RecordExpired(old)
	}
}

func (e *Engine) record(st conversation.State, ev auditlog.Event, details string) {
	if e.audit == nil {
		return
	}
	err := e.audit.Record(auditlog.Entry{
		Timestamp:      e.now(),
		Event:          ev,
		ConversationID: st.ID,
		UserID:         st.Key.UserID,
		ChatID:         st.Key.ChatID,
		Stage:          string(st.Stage),
		Details:        details,
	})
	if err != nil {
		e.log.Warn("writing audit log", "event", ev, "err", err)
	}
}

func (e *Engine) publish(ctx context.Context, evs ...events.Event) {
	if len(evs) == 0 {
		return
	}
	if err := e.pub.Publish(ctx, evs...); err != nil {
		e.log.Warn("publishing events", "count", len(evs), "err", err)
	}
}

// failure turns a classified error into a user-facing reply. Only errors the user
// cannot act on are returned.
func (e *Engine) failure(op string, err error) (Reply, error) {
	switch apperr.KindOf(err) {
	case apperr.Unparseable:
		return Reply{Text: unparseableText}, nil
	case apperr.ValidationFailure, apperr.AmbiguousCategory:
		return Reply{Text: userMessage(err)}, nil
	case apperr.StorageFailure:
		e.log.Error("storage failure", "op", op, "err", err)
		return Reply{Text: retryLaterText}, nil
	case apperr.ExternalServiceUnavailable:
		e.log.Warn("external service unavailable", "op", op, "err", err)
		return Reply{Text: "Serviço indisponível no momento. Tente novamente mais tarde."}, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Reply{}, err
	}
	e.log.Error("unexpected error", "op", op, "err", err)
	return Reply{Text: retryLaterText}, err
}

func userMessage(err error) string {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return err.Error()
	}
	msg := ae.Msg
	if msg == "" && ae.Err != nil {
		msg = ae.Err.Error()
	}
	if ae.Kind == apperr.ValidationFailure && ae.Msg != "" && ae.Err != nil {
		msg = ae.Err.Error() + ". " + ae.Msg
	}
	r, size := utf8.DecodeRuneInString(msg)
	if size == 0 {
		return retryLaterText
	}
	return string(unicode.ToUpper(r)) + msg[size:]
}

func stateReply(st conversation.State) Reply {
	p := conversation.PromptFor(st)
	return Reply{Text: p.Text, Options: p.Options, Stage: st.Stage}
}

func alertEvent(key conversation.Key, a evaluate.Alert, now time.Time) events.Event {
	return events.Event{
		Type:       events.AlertRaised,
		UserID:     key.UserID,
		ChatID:     key.ChatID,
		OccurredAt: now.UTC(),
		Alert:      &a,
	}
}
