package conversation

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbot-dev/finbot/internal/apperr"
	"github.com/finbot-dev/finbot/internal/categories"
	"github.com/finbot-dev/finbot/internal/dates"
	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/money"
	"github.com/finbot-dev/finbot/internal/period"
	"github.com/finbot-dev/finbot/internal/textnorm"
)

// DefaultTTL is how long a conversation may sit idle.
const DefaultTTL = 10 * time.Minute

// Outcome is the effect of one Advance.
type Outcome int

const (
	// Reprompt keeps the stage and asks again.
	Reprompt Outcome = iota
	// Advanced resolved a field and moved to a later stage.
	Advanced
	// Commit means the user confirmed. The caller persists and then clears the state.
	Commit
	// Abandon means the user declined or cancelled. Nothing is persisted.
	Abandon
)

func (o Outcome) String() string {
	switch o {
	case Reprompt:
		return "reprompt"
	case Advanced:
		return "advanced"
	case Commit:
		return "commit"
	case Abandon:
		return "abandon"
	}
	return "unknown"
}

// Machine applies user replies to a conversation. It holds no per-conversation state.
type Machine struct {
	resolver *dates.Resolver
	ttl      time.Duration

	// AllowFreeTextCategory accepts an unknown reply at StageCategory as a new custom category name.
	AllowFreeTextCategory bool
}

// NewMachine creates a Machine. A non-positive ttl uses DefaultTTL.
func NewMachine(resolver *dates.Resolver, ttl time.Duration) *Machine {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Machine{resolver: resolver, ttl: ttl}
}

// TTL returns the idle timeout applied on every transition.
func (m *Machine) TTL() time.Duration {
	return m.ttl
}

// Resolver returns the date resolver replies are read with.
func (m *Machine) Resolver() *dates.Resolver {
	return m.resolver
}

// Begin starts a conversation at the earliest field draft is missing.
func (m *Machine) Begin(id string, key Key, draft model.Draft, vocab *categories.Vocabulary, now time.Time) State {
	st := State{
		ID:        id,
		Key:       key,
		Draft:     draft,
		CreatedAt: now,
	}
	return m.enter(st, vocab, now)
}

// BeginReset starts a conversation that only asks the user to confirm deleting all their data.
func (m *Machine) BeginReset(id string, key Key, now time.Time) State {
	return State{
		ID:        id,
		Key:       key,
		Purpose:   PurposeReset,
		Stage:     StageConfirmation,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
}

// Advance applies input to st and returns the new state. It never mutates st.
// A reprompt keeps every resolved field.
func (m *Machine) Advance(st State, input string, vocab *categories.Vocabulary, now time.Time) (State, Outcome) {
	next := st
	next.Draft.Candidates = slices.Clone(st.Draft.Candidates)
	next.Options = slices.Clone(st.Options)
	input = strings.TrimSpace(input)
	lex := m.resolver.Lexicon()

	if lex.IsCancel(input) {
		next.Stage = StageAbandoned
		next.Notice = NoticeNone
		return next, Abandon
	}

	switch st.Stage {
	case StageAmount:
		amount, ok := parseAmount(input)
		if !ok {
			return m.reprompt(next, NoticeBadAmount, now), Reprompt
		}
		next.Draft.Amount.Decimal = amount
		next.Draft.Amount.Valid = true

	case StageCategory:
		if statesOtherAmount(input, st.Draft) {
			return m.reprompt(next, NoticeAmountMismatch, now), Reprompt
		}
		name, err := vocab.Select(input, st.Options)
		switch {
		case err == nil:
		case apperr.Is(err, apperr.AmbiguousCategory):
			next.Options = apperr.ChoicesOf(err)
			return m.reprompt(next, NoticeAmbiguousCategory, now), Reprompt
		case m.AllowFreeTextCategory && input != "" && !money.HasDigits(input):
			name = input
		default:
			return m.reprompt(next, NoticeUnknownCategory, now), Reprompt
		}
		next.Draft.Category = name
		next.Draft.CategoryGuess = ""
		next.Draft.Candidates = nil
		next.Options = nil

	case StageDate:
		today := period.DateOf(now)
		switch {
		case lex.IsSkipDate(input):
			next.Draft.Date = today
		default:
			d, ok := m.resolver.Resolve(input, now)
			if !ok {
				return m.reprompt(next, NoticeBadDate, now), Reprompt
			}
			next.Draft.Date = d
		}
		next.Draft.DateExplicit = true

	case StageConfirmation:
		switch {
		case lex.IsAffirmative(input):
			next.Stage = StageCommitted
			next.Notice = NoticeNone
			return next, Commit
		case lex.IsNegative(input):
			next.Stage = StageAbandoned
			next.Notice = NoticeNone
			return next, Abandon
		default:
			return m.reprompt(next, NoticeNeedConfirmation, now), Reprompt
		}

	default:
		// Terminal states accept nothing further.
		return next, Abandon
	}

	next.Attempts = 0
	return m.enter(next, vocab, now), Advanced
}

// enter moves st to the stage its draft needs and refreshes the expiry.
func (m *Machine) enter(st State, vocab *categories.Vocabulary, now time.Time) State {
	stage := NextStage(st.Draft)
	// Stages only move forward.
	if st.Stage != "" && stage.Before(st.Stage) {
		stage = st.Stage
	}
	st.Stage = stage
	st.Notice = NoticeNone
	st.ExpiresAt = now.Add(m.ttl)

	if stage == StageCategory {
		switch {
		case len(st.Draft.Candidates) > 0:
			st.Options = slices.Clone(st.Draft.Candidates)
		case vocab != nil:
			st.Options = vocab.Names()
		}
	}
	return st
}

func (m *Machine) reprompt(st State, notice Notice, now time.Time) State {
	st.Notice = notice
	st.Attempts++
	st.ExpiresAt = now.Add(m.ttl)
	return st
}

// statesOtherAmount reports whether a reply of several words, such as a new
// "gastei 30 no pix", names an amount different from the draft's. A bare option
// number is never read as an amount.
func statesOtherAmount(input string, d model.Draft) bool {
	if !d.HasAmount() || len(textnorm.Tokens(input)) < 2 {
		return false
	}
	amount, ok := parseAmount(input)
	return ok && !amount.Equal(d.Amount.Decimal)
}

// parseAmount reads the first number in a reply such as "45", "R$ 45,90" or "foram 12.50".
func parseAmount(input string) (decimal.Decimal, bool) {
	for _, tok := range textnorm.Tokens(input) {
		if !money.HasDigits(tok.Raw) {
			continue
		}
		d, err := money.Parse(tok.Raw)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	}
	return decimal.Zero, false
}
