package extract

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbot-dev/finbot/internal/apperr"
	"github.com/finbot-dev/finbot/internal/dates"
	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/money"
	"github.com/finbot-dev/finbot/internal/period"
	"github.com/finbot-dev/finbot/internal/textnorm"
)

// RuleExtractor is the deterministic extractor used on its own or as the AI fallback.
type RuleExtractor struct {
	resolver *dates.Resolver
	now      func() time.Time
}

// NewRuleExtractor creates a RuleExtractor. now supplies the current time in the user's location.
func NewRuleExtractor(resolver *dates.Resolver, now func() time.Time) *RuleExtractor {
	return &RuleExtractor{resolver: resolver, now: now}
}

// Extract implements Extractor.
func (e *RuleExtractor) Extract(_ context.Context, utterance string, uc UserContext) (model.Draft, error) {
	tokens := textnorm.Tokens(utterance)
	words := textnorm.Folded(tokens)
	lex := e.resolver.Lexicon()
	now := e.now()

	draft := model.Draft{
		Kind:       model.KindExpense,
		Date:       period.DateOf(now),
		Confidence: model.ConfidenceLow,
		RawText:    utterance,
	}
	consumed := make(map[int]bool)

	if d, span, ok := e.resolver.Find(words, now); ok {
		draft.Date = d
		draft.DateExplicit = true
		for _, i := range span {
			consumed[i] = true
		}
	}

	amount, amountAt, found := findAmount(tokens, consumed)
	if !found {
		return model.Draft{}, apperr.New(apperr.Unparseable, "extract.Rules", "no amount in "+strconv.Quote(utterance))
	}
	consumed[amountAt] = true
	if amount.Valid {
		draft.Amount = amount
	}

	for _, w := range words {
		if lex.IsIncomeMarker(w) {
			draft.Kind = model.KindIncome
			break
		}
	}

	if uc.Vocabulary != nil {
		available := make([]string, len(words))
		for i, w := range words {
			if !consumed[i] {
				available[i] = w
			}
		}
		matches, span := uc.Vocabulary.Match(available)
		switch len(matches) {
		case 0:
		case 1:
			draft.Category = matches[0]
			for _, i := range span {
				consumed[i] = true
			}
		default:
			draft.Candidates = matches
		}
	}

	rest := remaining(tokens, consumed, lex)
	draft.Description = strings.Join(rest, " ")
	if draft.Category == "" {
		draft.CategoryGuess = guess(tokens, consumed, lex)
	}
	if draft.Kind != model.KindExpense && draft.Category == "" {
		draft.Category = draft.Kind.DefaultCategory()
	}

	if draft.HasAmount() && draft.Category != "" && len(draft.Candidates) == 0 {
		draft.Confidence = model.ConfidenceHigh
	}
	return draft, nil
}

// findAmount returns the first token that looks numeric. A token that looks numeric
// but does not parse is still reported as found, with an invalid amount.
func findAmount(tokens []textnorm.Token, consumed map[int]bool) (decimal.NullDecimal, int, bool) {
	for i, t := range tokens {
		if consumed[i] || !money.HasDigits(t.Raw) || strings.ContainsAny(t.Raw, "/") {
			continue
		}
		d, err := money.Parse(t.Raw)
		if err != nil {
			return decimal.NullDecimal{}, i, true
		}
		return decimal.NullDecimal{Decimal: d, Valid: true}, i, true
	}
	return decimal.NullDecimal{}, -1, false
}

func remaining(tokens []textnorm.Token, consumed map[int]bool, lex *dates.Lexicon) []string {
	var out []string
	for i, t := range tokens {
		if consumed[i] || isNoise(t.Folded, lex) {
			continue
		}
		out = append(out, t.Raw)
	}
	return out
}

// guess picks the words after the last preposition, or every meaningful word when there is none.
func guess(tokens []textnorm.Token, consumed map[int]bool, lex *dates.Lexicon) string {
	last := -1
	for i, t := range tokens {
		if !consumed[i] && lex.IsPreposition(t.Folded) {
			last = i
		}
	}
	var out []string
	for i := last + 1; i < len(tokens); i++ {
		t := tokens[i]
		if consumed[i] || isNoise(t.Folded, lex) {
			continue
		}
		out = append(out, t.Folded)
	}
	if len(out) == 0 {
		for i, t := range tokens {
			if !consumed[i] && !isNoise(t.Folded, lex) {
				out = append(out, t.Folded)
			}
		}
	}
	return strings.Join(out, " ")
}

func isNoise(word string, lex *dates.Lexicon) bool {
	return word == "r$" || word == "$" || lex.IsFiller(word) || lex.IsPreposition(word)
}
