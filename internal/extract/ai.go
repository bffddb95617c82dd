package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbot-dev/finbot/internal/apperr"
	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/money"
	"github.com/finbot-dev/finbot/internal/period"
)

// DefaultAITimeout bounds a single AI extraction when none is configured.
const DefaultAITimeout = 8 * time.Second

// AIResult is the structured guess returned by an AI backend. Empty fields are unknown.
type AIResult struct {
	Kind        model.Kind
	Amount      string
	Category    string
	Date        string // "2006-01-02"
	Description string
}

// Backend is an AI service that reads utterances. It owns transport, auth and retries.
type Backend interface {
	Extract(ctx context.Context, utterance string, vocabulary []string) (AIResult, error)
}

// AIExtractor asks a Backend first and falls back to another Extractor when the backend
// is missing, slow, failing, or returns something unusable.
type AIExtractor struct {
	backend  Backend
	fallback Extractor
	timeout  time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// NewAIExtractor creates an AIExtractor. A nil backend always uses the fallback.
func NewAIExtractor(backend Backend, fallback Extractor, timeout time.Duration, now func() time.Time, logger *slog.Logger) *AIExtractor {
	if timeout <= 0 {
		timeout = DefaultAITimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AIExtractor{backend: backend, fallback: fallback, timeout: timeout, now: now, log: logger}
}

type aiReply struct {
	result AIResult
	err    error
}

// Extract implements Extractor.
func (e *AIExtractor) Extract(ctx context.Context, utterance string, uc UserContext) (model.Draft, error) {
	if e.backend == nil {
		return e.fallback.Extract(ctx, utterance, uc)
	}

	res, err := e.ask(ctx, utterance, uc)
	if err != nil {
		if ctx.Err() != nil {
			return model.Draft{}, ctx.Err()
		}
		e.log.Warn("ai extraction unavailable, using rules",
			"user_id", uc.UserID,
			"error", apperr.Wrap(apperr.ExternalServiceUnavailable, "extract.AI", err))
		return e.fallback.Extract(ctx, utterance, uc)
	}

	amount, err := money.Parse(res.Amount)
	if err != nil {
		e.log.Warn("ai extraction returned malformed amount, using rules",
			"user_id", uc.UserID, "amount", res.Amount, "error", err)
		return e.fallback.Extract(ctx, utterance, uc)
	}

	draft, fbErr := e.fallback.Extract(ctx, utterance, uc)
	if fbErr != nil {
		if !apperr.Is(fbErr, apperr.Unparseable) {
			return model.Draft{}, fbErr
		}
		draft = model.Draft{Kind: model.KindExpense, Date: period.DateOf(e.now()), RawText: utterance}
	}
	return merge(draft, res, amount, uc), nil
}

// ask calls the backend under the deadline. The caller is released at the deadline
// even if the backend ignores cancellation.
func (e *AIExtractor) ask(ctx context.Context, utterance string, uc UserContext) (AIResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var names []string
	if uc.Vocabulary != nil {
		names = uc.Vocabulary.Names()
	}

	ch := make(chan aiReply, 1)
	go func() {
		r, err := e.backend.Extract(ctx, utterance, names)
		ch <- aiReply{result: r, err: err}
	}()

	select {
	case r := <-ch:
		return r.result, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return AIResult{}, fmt.Errorf("ai backend timed out after %s", e.timeout)
		}
		return AIResult{}, ctx.Err()
	}
}

// merge lays the AI's fields over the rule-based draft. Fields the AI left empty keep the rule-based value.
func merge(draft model.Draft, res AIResult, amount decimal.Decimal, uc UserContext) model.Draft {
	draft.Amount = decimal.NullDecimal{Decimal: amount, Valid: true}

	if res.Kind.Valid() {
		draft.Kind = res.Kind
	}

	aiCategory := strings.TrimSpace(res.Category)
	if aiCategory != "" {
		if uc.Vocabulary != nil {
			if name, ok := uc.Vocabulary.Canonical(aiCategory); ok {
				draft.Category = name
				draft.Candidates = nil
				draft.CategoryGuess = ""
			}
		}
		if draft.Category == "" {
			draft.CategoryGuess = aiCategory
		}
	}
	if draft.Kind != model.KindExpense && draft.Category == "" {
		draft.Category = draft.Kind.DefaultCategory()
	}

	if res.Date != "" {
		if d, err := time.Parse("2006-01-02", res.Date); err == nil {
			draft.Date = d
			draft.DateExplicit = true
		}
	}
	if desc := strings.TrimSpace(res.Description); desc != "" {
		draft.Description = desc
	}

	draft.Confidence = model.ConfidenceLow
	if draft.Category != "" && len(draft.Candidates) == 0 {
		draft.Confidence = model.ConfidenceHigh
	}
	return draft
}
