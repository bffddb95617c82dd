// Package conversation holds the multi-turn state machine that completes a Draft.
package conversation

import (
	"time"

	"github.com/finbot-dev/finbot/internal/model"
)

// Stage is the field a conversation is waiting for.
type Stage string

const (
	StageAmount       Stage = "awaiting_amount"
	StageCategory     Stage = "awaiting_category"
	StageDate         Stage = "awaiting_date"
	StageConfirmation Stage = "awaiting_confirmation"
	StageCommitted    Stage = "committed"
	StageAbandoned    Stage = "abandoned"
)

// order is the fixed resolution order. Terminal stages rank last.
var order = map[Stage]int{
	StageAmount:       0,
	StageCategory:     1,
	StageDate:         2,
	StageConfirmation: 3,
	StageCommitted:    4,
	StageAbandoned:    4,
}

// Terminal reports whether s ends a conversation.
func (s Stage) Terminal() bool {
	return s == StageCommitted || s == StageAbandoned
}

// Before reports whether s is resolved earlier than t.
func (s Stage) Before(t Stage) bool {
	return order[s] < order[t]
}

// Key identifies the single conversation allowed per user and chat.
type Key struct {
	UserID int64
	ChatID int64
}

// Notice explains why the last input was not accepted.
type Notice string

const (
	NoticeNone              Notice = ""
	NoticeBadAmount         Notice = "bad_amount"
	NoticeUnknownCategory   Notice = "unknown_category"
	NoticeAmbiguousCategory Notice = "ambiguous_category"
	NoticeBadDate           Notice = "bad_date"
	NoticeNeedConfirmation  Notice = "need_confirmation"
	NoticeAmountMismatch    Notice = "amount_mismatch"
)

// Purpose is what a confirmed conversation does.
type Purpose string

const (
	// PurposeRecord commits the draft as a transaction.
	PurposeRecord Purpose = ""
	// PurposeReset deletes everything the user has stored.
	PurposeReset Purpose = "reset"
)

// State is one in-flight conversation.
type State struct {
	// ID is unique per conversation and doubles as the commit idempotency key.
	ID        string
	Key       Key
	Purpose   Purpose
	Stage     Stage
	Draft     model.Draft
	Options   []string // category choices offered at StageCategory
	Notice    Notice
	Attempts  int // consecutive inputs rejected at the current stage
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the conversation timed out before now.
func (s State) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// NextStage returns the earliest field d is still missing.
// A date counts as resolved only when the user stated it.
func NextStage(d model.Draft) Stage {
	switch {
	case !d.HasAmount():
		return StageAmount
	case d.Category == "":
		return StageCategory
	case !d.DateExplicit:
		return StageDate
	default:
		return StageConfirmation
	}
}
