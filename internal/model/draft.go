package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Confidence grades how completely an utterance was understood.
type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
	ConfidenceNone Confidence = "none"
)

// Draft is a candidate transaction that may still be missing fields.
type Draft struct {
	Kind          Kind
	Amount        decimal.NullDecimal
	Category      string   // resolved category, "" when unresolved
	CategoryGuess string   // free-text hint when no vocabulary match was found
	Candidates    []string // tied category matches
	Date          time.Time
	DateExplicit  bool // Date came from the user rather than defaulting to today
	Description   string
	Confidence    Confidence
	RawText       string
}

// HasAmount reports whether the amount is resolved.
func (d Draft) HasAmount() bool {
	return d.Amount.Valid
}
