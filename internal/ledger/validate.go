package ledger

import (
	"fmt"
	"strings"

	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/money"
)

// ValidationError describes a single broken rule on a transaction.
type ValidationError struct {
	Field       string
	Description string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// ValidationErrors is every rule a transaction broke.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks a transaction before commit.
func Validate(tx model.Transaction) ValidationErrors {
	var errs ValidationErrors

	if tx.UserID == 0 {
		errs = append(errs, ValidationError{Field: "user_id", Description: "missing user"})
	}

	if !tx.Kind.Valid() {
		errs = append(errs, ValidationError{Field: "kind", Description: fmt.Sprintf("unknown kind %q", tx.Kind)})
	}

	if !tx.Amount.IsPositive() {
		errs = append(errs, ValidationError{Field: "amount", Description: fmt.Sprintf("amount %s must be positive", tx.Amount)})
	} else if !money.IsCents(tx.Amount) {
		errs = append(errs, ValidationError{Field: "amount", Description: fmt.Sprintf("amount %s has more than 2 decimal places", tx.Amount)})
	}

	if tx.Date.IsZero() {
		errs = append(errs, ValidationError{Field: "date", Description: "transaction date is unresolved"})
	}

	if strings.TrimSpace(tx.Category) == "" {
		errs = append(errs, ValidationError{Field: "category", Description: "category is required"})
	}

	return errs
}
