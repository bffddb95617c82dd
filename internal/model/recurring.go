package model

import "github.com/shopspring/decimal"

// RecurringPayment is a monthly fixed cost due on DayOfMonth.
// Days past the end of a month clamp to its last day.
type RecurringPayment struct {
	ID          int64
	UserID      int64
	Amount      decimal.Decimal
	DayOfMonth  int
	Description string
	Active      bool
}
