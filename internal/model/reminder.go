package model

import (
	"time"

	"github.com/finbot-dev/finbot/internal/period"
)

// Reminder is a monthly (DayOfMonth) or one-off (Date) note delivered to ChatID.
// FiredFor records the last period it was delivered in.
type Reminder struct {
	ID          int64
	UserID      int64
	ChatID      int64
	DayOfMonth  int       // 1-31, 0 when Date is set
	Date        time.Time // zero for monthly reminders
	Description string
	FiredFor    period.Period
	Active      bool
}

// DueIn returns the date the reminder is due within p, or false if it is not due in p.
func (r Reminder) DueIn(p period.Period) (time.Time, bool) {
	if !r.Active {
		return time.Time{}, false
	}
	if !r.Date.IsZero() {
		return r.Date, p.Contains(r.Date)
	}
	if r.DayOfMonth < 1 {
		return time.Time{}, false
	}
	return p.ClampDay(r.DayOfMonth), true
}
