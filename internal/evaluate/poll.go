package evaluate

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/period"
)

// ReminderEvent is a reminder delivered for one period.
type ReminderEvent struct {
	Reminder model.Reminder
	Period   period.Period
	DueDate  time.Time
}

// Poll returns the reminders due on or before now that have not fired this period,
// stamping each one. A reminder is returned by at most one Poll per period, however
// many run concurrently.
func (e *Evaluator) Poll(ctx context.Context, userID int64, now time.Time) ([]ReminderEvent, error) {
	p := period.Of(now)
	today := period.DateOf(now)

	reminders, err := e.ledger.ListReminders(ctx, userID)
	if err != nil {
		return nil, err
	}

	var events []ReminderEvent
	for _, r := range reminders {
		due, ok := r.DueIn(p)
		if !ok || due.After(today) || r.FiredFor == p {
			continue
		}
		stamped, err := e.ledger.MarkReminderFired(ctx, userID, r.ID, p)
		if err != nil {
			return events, err
		}
		if !stamped {
			continue
		}
		r.FiredFor = p
		events = append(events, ReminderEvent{Reminder: r, Period: p, DueDate: due})
	}
	slices.SortFunc(events, func(a, b ReminderEvent) int {
		return cmp.Or(a.DueDate.Compare(b.DueDate), cmp.Compare(a.Reminder.ID, b.Reminder.ID))
	})
	return events, nil
}

// PollAll polls every user with active reminders.
func (e *Evaluator) PollAll(ctx context.Context, now time.Time) ([]ReminderEvent, error) {
	owners, err := e.ledger.ReminderOwners(ctx)
	if err != nil {
		return nil, err
	}
	var all []ReminderEvent
	for _, userID := range owners {
		events, err := e.Poll(ctx, userID, now)
		all = append(all, events...)
		if err != nil {
			return all, err
		}
	}
	return all, nil
}
