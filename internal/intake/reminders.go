package intake

import (
	"context"
	"fmt"
	"time"

	"github.com/finbot-dev/finbot/internal/evaluate"
	"github.com/finbot-dev/finbot/internal/events"
)

// Notice is an unsolicited message for a chat.
type Notice struct {
	UserID int64
	ChatID int64
	Text   string
}

// DueReminders stamps and returns every reminder due at now across all users.
// Each reminder is returned at most once per period.
func (e *Engine) DueReminders(ctx context.Context, now time.Time) ([]Notice, error) {
	due, err := e.eval.PollAll(ctx, now)
	return e.notify(ctx, due, now), err
}

// UserReminders is DueReminders for a single user.
func (e *Engine) UserReminders(ctx context.Context, userID int64, now time.Time) ([]Notice, error) {
	due, err := e.eval.Poll(ctx, userID, now)
	return e.notify(ctx, due, now), err
}

func (e *Engine) notify(ctx context.Context, due []evaluate.ReminderEvent, now time.Time) []Notice {
	notices := make([]Notice, 0, len(due))
	evs := make([]events.Event, 0, len(due))
	for _, d := range due {
		r := d.Reminder
		notices = append(notices, Notice{
			UserID: r.UserID,
			ChatID: r.ChatID,
			Text:   fmt.Sprintf("Lembrete: %s (%s)", r.Description, d.DueDate.Format("02/01/2006")),
		})
		evs = append(evs, events.Event{
			Type:       events.ReminderDue,
			UserID:     r.UserID,
			ChatID:     r.ChatID,
			OccurredAt: now.UTC(),
			Reminder:   &r,
		})
	}
	e.publish(ctx, evs...)
	return notices
}
