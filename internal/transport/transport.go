// Package transport connects chat platforms to the intake engine.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/finbot-dev/finbot/internal/intake"
)

// Handler answers one inbound message.
type Handler interface {
	Handle(ctx context.Context, in intake.Inbound) (intake.Reply, error)
}

// Sender pushes a message nobody asked for, such as a reminder.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Transport receives messages until ctx is done and delivers the replies.
type Transport interface {
	Sender
	Run(ctx context.Context, h Handler) error
}

// Notify sends each notice to its chat. Every failure is reported.
func Notify(ctx context.Context, s Sender, notices []intake.Notice) error {
	var errs []error
	for _, n := range notices {
		if err := s.Send(ctx, n.ChatID, n.Text); err != nil {
			errs = append(errs, fmt.Errorf("notifying chat %d: %w", n.ChatID, err))
		}
	}
	return errors.Join(errs...)
}

// Chunk splits text into pieces of at most limit bytes, preferring line breaks.
func Chunk(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}
	var out []string
	for len(text) > limit {
		cut := strings.LastIndexByte(text[:limit], '\n')
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		out = append(out, text[:cut])
		text = strings.TrimPrefix(text[cut:], "\n")
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}
