// Package telegram serves the bot over the Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/finbot-dev/finbot/internal/intake"
	"github.com/finbot-dev/finbot/internal/transport"
)

const (
	// messageLimit is Telegram's maximum message length.
	messageLimit = 4096
	// callbackLimit is the maximum size of inline button data.
	callbackLimit = 64
	pollTimeout   = 60
)

// API is the part of tgbotapi.BotAPI the bot uses.
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot long-polls Telegram and answers each update on its own goroutine.
// The intake engine serializes messages from the same chat.
type Bot struct {
	api  API
	name string
	log  *slog.Logger
}

// New connects to Telegram with token.
func New(token string, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	return NewWithAPI(api, api.Self.UserName, logger), nil
}

// NewWithAPI creates a Bot on an existing client.
func NewWithAPI(api API, name string, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{api: api, name: name, log: logger.With("transport", "telegram")}
}

// Run implements transport.Transport.
func (b *Bot) Run(ctx context.Context, h transport.Handler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := b.api.GetUpdatesChan(u)

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.handle(ctx, h, upd)
			}()
		}
	}
}

// Send implements transport.Sender.
func (b *Bot) Send(_ context.Context, chatID int64, text string) error {
	for _, part := range transport.Chunk(text, messageLimit) {
		if _, err := b.api.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) handle(ctx context.Context, h transport.Handler, upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		if _, err := b.api.Request(tgbotapi.NewCallback(upd.CallbackQuery.ID, "")); err != nil {
			b.log.Warn("answering callback", "err", err)
		}
	}
	in, ok := inbound(upd, b.name)
	if !ok {
		return
	}
	reply, err := h.Handle(ctx, in)
	if err != nil {
		b.log.Error("handling message", "user", in.UserID, "chat", in.ChatID, "err", err)
		if reply.Text == "" {
			return
		}
	}
	for _, c := range messages(in.ChatID, reply) {
		if _, err := b.api.Send(c); err != nil {
			b.log.Error("sending reply", "chat", in.ChatID, "err", err)
			return
		}
	}
}

// inbound reads a text message or a button press. Other updates are ignored.
func inbound(upd tgbotapi.Update, botName string) (intake.Inbound, bool) {
	if cq := upd.CallbackQuery; cq != nil {
		if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
			return intake.Inbound{}, false
		}
		return intake.Inbound{UserID: cq.From.ID, ChatID: cq.Message.Chat.ID, Text: cq.Data}, true
	}
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.Text == "" {
		return intake.Inbound{}, false
	}
	text := msg.Text
	if botName != "" && (msg.Chat.IsGroup() || msg.Chat.IsSuperGroup()) {
		text = strings.TrimSpace(strings.ReplaceAll(text, "@"+botName, ""))
	}
	return intake.Inbound{UserID: msg.From.ID, ChatID: msg.Chat.ID, Text: text}, true
}

// messages converts a reply into the Telegram requests that deliver it.
func messages(chatID int64, r intake.Reply) []tgbotapi.Chattable {
	var out []tgbotapi.Chattable
	parts := transport.Chunk(r.Text, messageLimit)
	for i, part := range parts {
		if part == "" {
			continue
		}
		msg := tgbotapi.NewMessage(chatID, part)
		if i == len(parts)-1 && len(r.Options) > 0 {
			msg.ReplyMarkup = keyboard(r.Options)
		}
		out = append(out, msg)
	}
	if r.Document != nil {
		out = append(out, tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: r.Document.Name, Bytes: r.Document.Data}))
	}
	return out
}

// keyboard lays options out one per row. Presses come back as the option text, or
// as its 1-based position when the text does not fit in callback data.
func keyboard(options []string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(options))
	for i, opt := range options {
		data := opt
		if len(data) > callbackLimit {
			data = strconv.Itoa(i + 1)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(opt, data)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
