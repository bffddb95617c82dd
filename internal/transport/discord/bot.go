// Package discord serves the bot in Discord channels.
package discord

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/finbot-dev/finbot/internal/intake"
	"github.com/finbot-dev/finbot/internal/transport"
)

// messageLimit is Discord's maximum message length.
const messageLimit = 2000

// commandPrefix is typed instead of "/", which Discord reserves for application commands.
const commandPrefix = "!"

// Session is the part of discordgo.Session the bot uses.
type Session interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelFileSend(channelID, name string, r io.Reader, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Bot answers messages in one channel, or everywhere when no channel is set.
type Bot struct {
	session   *discordgo.Session
	out       Session
	channelID string
	log       *slog.Logger
}

// New creates a Bot. The connection opens in Run.
func New(token, channelID string, logger *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuildMessages | discordgo.IntentDirectMessages | discordgo.IntentMessageContent
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{session: session, out: session, channelID: channelID, log: logger.With("transport", "discord")}, nil
}

// Run implements transport.Transport.
func (b *Bot) Run(ctx context.Context, h transport.Handler) error {
	remove := b.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		selfID := ""
		if s.State != nil && s.State.User != nil {
			selfID = s.State.User.ID
		}
		b.handle(ctx, h, m, selfID)
	})
	defer remove()

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("opening discord connection: %w", err)
	}
	<-ctx.Done()
	return b.session.Close()
}

// Send implements transport.Sender.
func (b *Bot) Send(_ context.Context, chatID int64, text string) error {
	channel := strconv.FormatInt(chatID, 10)
	for _, part := range transport.Chunk(text, messageLimit) {
		if _, err := b.out.ChannelMessageSend(channel, part); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) handle(ctx context.Context, h transport.Handler, m *discordgo.MessageCreate, selfID string) {
	in, ok := inbound(m, selfID, b.channelID)
	if !ok {
		return
	}
	reply, err := h.Handle(ctx, in)
	if err != nil {
		b.log.Error("handling message", "user", in.UserID, "channel", m.ChannelID, "err", err)
		if reply.Text == "" {
			return
		}
	}
	if err := b.deliver(m.ChannelID, reply); err != nil {
		b.log.Error("sending reply", "channel", m.ChannelID, "err", err)
	}
}

func (b *Bot) deliver(channelID string, r intake.Reply) error {
	for _, part := range transport.Chunk(render(r), messageLimit) {
		if part == "" {
			continue
		}
		if _, err := b.out.ChannelMessageSend(channelID, part); err != nil {
			return err
		}
	}
	if r.Document != nil {
		if _, err := b.out.ChannelFileSend(channelID, r.Document.Name, bytes.NewReader(r.Document.Data)); err != nil {
			return err
		}
	}
	return nil
}

// inbound reads a user message. Bot messages, other channels and ids that are not
// snowflakes are ignored.
func inbound(m *discordgo.MessageCreate, selfID, channelID string) (intake.Inbound, bool) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot || m.Author.ID == selfID {
		return intake.Inbound{}, false
	}
	if channelID != "" && m.ChannelID != channelID {
		return intake.Inbound{}, false
	}
	userID, err := strconv.ParseInt(m.Author.ID, 10, 64)
	if err != nil {
		return intake.Inbound{}, false
	}
	chatID, err := strconv.ParseInt(m.ChannelID, 10, 64)
	if err != nil {
		return intake.Inbound{}, false
	}
	text := strings.TrimSpace(m.Content)
	if text == "" {
		return intake.Inbound{}, false
	}
	if rest, ok := strings.CutPrefix(text, commandPrefix); ok {
		text = "/" + rest
	}
	return intake.Inbound{UserID: userID, ChatID: chatID, Text: text}, true
}

// render shows commands with the Discord prefix.
func render(r intake.Reply) string {
	text := strings.ReplaceAll(r.Text, " /", " "+commandPrefix)
	text = strings.ReplaceAll(text, "\n/", "\n"+commandPrefix)
	if rest, ok := strings.CutPrefix(text, "/"); ok {
		text = commandPrefix + rest
	}
	return text
}
