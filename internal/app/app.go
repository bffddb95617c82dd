// Package app wires configuration into a running bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/finbot-dev/finbot/internal/auditlog"
	"github.com/finbot-dev/finbot/internal/config"
	"github.com/finbot-dev/finbot/internal/conversation"
	"github.com/finbot-dev/finbot/internal/dates"
	"github.com/finbot-dev/finbot/internal/evaluate"
	"github.com/finbot-dev/finbot/internal/events"
	"github.com/finbot-dev/finbot/internal/extract"
	"github.com/finbot-dev/finbot/internal/gemini"
	"github.com/finbot-dev/finbot/internal/intake"
	"github.com/finbot-dev/finbot/internal/ledger"
	"github.com/finbot-dev/finbot/internal/store/memory"
	"github.com/finbot-dev/finbot/internal/store/postgres"
	"github.com/finbot-dev/finbot/internal/store/sqlite"
	"github.com/finbot-dev/finbot/internal/transport"
	"github.com/finbot-dev/finbot/internal/transport/console"
	"github.com/finbot-dev/finbot/internal/transport/discord"
	"github.com/finbot-dev/finbot/internal/transport/telegram"
)

// Options adjusts how an App is built.
type Options struct {
	// Dir resolves relative paths in the config. Defaults to the working directory.
	Dir    string
	Logger *slog.Logger
	Now    func() time.Time
}

// App is a fully wired bot.
type App struct {
	Config    *config.Config
	Env       config.Env
	Engine    *intake.Engine
	Ledger    *ledger.Service
	Evaluator *evaluate.Evaluator
	Convs     *conversation.Store
	Log       *slog.Logger

	dir     string
	now     func() time.Time
	closers []io.Closer
}

// New validates cfg and builds every component it selects.
func New(ctx context.Context, cfg *config.Config, env config.Env, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	a := &App{Config: cfg, Env: env, dir: opts.Dir, Log: opts.Logger, now: opts.Now}
	if a.Log == nil {
		a.Log = NewLogger(cfg.Log.Level, nil)
	}
	if a.now == nil {
		loc := cfg.Location()
		a.now = func() time.Time { return time.Now().In(loc) }
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store)

	lex := dates.DefaultLexicon()
	if cfg.Locale.Phrases != "" {
		lex, err = dates.LoadLexicon(a.path(cfg.Locale.Phrases))
		if err != nil {
			a.Close()
			return nil, err
		}
	}
	resolver := dates.NewResolver(lex)

	a.Ledger = ledger.NewService(store, a.now)
	a.Evaluator = evaluate.New(a.Ledger, a.now, evaluate.Options{Split: cfg.Split(), WarnPct: cfg.WarnPct()})
	a.Convs = conversation.NewStore(a.now)

	machine := conversation.NewMachine(resolver, config.Duration(cfg.Conversation.TTL, conversation.DefaultTTL))
	machine.AllowFreeTextCategory = cfg.Conversation.AllowFreeTextCategory

	var extractor extract.Extractor = extract.NewRuleExtractor(resolver, a.now)
	var asker intake.Asker
	if cfg.AI.Enabled && env.GeminiAPIKey != "" {
		client := gemini.New(gemini.Options{
			APIKey:        env.GeminiAPIKey,
			Model:         cfg.AI.Model,
			Endpoint:      cfg.AI.Endpoint,
			Retries:       cfg.AI.Retries,
			MinConfidence: cfg.AI.MinConfidence,
		})
		timeout := config.Duration(cfg.AI.Timeout, extract.DefaultAITimeout)
		extractor = extract.NewAIExtractor(client, extractor, timeout, a.now, a.Log)
		asker = client
	}

	var pub events.Publisher = events.Nop{}
	if len(cfg.Events.Brokers) > 0 {
		topic := cfg.Events.Topic
		if topic == "" {
			topic = events.DefaultTopic
		}
		kp := events.NewKafkaPublisher(cfg.Events.Brokers, topic)
		a.closers = append(a.closers, kp)
		pub = kp
	}

	engineOpts := intake.Options{
		Policy:    cfg.Policy(),
		Publisher: pub,
		Asker:     asker,
		Logger:    a.Log,
	}
	if cfg.Audit.Path != "" {
		engineOpts.Auditor = auditlog.NewFile(a.path(cfg.Audit.Path))
	}
	a.Engine = intake.New(a.Convs, machine, extractor, a.Ledger, a.Evaluator, a.now, engineOpts)

	a.Log.Info("finbot ready",
		"storage", cfg.Storage.Driver,
		"transport", cfg.Transport.Kind,
		"ai", asker != nil,
		"events", len(cfg.Events.Brokers) > 0,
	)
	return a, nil
}

func (a *App) openStore(ctx context.Context) (ledger.Store, error) {
	switch a.Config.Storage.Driver {
	case "memory":
		return memory.New(), nil
	case "postgres":
		dsn := a.Config.Storage.DSN
		if a.Env.DatabaseURL != "" {
			dsn = a.Env.DatabaseURL
		}
		if dsn == "" {
			return nil, fmt.Errorf("postgres storage needs storage.dsn or %s", config.EnvDatabaseURL)
		}
		s, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		s, err := sqlite.Open(a.path(a.Config.Storage.Path))
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Transport builds the configured chat transport. The console reads in and writes out.
func (a *App) Transport(in io.Reader, out io.Writer) (transport.Transport, error) {
	switch a.Config.Transport.Kind {
	case "telegram":
		if a.Env.TelegramToken == "" {
			return nil, fmt.Errorf("telegram transport needs %s", config.EnvTelegramToken)
		}
		bot, err := telegram.New(a.Env.TelegramToken, a.Log)
		if err != nil {
			return nil, err
		}
		return bot, nil
	case "discord":
		if a.Env.DiscordToken == "" {
			return nil, fmt.Errorf("discord transport needs %s", config.EnvDiscordToken)
		}
		bot, err := discord.New(a.Env.DiscordToken, a.Config.Transport.DiscordChannelID, a.Log)
		if err != nil {
			return nil, err
		}
		return bot, nil
	default:
		return console.New(in, out, a.path("exports")), nil
	}
}

// Serve runs t together with the conversation janitor and the reminder poller
// until ctx is done.
func (a *App) Serve(ctx context.Context, t transport.Transport) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.Convs.Run(ctx, config.Duration(a.Config.Conversation.SweepInterval, time.Minute), a.Engine.RecordExpired)
	}()
	go func() {
		defer wg.Done()
		a.RunReminders(ctx, t, config.Duration(a.Config.Reminders.Interval, time.Hour))
	}()

	err := t.Run(ctx, a.Engine)
	cancel()
	wg.Wait()
	return err
}

// RunReminders delivers due reminders through s every interval until ctx is done.
// The first pass runs immediately.
func (a *App) RunReminders(ctx context.Context, s transport.Sender, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := a.NotifyDue(ctx, s); err != nil && ctx.Err() == nil {
			a.Log.Warn("delivering reminders", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// NotifyDue runs one reminder pass and sends what is due.
func (a *App) NotifyDue(ctx context.Context, s transport.Sender) error {
	notices, err := a.Engine.DueReminders(ctx, a.now())
	if nerr := transport.Notify(ctx, s, notices); nerr != nil {
		err = errors.Join(err, nerr)
	}
	if len(notices) > 0 {
		a.Log.Info("reminders delivered", "count", len(notices))
	}
	return err
}

// Close releases the store and the event writer.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) path(p string) string {
	if filepath.IsAbs(p) || a.dir == "" {
		return p
	}
	return filepath.Join(a.dir, p)
}

// NewLogger returns a text logger at level writing to w, or stderr when w is nil.
func NewLogger(level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}
