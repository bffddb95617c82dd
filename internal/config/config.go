package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"
	_ "time/tzdata" // the default zone must load on hosts without a zoneinfo database

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/finbot-dev/finbot/internal/conversation"
	"github.com/finbot-dev/finbot/internal/evaluate"
)

// FileName is the config file written by finbot init.
const FileName = "finbot.yaml"

// Config represents the top-level finbot.yaml configuration.
type Config struct {
	Storage      StorageConfig      `yaml:"storage"`
	Transport    TransportConfig    `yaml:"transport"`
	AI           AIConfig           `yaml:"ai"`
	Conversation ConversationConfig `yaml:"conversation"`
	Reminders    RemindersConfig    `yaml:"reminders"`
	MTP          MTPConfig          `yaml:"mtp"`
	Budget       BudgetConfig       `yaml:"budget"`
	Locale       LocaleConfig       `yaml:"locale"`
	Events       EventsConfig       `yaml:"events"`
	Audit        AuditConfig        `yaml:"audit"`
	Log          LogConfig          `yaml:"log"`
}

// StorageConfig selects the ledger store.
type StorageConfig struct {
	Driver string `yaml:"driver"`         // memory, sqlite or postgres
	Path   string `yaml:"path,omitempty"` // sqlite file
	DSN    string `yaml:"dsn,omitempty"`  // postgres; DATABASE_URL overrides
}

// TransportConfig selects where messages come from.
type TransportConfig struct {
	Kind             string `yaml:"kind"` // console, telegram or discord
	DiscordChannelID string `yaml:"discord_channel_id,omitempty"`
}

// AIConfig controls the optional AI extractor.
type AIConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Model         string `yaml:"model,omitempty"`
	Endpoint      string `yaml:"endpoint,omitempty"`
	Timeout       string `yaml:"timeout"`
	Retries       int    `yaml:"retries"`
	MinConfidence int    `yaml:"min_confidence"`
}

// ConversationConfig controls multi-step dialogues.
type ConversationConfig struct {
	TTL                   string `yaml:"ttl"`
	OnCommand             string `yaml:"on_command"` // cancel or reject
	AllowFreeTextCategory bool   `yaml:"allow_free_text_category"`
	SweepInterval         string `yaml:"sweep_interval"`
}

// RemindersConfig controls the reminder poller.
type RemindersConfig struct {
	Interval string `yaml:"interval"`
}

// MTPConfig is the Método Traz Paz split in whole percent.
type MTPConfig struct {
	Savings    int `yaml:"savings"`
	Investment int `yaml:"investment"`
	Expense    int `yaml:"expense"`
}

// BudgetConfig controls budget alerts.
type BudgetConfig struct {
	WarnPct int `yaml:"warn_pct"`
}

// LocaleConfig controls dates and phrases.
type LocaleConfig struct {
	Timezone string `yaml:"timezone"`
	Phrases  string `yaml:"phrases,omitempty"` // phrase table path, relative to the config file
}

// EventsConfig enables the Kafka event stream when brokers are listed.
type EventsConfig struct {
	Brokers []string `yaml:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty"`
}

// AuditConfig locates the conversation audit log.
type AuditConfig struct {
	Path string `yaml:"path,omitempty"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

var (
	drivers    = []string{"memory", "sqlite", "postgres"}
	transports = []string{"console", "telegram", "discord"}
	levels     = []string{"debug", "info", "warn", "error"}
)

// Load reads a finbot.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new install.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   "finbot.db",
		},
		Transport: TransportConfig{
			Kind: "console",
		},
		AI: AIConfig{
			Enabled:       true,
			Timeout:       "8s",
			Retries:       2,
			MinConfidence: 60,
		},
		Conversation: ConversationConfig{
			TTL:           "10m",
			OnCommand:     string(conversation.OnCommandCancel),
			SweepInterval: "1m",
		},
		Reminders: RemindersConfig{
			Interval: "1h",
		},
		MTP: MTPConfig{
			Savings:    20,
			Investment: 10,
			Expense:    70,
		},
		Budget: BudgetConfig{
			WarnPct: 75,
		},
		Locale: LocaleConfig{
			Timezone: "America/Sao_Paulo",
		},
		Audit: AuditConfig{
			Path: "logs/conversations.csv",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(drivers, c.Storage.Driver) {
		errs = append(errs, fmt.Errorf("storage.driver %q must be one of %s", c.Storage.Driver, strings.Join(drivers, ", ")))
	}
	if c.Storage.Driver == "sqlite" && c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path is required for sqlite"))
	}
	if !slices.Contains(transports, c.Transport.Kind) {
		errs = append(errs, fmt.Errorf("transport.kind %q must be one of %s", c.Transport.Kind, strings.Join(transports, ", ")))
	}
	if _, err := conversation.ParsePolicy(c.Conversation.OnCommand); err != nil {
		errs = append(errs, fmt.Errorf("conversation.on_command: %w", err))
	}
	for name, s := range map[string]string{
		"conversation.ttl":            c.Conversation.TTL,
		"conversation.sweep_interval": c.Conversation.SweepInterval,
		"reminders.interval":          c.Reminders.Interval,
		"ai.timeout":                  c.AI.Timeout,
	} {
		if d, err := time.ParseDuration(s); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("%s %q must be a positive duration", name, s))
		}
	}
	if err := c.Split().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Budget.WarnPct < 1 || c.Budget.WarnPct > 100 {
		errs = append(errs, fmt.Errorf("budget.warn_pct %d must be between 1 and 100", c.Budget.WarnPct))
	}
	if c.AI.MinConfidence < 0 || c.AI.MinConfidence > 100 {
		errs = append(errs, fmt.Errorf("ai.min_confidence %d must be between 0 and 100", c.AI.MinConfidence))
	}
	if _, err := time.LoadLocation(c.Locale.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("locale.timezone: %w", err))
	}
	if !slices.Contains(levels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level %q must be one of %s", c.Log.Level, strings.Join(levels, ", ")))
	}
	return errors.Join(errs...)
}

// Split returns the MTP percentages as an evaluate.Split.
func (c *Config) Split() evaluate.Split {
	return evaluate.Split{
		Savings:    decimal.NewFromInt(int64(c.MTP.Savings)),
		Investment: decimal.NewFromInt(int64(c.MTP.Investment)),
		Expense:    decimal.NewFromInt(int64(c.MTP.Expense)),
	}
}

// WarnPct returns the budget warning threshold.
func (c *Config) WarnPct() decimal.Decimal {
	return decimal.NewFromInt(int64(c.Budget.WarnPct))
}

// Policy returns the on-command policy. Call Validate first.
func (c *Config) Policy() conversation.Policy {
	p, _ := conversation.ParsePolicy(c.Conversation.OnCommand)
	return p
}

// Duration parses one of the duration settings, falling back when it is invalid.
func Duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Location returns the configured time zone, or UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Locale.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
