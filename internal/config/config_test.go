package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbot-dev/finbot/internal/conversation"
)

func TestRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Storage.Driver = "postgres"
	cfg.Storage.DSN = "postgres://localhost/finbot"
	cfg.Events.Brokers = []string{"kafka-1:9092", "kafka-2:9092"}
	cfg.Events.Topic = "finbot.events"
	cfg.Conversation.OnCommand = "reject"

	path := filepath.Join(t.TempDir(), FileName)
	err := Save(path, cfg)
	require.NoError(t, err)

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg, got)
	assert.Equal(t, conversation.OnCommandReject, got.Policy())
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "console", cfg.Transport.Kind)
	assert.Equal(t, conversation.OnCommandCancel, cfg.Policy())
	assert.Equal(t, 10*time.Minute, Duration(cfg.Conversation.TTL, 0))
	assert.True(t, cfg.Split().Savings.Equal(decimal.NewFromInt(20)))
	assert.True(t, cfg.WarnPct().Equal(decimal.NewFromInt(75)))
	assert.Empty(t, cfg.Events.Brokers)
}

func TestLoadKeepsDefaultsForMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: memory\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "10m", cfg.Conversation.TTL)
	assert.Equal(t, 70, cfg.MTP.Expense)
	require.NoError(t, cfg.Validate())
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"driver", func(c *Config) { c.Storage.Driver = "mongo" }, "storage.driver"},
		{"sqlite path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"transport", func(c *Config) { c.Transport.Kind = "sms" }, "transport.kind"},
		{"policy", func(c *Config) { c.Conversation.OnCommand = "queue" }, "conversation.on_command"},
		{"ttl", func(c *Config) { c.Conversation.TTL = "0s" }, "conversation.ttl"},
		{"ttl format", func(c *Config) { c.Conversation.TTL = "ten minutes" }, "conversation.ttl"},
		{"mtp sum", func(c *Config) { c.MTP.Expense = 60 }, "sum to 90"},
		{"warn pct", func(c *Config) { c.Budget.WarnPct = 0 }, "budget.warn_pct"},
		{"timezone", func(c *Config) { c.Locale.Timezone = "Mars/Olympus" }, "locale.timezone"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestYAMLFormat(t *testing.T) {
	cfg := Default()
	path := filepath.Join(t.TempDir(), FileName)
	err := Save(path, cfg)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	contents := string(data)

	assert.Contains(t, contents, "driver: sqlite")
	assert.Contains(t, contents, "on_command: cancel")
	assert.Contains(t, contents, "ttl: 10m")
	assert.Contains(t, contents, "savings: 20")
	assert.NotContains(t, contents, "brokers")
	assert.NotContains(t, contents, "TOKEN")
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(EnvGeminiKey+"=from-file\n"+EnvDiscordToken+"=file-token\n"), 0o600))

	t.Setenv(EnvDiscordToken, "process-token")
	// godotenv only sets variables that are unset; clear the one the file provides.
	t.Setenv(EnvGeminiKey, "")
	require.NoError(t, os.Unsetenv(EnvGeminiKey))

	env, err := LoadEnv(envFile, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "from-file", env.GeminiAPIKey)
	assert.Equal(t, "process-token", env.DiscordToken)
	require.NoError(t, os.Unsetenv(EnvGeminiKey))
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 90*time.Second, Duration("90s", time.Minute))
	assert.Equal(t, time.Minute, Duration("", time.Minute))
	assert.Equal(t, time.Minute, Duration("-5s", time.Minute))
}
