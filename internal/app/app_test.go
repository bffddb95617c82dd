package app

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbot-dev/finbot/internal/auditlog"
	"github.com/finbot-dev/finbot/internal/config"
	"github.com/finbot-dev/finbot/internal/dates"
	"github.com/finbot-dev/finbot/internal/transport/console"
)

var fixedNow = time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Storage.Driver = "memory"
	cfg.Locale.Timezone = "UTC"
	cfg.AI.Enabled = false
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, err := New(context.Background(), cfg, config.Env{}, Options{
		Dir:    t.TempDir(),
		Logger: NewLogger("error", io.Discard),
		Now:    func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type recordingSender struct {
	mu    sync.Mutex
	texts []string
}

func (s *recordingSender) Send(_ context.Context, _ int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.MTP.Expense = 10
	_, err := New(context.Background(), cfg, config.Env{}, Options{Logger: NewLogger("error", io.Discard)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestNewNeedsPostgresDSN(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Driver = "postgres"
	_, err := New(context.Background(), cfg, config.Env{}, Options{Logger: NewLogger("error", io.Discard)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.EnvDatabaseURL)
}

func TestNewWithSQLiteAndPhrases(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, dates.SaveLexicon(filepath.Join(dir, "phrases.yaml"), dates.DefaultLexicon()))

	cfg := testConfig()
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.Path = "finbot.db"
	cfg.Locale.Phrases = "phrases.yaml"
	a, err := New(context.Background(), cfg, config.Env{}, Options{Dir: dir, Logger: NewLogger("error", io.Discard)})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	_, err = os.Stat(filepath.Join(dir, "finbot.db"))
	assert.NoError(t, err)
}

func TestTransportNeedsTokens(t *testing.T) {
	a := newTestApp(t, testConfig())

	a.Config.Transport.Kind = "telegram"
	_, err := a.Transport(nil, nil)
	assert.ErrorContains(t, err, config.EnvTelegramToken)

	a.Config.Transport.Kind = "discord"
	_, err = a.Transport(nil, nil)
	assert.ErrorContains(t, err, config.EnvDiscordToken)

	a.Config.Transport.Kind = "console"
	tr, err := a.Transport(strings.NewReader(""), io.Discard)
	require.NoError(t, err)
	assert.IsType(t, &console.Console{}, tr)
}

func TestServeConsole(t *testing.T) {
	a := newTestApp(t, testConfig())

	var out syncBuffer
	tr, err := a.Transport(strings.NewReader("/addreceita 3000 salário\ngastei 45 no mercado\n1\nhoje\nsim\n/saldo\nsair\n"), &out)
	require.NoError(t, err)
	require.NoError(t, a.Serve(context.Background(), tr))

	text := out.String()
	assert.Contains(t, text, "Registrado: receita de R$ 3.000,00")
	assert.Contains(t, text, "Saldo")
	assert.Equal(t, 0, a.Convs.Len())
}

func TestAuditLogWritten(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Audit.Path = "logs/conversations.csv"
	a, err := New(context.Background(), cfg, config.Env{}, Options{
		Dir:    dir,
		Logger: NewLogger("error", io.Discard),
		Now:    func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	defer a.Close()

	var out syncBuffer
	tr, err := a.Transport(strings.NewReader("gastei 45 no mercado\n/cancelar\nsair\n"), &out)
	require.NoError(t, err)
	require.NoError(t, a.Serve(context.Background(), tr))

	entries, err := auditlog.Read(filepath.Join(dir, "logs", "conversations.csv"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, auditlog.EventStarted, entries[0].Event)
	assert.Equal(t, auditlog.EventAbandoned, entries[1].Event)
}

func TestNotifyDueFiresOncePerPeriod(t *testing.T) {
	a := newTestApp(t, testConfig())
	ctx := context.Background()
	_, err := a.Ledger.AddReminder(ctx, 1, 10, 5, time.Time{}, "aluguel")
	require.NoError(t, err)

	s := &recordingSender{}
	require.NoError(t, a.NotifyDue(ctx, s))
	require.NoError(t, a.NotifyDue(ctx, s))
	assert.Equal(t, []string{"Lembrete: aluguel (05/03/2025)"}, s.texts)
}

func TestRunRemindersStopsWithContext(t *testing.T) {
	a := newTestApp(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	_, err := a.Ledger.AddReminder(ctx, 1, 10, 1, time.Time{}, "cartão")
	require.NoError(t, err)

	s := &recordingSender{}
	done := make(chan struct{})
	go func() {
		a.RunReminders(ctx, s, time.Hour)
		close(done)
	}()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.texts) == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log := NewLogger("warn", &buf)
	log.Info("hidden")
	log.Warn("shown", "user", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown user=1")
}
