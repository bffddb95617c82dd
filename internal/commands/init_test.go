package commands_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbot-dev/finbot/internal/config"
	"github.com/finbot-dev/finbot/internal/dates"
)

var binaryPath string

func TestMain(m *testing.M) {
	// Build the binary once for all tests.
	tmpDir, err := os.MkdirTemp("", "finbot-test-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmpDir)

	binaryPath = filepath.Join(tmpDir, "finbot")
	cmd := exec.Command("go", "build", "-o", binaryPath, "../../cmd/finbot")
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		panic("failed to build binary: " + err.Error())
	}

	os.Exit(m.Run())
}

func runFinbot(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append(os.Environ(), "NO_COLOR=1", config.EnvGeminiKey+"=")
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func initProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := runFinbot(t, "", "init", dir, "--storage", "sqlite")
	require.NoError(t, err)
	return dir
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := t.TempDir()
	_, err := runFinbot(t, "", "init", dir)
	require.NoError(t, err)

	for _, d := range []string{"logs", "exports"} {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}
	for _, f := range []string{config.FileName, "phrases.yaml", ".env.example", ".gitignore"} {
		_, err := os.Stat(filepath.Join(dir, f))
		require.NoError(t, err, "file %s should exist", f)
	}
}

func TestInit_Config(t *testing.T) {
	dir := t.TempDir()
	_, err := runFinbot(t, "", "init", dir, "--transport", "telegram", "--on-command", "reject")
	require.NoError(t, err)

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "telegram", cfg.Transport.Kind)
	assert.Equal(t, "reject", cfg.Conversation.OnCommand)
	assert.Equal(t, "phrases.yaml", cfg.Locale.Phrases)
	require.NoError(t, cfg.Validate())
}

func TestInit_PhraseTable(t *testing.T) {
	dir := t.TempDir()
	_, err := runFinbot(t, "", "init", dir)
	require.NoError(t, err)

	lex, err := dates.LoadLexicon(filepath.Join(dir, "phrases.yaml"))
	require.NoError(t, err)
	want := dates.DefaultLexicon()
	assert.Equal(t, want.Affirmative, lex.Affirmative)
	assert.Equal(t, want.Weekdays, lex.Weekdays)
}

func TestInit_EnvExampleHoldsNoSecrets(t *testing.T) {
	dir := t.TempDir()
	_, err := runFinbot(t, "", "init", dir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, ".env.example"))
	require.NoError(t, err)
	assert.Contains(t, string(data), config.EnvTelegramToken+"=\n")

	gitignore, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Contains(t, string(gitignore), ".env\n")
}

func TestInit_RejectsBadFlags(t *testing.T) {
	_, err := runFinbot(t, "", "init", t.TempDir(), "--storage", "mongo")
	require.Error(t, err, "init with an unknown storage driver should fail")
}

func TestInit_RefusesToOverwrite(t *testing.T) {
	dir := initProject(t)
	out, err := runFinbot(t, "", "init", dir)
	require.Error(t, err)
	assert.Contains(t, out, "already exists")
}

func TestChat_RecordsAndReports(t *testing.T) {
	dir := initProject(t)

	out, err := runFinbot(t, "/addreceita 3000 salário\n/addgasto 45 mercado Alimentação hoje\nsair\n", "chat", "--dir", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Registrado: receita de R$ 3.000,00")

	out, err = runFinbot(t, "", "dashboard", "--dir", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Receitas")

	exports := filepath.Join(dir, "out")
	out, err = runFinbot(t, "", "export", "--dir", dir, "--format", "csv", "--out", exports)
	require.NoError(t, err, out)
	entries, err := os.ReadDir(exports)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".csv"))
}

func TestExport_UnsupportedFormat(t *testing.T) {
	dir := initProject(t)
	out, err := runFinbot(t, "", "export", "--dir", dir, "--format", "pdf")
	require.Error(t, err)
	assert.Contains(t, out, "format not supported")
}

func TestCommandsNeedInit(t *testing.T) {
	out, err := runFinbot(t, "", "dashboard", "--dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, out, "finbot init")
}
