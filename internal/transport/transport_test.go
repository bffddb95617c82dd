package transport

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbot-dev/finbot/internal/intake"
)

type sent struct {
	chatID int64
	text   string
}

type fakeSender struct {
	sent   []sent
	failOn int64
}

func (f *fakeSender) Send(_ context.Context, chatID int64, text string) error {
	if chatID == f.failOn {
		return errors.New("chat gone")
	}
	f.sent = append(f.sent, sent{chatID, text})
	return nil
}

func TestNotify(t *testing.T) {
	s := &fakeSender{failOn: 3}
	err := Notify(context.Background(), s, []intake.Notice{
		{UserID: 1, ChatID: 10, Text: "Lembrete: aluguel"},
		{UserID: 2, ChatID: 3, Text: "Lembrete: luz"},
		{UserID: 1, ChatID: 11, Text: "Lembrete: água"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat 3")
	assert.Equal(t, []sent{{10, "Lembrete: aluguel"}, {11, "Lembrete: água"}}, s.sent)
}

func TestChunk(t *testing.T) {
	assert.Equal(t, []string{"curto"}, Chunk("curto", 10))

	text := "linha um\nlinha dois\nlinha três"
	parts := Chunk(text, 12)
	assert.Equal(t, []string{"linha um", "linha dois", "linha três"}, parts)

	long := strings.Repeat("ã", 10)
	parts = Chunk(long, 5)
	for _, p := range parts {
		assert.LessOrEqual(t, len(p), 5)
		assert.True(t, strings.HasPrefix(p, "ã"))
	}
	assert.Equal(t, long, strings.Join(parts, ""))
}
