package categories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finbot-dev/finbot/internal/apperr"
	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/textnorm"
)

func vocab(names ...string) *Vocabulary {
	cats := Builtin()
	for _, n := range names {
		cats = append(cats, model.Category{Name: n, IsCustom: true})
	}
	return NewVocabulary(cats)
}

func TestBuiltin(t *testing.T) {
	v := vocab()
	assert.Equal(t, []string{"Débito", "Crédito", "Alimentação", "Pix"}, v.Names())
	assert.True(t, IsBuiltin("alimentacao"))
	assert.False(t, IsBuiltin("Mercado"))
}

func TestCanonical(t *testing.T) {
	v := vocab("Supermercado")
	name, ok := v.Canonical("ALIMENTACAO")
	require.True(t, ok)
	assert.Equal(t, "Alimentação", name)

	_, ok = v.Canonical("mercado")
	assert.False(t, ok)
}

func TestDuplicatesIgnored(t *testing.T) {
	v := vocab("pix", "Lazer")
	assert.Equal(t, []string{"Débito", "Crédito", "Alimentação", "Pix", "Lazer"}, v.Names())
}

func TestMatchLongestFirst(t *testing.T) {
	v := vocab("Casa", "Casa de praia")
	matches, span := v.Match(textnorm.Words("gastei 300 na casa de praia"))
	assert.Equal(t, []string{"Casa de praia"}, matches)
	assert.Equal(t, []int{3, 4, 5}, span)
}

func TestMatchWholeWordsOnly(t *testing.T) {
	v := vocab()
	matches, _ := v.Match(textnorm.Words("comprei um pixel"))
	assert.Empty(t, matches)

	matches, _ = v.Match(textnorm.Words("gastei 45 no mercado"))
	assert.Empty(t, matches)
}

func TestMatchTies(t *testing.T) {
	v := vocab("Luz", "Gás")
	matches, span := v.Match(textnorm.Words("paguei luz e gas 200"))
	assert.Equal(t, []string{"Gás", "Luz"}, matches)
	assert.Nil(t, span)
}

func TestSelect(t *testing.T) {
	v := vocab("Farmácia")
	options := v.Names()

	tests := []struct {
		input string
		want  string
	}{
		{"Alimentação", "Alimentação"},
		{"alimentacao", "Alimentação"},
		{"3", "Alimentação"},
		{"5", "Farmácia"},
		{"foi no pix", "Pix"},
	}
	for _, tt := range tests {
		got, err := v.Select(tt.input, options)
		require.NoError(t, err, "Select(%q)", tt.input)
		assert.Equal(t, tt.want, got)
	}
}

func TestSelectErrors(t *testing.T) {
	v := vocab("Luz", "Gás")

	_, err := v.Select("mercado", v.Names())
	assert.True(t, apperr.Is(err, apperr.ValidationFailure))

	_, err = v.Select("9", v.Names())
	assert.True(t, apperr.Is(err, apperr.ValidationFailure))

	_, err = v.Select("luz ou gas", v.Names())
	require.True(t, apperr.Is(err, apperr.AmbiguousCategory))
	assert.Equal(t, []string{"Gás", "Luz"}, apperr.ChoicesOf(err))
}
