package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips combining marks, so "Alimentação" folds to "alimentacao".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// Token is one whitespace-separated word of an utterance.
type Token struct {
	Raw    string // as typed, trailing punctuation trimmed
	Folded string
}

// Tokens splits s on whitespace and trims surrounding punctuation from each word.
func Tokens(s string) []Token {
	fields := strings.Fields(s)
	tokens := make([]Token, 0, len(fields))
	for _, f := range fields {
		raw := strings.TrimRight(strings.TrimLeft(f, "\"'(["), "\"'!?;:.,)]")
		if raw == "" {
			continue
		}
		tokens = append(tokens, Token{Raw: raw, Folded: Fold(raw)})
	}
	return tokens
}

// Folded returns the folded form of every token.
func Folded(tokens []Token) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = t.Folded
	}
	return out
}

// Words folds s and splits it into words.
func Words(s string) []string {
	return Folded(Tokens(s))
}
