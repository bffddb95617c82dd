package categories

import (
	"sort"
	"strconv"
	"strings"

	"github.com/finbot-dev/finbot/internal/apperr"
	"github.com/finbot-dev/finbot/internal/model"
	"github.com/finbot-dev/finbot/internal/textnorm"
)

// Vocabulary is a user's category set with case- and accent-insensitive lookup.
type Vocabulary struct {
	categories []model.Category
	byFolded   map[string]model.Category
	words      map[string][]string // folded name -> its folded words
}

// NewVocabulary builds a Vocabulary. Later duplicates of a folded name are ignored.
func NewVocabulary(cats []model.Category) *Vocabulary {
	v := &Vocabulary{
		byFolded: make(map[string]model.Category, len(cats)),
		words:    make(map[string][]string, len(cats)),
	}
	for _, c := range cats {
		key := textnorm.Fold(c.Name)
		if key == "" {
			continue
		}
		if _, dup := v.byFolded[key]; dup {
			continue
		}
		v.categories = append(v.categories, c)
		v.byFolded[key] = c
		v.words[key] = textnorm.Words(c.Name)
	}
	return v
}

// All returns all categories in insertion order.
func (v *Vocabulary) All() []model.Category {
	return v.categories
}

// Names returns all category names in insertion order.
func (v *Vocabulary) Names() []string {
	names := make([]string, len(v.categories))
	for i, c := range v.categories {
		names[i] = c.Name
	}
	return names
}

// Exists reports whether name is in the vocabulary.
func (v *Vocabulary) Exists(name string) bool {
	_, ok := v.byFolded[textnorm.Fold(name)]
	return ok
}

// Canonical returns the stored spelling of name.
func (v *Vocabulary) Canonical(name string) (string, bool) {
	c, ok := v.byFolded[textnorm.Fold(name)]
	return c.Name, ok
}

// Match finds categories whose words appear as a contiguous run in words.
// Longer names win. Several names of the same winning length are returned as ties, sorted.
// The returned span holds the indices of the words consumed by the winner when there is exactly one.
func (v *Vocabulary) Match(words []string) (matches []string, span []int) {
	type hit struct {
		name  string
		size  int
		start int
		n     int
	}
	var best []hit
	for key, cw := range v.words {
		start := indexOfRun(words, cw)
		if start < 0 {
			continue
		}
		h := hit{name: v.byFolded[key].Name, size: len([]rune(key)), start: start, n: len(cw)}
		switch {
		case len(best) == 0 || h.size > best[0].size:
			best = []hit{h}
		case h.size == best[0].size:
			best = append(best, h)
		}
	}
	if len(best) == 0 {
		return nil, nil
	}
	sort.Slice(best, func(i, j int) bool { return best[i].name < best[j].name })
	for _, h := range best {
		matches = append(matches, h.name)
	}
	if len(best) == 1 {
		for i := 0; i < best[0].n; i++ {
			span = append(span, best[0].start+i)
		}
	}
	return matches, span
}

// Select resolves a reply to a category. It accepts a 1-based index into options,
// an exact name, or a reply mentioning exactly one category.
// Ties return an AmbiguousCategory error carrying the choices.
func (v *Vocabulary) Select(input string, options []string) (string, error) {
	input = strings.TrimSpace(input)
	if n, err := strconv.Atoi(input); err == nil {
		if n >= 1 && n <= len(options) {
			if name, ok := v.Canonical(options[n-1]); ok {
				return name, nil
			}
			return options[n-1], nil
		}
		return "", apperr.New(apperr.ValidationFailure, "categories.Select", "option "+input+" out of range")
	}

	if name, ok := v.Canonical(input); ok {
		return name, nil
	}

	matches, _ := v.Match(textnorm.Words(input))
	switch len(matches) {
	case 0:
		return "", apperr.New(apperr.ValidationFailure, "categories.Select", "unknown category "+strconv.Quote(input))
	case 1:
		return matches[0], nil
	default:
		return "", apperr.Ambiguous("categories.Select", matches)
	}
}

func indexOfRun(words, run []string) int {
	if len(run) == 0 || len(run) > len(words) {
		return -1
	}
outer:
	for i := 0; i+len(run) <= len(words); i++ {
		for j, w := range run {
			if words[i+j] != w {
				continue outer
			}
		}
		return i
	}
	return -1
}
