package dates

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/finbot-dev/finbot/internal/textnorm"
)

// Lexicon is a pluggable phrase table for one or more locales.
// Keys are matched after folding, so "ontem" and "Ontem" are the same phrase.
type Lexicon struct {
	RelativeDays   map[string]int    `yaml:"relative_days"`
	RelativeWeeks  map[string]int    `yaml:"relative_weeks"`
	RelativeMonths map[string]int    `yaml:"relative_months"`
	Weekdays       map[string]string `yaml:"weekdays"` // phrase -> English weekday name
	Layouts        []string          `yaml:"layouts"`
	Affirmative    []string          `yaml:"affirmative"`
	Negative       []string          `yaml:"negative"`
	Cancel         []string          `yaml:"cancel"`
	SkipDate       []string          `yaml:"skip_date"`
	IncomeMarkers  []string          `yaml:"income_markers"`
	Prepositions   []string          `yaml:"prepositions"`
	Fillers        []string          `yaml:"fillers"`
}

// DefaultLexicon returns the built-in Brazilian Portuguese and English table.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		RelativeDays: map[string]int{
			"hoje": 0, "today": 0,
			"ontem": -1, "yesterday": -1,
			"anteontem": -2, "antes de ontem": -2, "day before yesterday": -2,
			"amanha": 1, "tomorrow": 1,
		},
		RelativeWeeks: map[string]int{
			"semana passada": -1, "last week": -1,
		},
		RelativeMonths: map[string]int{
			"mes passado": -1, "last month": -1,
		},
		Weekdays: map[string]string{
			"domingo": "sunday", "sunday": "sunday",
			"segunda": "monday", "segunda-feira": "monday", "monday": "monday",
			"terca": "tuesday", "terca-feira": "tuesday", "tuesday": "tuesday",
			"quarta": "wednesday", "quarta-feira": "wednesday", "wednesday": "wednesday",
			"quinta": "thursday", "quinta-feira": "thursday", "thursday": "thursday",
			"sexta": "friday", "sexta-feira": "friday", "friday": "friday",
			"sabado": "saturday", "saturday": "saturday",
		},
		Layouts: []string{
			"02/01/2006", "02-01-2006", "02.01.2006",
			"2006-01-02",
			"02/01/06", "02-01-06",
			"02/01", "02-01", "2/1",
		},
		Affirmative:   []string{"sim", "s", "yes", "y", "ok", "confirmar", "confirmo", "confirma", "isso"},
		Negative:      []string{"nao", "n", "no", "errado"},
		Cancel:        []string{"cancelar", "cancela", "cancel", "/cancel", "/cancelar", "parar"},
		SkipDate:      []string{"pular", "skip", "hoje", "today"},
		IncomeMarkers: []string{"recebi", "ganhei", "salario", "receita", "entrou", "received", "earned", "salary"},
		Prepositions:  []string{"no", "na", "nos", "nas", "em", "com", "de", "do", "da", "pra", "para", "at", "on", "in", "for"},
		Fillers: []string{
			"gastei", "paguei", "comprei", "gasto", "gastos", "recebi", "ganhei", "entrou", "reais", "real", "um", "uma", "o", "a", "e", "dia",
			"spent", "paid", "bought", "received", "earned", "the", "day",
		},
	}
}

// LoadLexicon reads a phrase table from a YAML file.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading phrase table: %w", err)
	}
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("parsing phrase table: %w", err)
	}
	if err := lex.validate(); err != nil {
		return nil, fmt.Errorf("phrase table %s: %w", path, err)
	}
	return &lex, nil
}

// SaveLexicon writes a phrase table to a YAML file.
func SaveLexicon(path string, lex *Lexicon) error {
	data, err := yaml.Marshal(lex)
	if err != nil {
		return fmt.Errorf("marshaling phrase table: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing phrase table: %w", err)
	}
	return nil
}

func (l *Lexicon) validate() error {
	for phrase, day := range l.Weekdays {
		if _, ok := weekdayByName[day]; !ok {
			return fmt.Errorf("weekday %q for %q is not an English weekday name", day, phrase)
		}
	}
	return nil
}

// IsAffirmative reports whether the reply confirms.
func (l *Lexicon) IsAffirmative(input string) bool { return contains(l.Affirmative, input) }

// IsNegative reports whether the reply declines.
func (l *Lexicon) IsNegative(input string) bool { return contains(l.Negative, input) }

// IsCancel reports whether the reply cancels the conversation.
func (l *Lexicon) IsCancel(input string) bool { return contains(l.Cancel, input) }

// IsSkipDate reports whether the reply keeps today's date.
func (l *Lexicon) IsSkipDate(input string) bool { return contains(l.SkipDate, input) }

// IsIncomeMarker reports whether a folded word signals income.
func (l *Lexicon) IsIncomeMarker(word string) bool { return contains(l.IncomeMarkers, word) }

// IsPreposition reports whether a folded word is a preposition.
func (l *Lexicon) IsPreposition(word string) bool { return contains(l.Prepositions, word) }

// IsFiller reports whether a folded word carries no transaction meaning.
func (l *Lexicon) IsFiller(word string) bool { return contains(l.Fillers, word) }

func contains(list []string, input string) bool {
	folded := textnorm.Fold(input)
	for _, w := range list {
		if textnorm.Fold(w) == folded {
			return true
		}
	}
	return false
}

var weekdayByName = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}
