package dates

import (
	"sort"
	"strings"
	"time"

	"github.com/finbot-dev/finbot/internal/period"
	"github.com/finbot-dev/finbot/internal/textnorm"
)

// Resolver turns date phrases into calendar dates relative to a clock.
type Resolver struct {
	lex     *Lexicon
	phrases []phrase // longest first
}

type phrase struct {
	words   []string
	resolve func(today time.Time) time.Time
}

// NewResolver builds a Resolver over a phrase table.
func NewResolver(lex *Lexicon) *Resolver {
	r := &Resolver{lex: lex}
	for p, n := range lex.RelativeDays {
		r.add(p, func(today time.Time) time.Time { return today.AddDate(0, 0, n) })
	}
	for p, n := range lex.RelativeWeeks {
		r.add(p, func(today time.Time) time.Time { return today.AddDate(0, 0, 7*n) })
	}
	for p, n := range lex.RelativeMonths {
		r.add(p, func(today time.Time) time.Time { return shiftMonths(today, n) })
	}
	for p, name := range lex.Weekdays {
		wd, ok := weekdayByName[name]
		if !ok {
			continue
		}
		r.add(p, func(today time.Time) time.Time { return lastWeekday(today, wd) })
	}
	sort.SliceStable(r.phrases, func(i, j int) bool {
		if len(r.phrases[i].words) != len(r.phrases[j].words) {
			return len(r.phrases[i].words) > len(r.phrases[j].words)
		}
		return strings.Join(r.phrases[i].words, " ") < strings.Join(r.phrases[j].words, " ")
	})
	return r
}

func (r *Resolver) add(p string, fn func(time.Time) time.Time) {
	words := textnorm.Words(p)
	if len(words) == 0 {
		return
	}
	r.phrases = append(r.phrases, phrase{words: words, resolve: fn})
}

// Lexicon returns the phrase table the resolver was built from.
func (r *Resolver) Lexicon() *Lexicon {
	return r.lex
}

// Resolve interprets a whole reply as a date.
func (r *Resolver) Resolve(input string, now time.Time) (time.Time, bool) {
	words := textnorm.Words(input)
	if len(words) == 0 {
		return time.Time{}, false
	}
	d, span, ok := r.Find(words, now)
	if !ok || len(span) != len(words) {
		return time.Time{}, false
	}
	return d, true
}

// Find locates the first date phrase or absolute date among folded words.
// It returns the indices of the words it consumed.
func (r *Resolver) Find(words []string, now time.Time) (time.Time, []int, bool) {
	today := period.DateOf(now)
	for i := range words {
		for _, p := range r.phrases {
			if hasRunAt(words, p.words, i) {
				span := make([]int, len(p.words))
				for j := range span {
					span[j] = i + j
				}
				return p.resolve(today), span, true
			}
		}
		if d, ok := r.parseLayout(words[i], today); ok {
			return d, []int{i}, true
		}
	}
	return time.Time{}, nil, false
}

func (r *Resolver) parseLayout(word string, today time.Time) (time.Time, bool) {
	for _, layout := range r.lex.Layouts {
		t, err := time.Parse(layout, word)
		if err != nil {
			continue
		}
		if !strings.Contains(layout, "06") {
			day, month := t.Day(), t.Month()
			t = time.Date(today.Year(), month, day, 0, 0, 0, 0, time.UTC)
			if t.Day() != day {
				// "29/02" outside a leap year.
				continue
			}
		}
		return period.DateOf(t), true
	}
	return time.Time{}, false
}

func hasRunAt(words, run []string, i int) bool {
	if i+len(run) > len(words) {
		return false
	}
	for j, w := range run {
		if words[i+j] != w {
			return false
		}
	}
	return true
}

func shiftMonths(today time.Time, n int) time.Time {
	target := period.Of(today)
	for ; n < 0; n++ {
		target = target.Prev()
	}
	for ; n > 0; n-- {
		target = target.Next()
	}
	return target.ClampDay(today.Day())
}

// lastWeekday returns the most recent wd on or before today.
func lastWeekday(today time.Time, wd time.Weekday) time.Time {
	diff := (int(today.Weekday()) - int(wd) + 7) % 7
	return today.AddDate(0, 0, -diff)
}
