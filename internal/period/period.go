package period

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is a calendar month, the unit for budgets, projections and reminder de-duplication.
type Period struct {
	Year  int
	Month time.Month
}

// New returns the period for a year and month.
func New(year int, month time.Month) Period {
	return Period{Year: year, Month: month}
}

// Of returns the period containing t, in t's location.
func Of(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Parse parses "2025-01" into a Period.
func Parse(s string) (Period, error) {
	parts := strings.SplitN(strings.TrimSpace(s), "-", 2)
	if len(parts) != 2 {
		return Period{}, fmt.Errorf("invalid period format: %q", s)
	}

	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Period{}, fmt.Errorf("invalid year in period %q: %w", s, err)
	}

	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return Period{}, fmt.Errorf("invalid month in period %q: %w", s, err)
	}
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("month %d out of range in period %q", month, s)
	}

	return Period{Year: year, Month: time.Month(month)}, nil
}

// String returns the period as "2025-01". The zero period formats as "".
func (p Period) String() string {
	if p.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// IsZero reports whether p is the zero period.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

// Start returns the first calendar day of the period.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last calendar day of the period.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, -1)
}

// Days returns the number of days in the period.
func (p Period) Days() int {
	return p.End().Day()
}

// Contains reports whether the calendar date d falls within the period.
func (p Period) Contains(d time.Time) bool {
	return d.Year() == p.Year && d.Month() == p.Month
}

// Next returns the following month.
func (p Period) Next() Period {
	return Of(p.Start().AddDate(0, 1, 0))
}

// Prev returns the preceding month.
func (p Period) Prev() Period {
	return Of(p.Start().AddDate(0, -1, 0))
}

// Before reports whether p is earlier than q.
func (p Period) Before(q Period) bool {
	if p.Year != q.Year {
		return p.Year < q.Year
	}
	return p.Month < q.Month
}

// ClampDay returns the calendar date for day-of-month in p.
// Days past the end of the month clamp to the last day, so day 31 in February is the 28th or 29th.
func (p Period) ClampDay(day int) time.Time {
	if day < 1 {
		day = 1
	}
	if last := p.Days(); day > last {
		day = last
	}
	return time.Date(p.Year, p.Month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf returns the calendar date of t as midnight UTC, keeping t's local year, month and day.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
