package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndString(t *testing.T) {
	p, err := Parse("2025-01")
	require.NoError(t, err)
	assert.Equal(t, New(2025, time.January), p)
	assert.Equal(t, "2025-01", p.String())
}

func TestParseErrors(t *testing.T) {
	bad := []string{"", "2025", "2025-13", "2025-00", "abcd-01", "2025-xx"}
	for _, s := range bad {
		_, err := Parse(s)
		assert.Error(t, err, "Parse(%q)", s)
	}
}

func TestZero(t *testing.T) {
	var p Period
	assert.True(t, p.IsZero())
	assert.Equal(t, "", p.String())
}

func TestClampDay(t *testing.T) {
	tests := []struct {
		p    Period
		day  int
		want string
	}{
		{New(2025, time.February), 31, "2025-02-28"},
		{New(2024, time.February), 31, "2024-02-29"},
		{New(2025, time.April), 31, "2025-04-30"},
		{New(2025, time.January), 31, "2025-01-31"},
		{New(2025, time.January), 15, "2025-01-15"},
		{New(2025, time.January), 0, "2025-01-01"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.p.ClampDay(tt.day).Format("2006-01-02"), "%s day %d", tt.p, tt.day)
	}
}

func TestBoundaries(t *testing.T) {
	p := New(2025, time.December)
	assert.Equal(t, "2025-12-01", p.Start().Format("2006-01-02"))
	assert.Equal(t, "2025-12-31", p.End().Format("2006-01-02"))
	assert.Equal(t, 31, p.Days())
	assert.Equal(t, New(2026, time.January), p.Next())
	assert.Equal(t, New(2024, time.December), New(2025, time.January).Prev())
	assert.True(t, New(2024, time.December).Before(New(2025, time.January)))
	assert.False(t, p.Before(p))
}

func TestContains(t *testing.T) {
	p := New(2025, time.March)
	assert.True(t, p.Contains(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, p.Contains(time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)))
}

func TestDateOf(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	ts := time.Date(2025, 5, 10, 23, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC), DateOf(ts))
}
