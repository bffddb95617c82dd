package auditlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC)

func testEntry() Entry {
	return Entry{
		Timestamp:      testTime,
		Event:          EventCommitted,
		ConversationID: "7f9c2ba4-e88f-41d2-9d63-7b1cfb3ad7e2",
		UserID:         42,
		ChatID:         -1001,
		Stage:          "committed",
		Details:        "expense 45.00 Alimentação, 2025-03-11",
	}
}

func TestRecord_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.csv")
	require.NoError(t, NewFile(path).Record(testEntry()))

	entries, err := Read(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, EventCommitted, entries[0].Event)
	assert.Equal(t, int64(-1001), entries[0].ChatID)
}

func TestRecord_ExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.csv")
	f := NewFile(path)
	require.NoError(t, f.Record(testEntry()))

	e2 := testEntry()
	e2.Event = EventAbandoned
	e2.Details = ""
	require.NoError(t, f.Record(e2))

	entries, err := Read(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, EventCommitted, entries[0].Event)
	assert.Equal(t, EventAbandoned, entries[1].Event)
}

func TestRecord_Concurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.csv")
	f := NewFile(path)

	var wg sync.WaitGroup
	for i := range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := testEntry()
			e.Details = fmt.Sprintf("entry %d, with comma", i)
			assert.NoError(t, f.Record(e))
		}()
	}
	wg.Wait()

	entries, err := Read(path)
	require.NoError(t, err)
	assert.Len(t, entries, 25)
}

func TestRead_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.csv")
	original := testEntry()
	require.NoError(t, Append(path, []Entry{original}))

	entries, err := Read(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	got := entries[0]
	assert.True(t, original.Timestamp.Equal(got.Timestamp))
	got.Timestamp = original.Timestamp
	assert.Equal(t, original, got)
}

func TestRead_NotFound(t *testing.T) {
	entries, err := Read(filepath.Join(t.TempDir(), "missing.csv"))
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestRead_HeaderOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.csv")
	require.NoError(t, os.WriteFile(path, []byte(Header+"\n"), 0o644))

	entries, err := Read(path)
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestUnmarshalEntry_BadFieldCount(t *testing.T) {
	_, err := UnmarshalEntry([]string{"one", "two"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expected 7 fields")
}

func TestUnmarshalEntry_BadUserID(t *testing.T) {
	row := MarshalEntry(testEntry())
	row[colUserID] = "abc"
	_, err := UnmarshalEntry(row)
	assert.ErrorContains(t, err, "parsing user_id")
}

func TestTimestampFormat(t *testing.T) {
	e := testEntry()
	e.Timestamp = time.Date(2025, 3, 12, 12, 0, 0, 0, time.FixedZone("BRT", -3*3600))
	assert.Equal(t, "2025-03-12T15:00:00Z", MarshalEntry(e)[colTimestamp])
}
