// Package auditlog keeps an append-only CSV record of conversation lifecycle events.
package auditlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Event names a conversation lifecycle step.
type Event string

const (
	EventStarted    Event = "started"
	EventAdvanced   Event = "advanced"
	EventReprompted Event = "reprompted"
	EventCommitted  Event = "committed"
	EventAbandoned  Event = "abandoned"
	EventExpired    Event = "expired"
	EventRejected   Event = "rejected"
)

// Entry is one row in the audit log.
type Entry struct {
	Timestamp      time.Time
	Event          Event
	ConversationID string
	UserID         int64
	ChatID         int64
	Stage          string
	Details        string
}

// Header is the CSV header of the audit log.
const Header = "timestamp,event,conversation_id,user_id,chat_id,stage,details"

const (
	numFields    = 7
	colTimestamp = 0
	colEvent     = 1
	colConvID    = 2
	colUserID    = 3
	colChatID    = 4
	colStage     = 5
	colDetails   = 6
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colEvent] = string(e.Event)
	row[colConvID] = e.ConversationID
	row[colUserID] = strconv.FormatInt(e.UserID, 10)
	row[colChatID] = strconv.FormatInt(e.ChatID, 10)
	row[colStage] = e.Stage
	row[colDetails] = e.Details
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	userID, err := strconv.ParseInt(record[colUserID], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing user_id %q: %w", record[colUserID], err)
	}
	chatID, err := strconv.ParseInt(record[colChatID], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing chat_id %q: %w", record[colChatID], err)
	}

	return Entry{
		Timestamp:      ts,
		Event:          Event(record[colEvent]),
		ConversationID: record[colConvID],
		UserID:         userID,
		ChatID:         chatID,
		Stage:          record[colStage],
		Details:        record[colDetails],
	}, nil
}

// File appends entries to one CSV file. It is safe for concurrent use.
type File struct {
	mu   sync.Mutex
	path string
}

// NewFile returns a File writing to path. Nothing is created until the first Record.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the log file path.
func (f *File) Path() string {
	return f.path
}

// Record appends e to the log.
func (f *File) Record(e Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Append(f.path, []Entry{e})
}

// Append writes entries to path, creating the file, its directory and the header if needed.
func Append(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating audit log dir: %w", err)
	}

	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	fh, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer fh.Close()

	cw := csv.NewWriter(fh)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns all entries in path. A missing file has no entries.
func Read(path string) ([]Entry, error) {
	fh, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer fh.Close()

	return readEntries(fh)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
