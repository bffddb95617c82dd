package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finbot-dev/finbot/internal/model"
)

// Header is the CSV header of a transaction export.
const Header = "id,date,kind,amount,category,description,created_at,recurring_id"

const (
	numFields    = 8
	dateFormat   = "2006-01-02"
	colID        = 0
	colDate      = 1
	colKind      = 2
	colAmount    = 3
	colCategory  = 4
	colDesc      = 5
	colCreatedAt = 6
	colRecurring = 7
)

// ReadTransactions reads an exported transaction CSV.
func ReadTransactions(r io.Reader) ([]model.Transaction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading transactions CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	// Skip header row.
	var txs []model.Transaction
	for i, rec := range records[1:] {
		tx, err := UnmarshalTransaction(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// WriteTransactions writes transactions as CSV, header included.
func WriteTransactions(w io.Writer, txs []model.Transaction) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, tx := range txs {
		if err := cw.Write(MarshalTransaction(tx)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalTransaction converts a Transaction to a CSV row.
func MarshalTransaction(tx model.Transaction) []string {
	row := make([]string, numFields)
	row[colID] = strconv.FormatInt(tx.ID, 10)
	row[colDate] = tx.Date.Format(dateFormat)
	row[colKind] = string(tx.Kind)
	row[colAmount] = tx.Amount.StringFixed(2)
	row[colCategory] = tx.Category
	row[colDesc] = tx.Description
	if !tx.CreatedAt.IsZero() {
		row[colCreatedAt] = tx.CreatedAt.UTC().Format(time.RFC3339)
	}
	if tx.RecurringID != 0 {
		row[colRecurring] = strconv.FormatInt(tx.RecurringID, 10)
	}
	return row
}

// UnmarshalTransaction converts a CSV row to a Transaction.
func UnmarshalTransaction(record []string) (model.Transaction, error) {
	if len(record) != numFields {
		return model.Transaction{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	id, err := strconv.ParseInt(record[colID], 10, 64)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing id %q: %w", record[colID], err)
	}

	date, err := time.Parse(dateFormat, record[colDate])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing date %q: %w", record[colDate], err)
	}

	amount, err := decimal.NewFromString(record[colAmount])
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
	}

	var createdAt time.Time
	if record[colCreatedAt] != "" {
		createdAt, err = time.Parse(time.RFC3339, record[colCreatedAt])
		if err != nil {
			return model.Transaction{}, fmt.Errorf("parsing created_at %q: %w", record[colCreatedAt], err)
		}
	}

	var recurringID int64
	if record[colRecurring] != "" {
		recurringID, err = strconv.ParseInt(record[colRecurring], 10, 64)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("parsing recurring_id %q: %w", record[colRecurring], err)
		}
	}

	return model.Transaction{
		ID:          id,
		Date:        date,
		Kind:        model.Kind(record[colKind]),
		Amount:      amount,
		Category:    record[colCategory],
		Description: record[colDesc],
		CreatedAt:   createdAt,
		RecurringID: recurringID,
	}, nil
}
