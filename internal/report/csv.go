package report

import (
	"bytes"

	"github.com/finbot-dev/finbot/internal/ledger"
)

// CSVRenderer exports the payload's transactions in the ledger CSV layout.
type CSVRenderer struct{}

func (CSVRenderer) Format() string { return "csv" }

func (CSVRenderer) Render(p Payload) (Document, error) {
	var buf bytes.Buffer
	if err := ledger.WriteTransactions(&buf, p.Transactions); err != nil {
		return Document{}, err
	}
	return Document{
		Name:     fileName(p.Result, "", "csv"),
		MIMEType: "text/csv",
		Data:     buf.Bytes(),
	}, nil
}
