package exporter

import (
	"fmt"
	"io"

	"tillpulse/pkg/contracts/domain"
)

// TransactionExporter writes normalized transaction tables as CSV
type TransactionExporter struct {
	csvWriter *CSVWriter
}

// NewTransactionExporter creates a new transaction table exporter
func NewTransactionExporter() *TransactionExporter {
	return &TransactionExporter{csvWriter: NewCSVWriter()}
}

// Write streams the table to out, BOM first when bomPrefix is set. Session
// tables are bounded by the upload cap, so building the rows up front is
// fine here.
func (t *TransactionExporter) Write(out io.Writer, txs []domain.Transaction, bomPrefix bool) error {
	records := make([][]string, 0, len(txs))
	for _, tx := range txs {
		records = append(records, t.rowFor(tx))
	}
	return t.csvWriter.WriteTo(out, t.headers(), records, bomPrefix)
}

// ExportFile writes the table to path using the streaming writer
func (t *TransactionExporter) ExportFile(path string, txs []domain.Transaction) error {
	stream, err := t.csvWriter.CreateStreamWriter(path, t.headers())
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	for i := range txs {
		if err := stream.WriteRecord(t.rowFor(txs[i])); err != nil {
			stream.Close()
			return fmt.Errorf("failed to write transaction: %w", err)
		}
	}

	if err := stream.Close(); err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	return nil
}

// headers returns the CSV headers of the transaction table
func (t *TransactionExporter) headers() []string {
	return []string{"Timestamp", "Date", "Hour", "Amount", "Payment", "Employee", "Service", "Ticket"}
}

// rowFor converts one transaction to a CSV row
func (t *TransactionExporter) rowFor(tx domain.Transaction) []string {
	return []string{
		tx.Timestamp.Format("2006-01-02 15:04:05"),
		tx.Day(),
		formatInt(tx.Hour()),
		formatDecimal(tx.Amount),
		string(tx.Payment),
		tx.Employee,
		tx.Service,
		tx.Ticket,
	}
}
