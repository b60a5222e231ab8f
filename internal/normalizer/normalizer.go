package normalizer

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tillpulse/internal/config"
	"tillpulse/pkg/contracts/domain"
)

// Normalizer converts raw register exports into typed transaction tables
// according to a configured schema.
type Normalizer struct {
	cfg     config.SchemaConfig
	aliases map[string]domain.PaymentMethod
	logger  *slog.Logger
}

// New creates a normalizer for the given schema configuration
func New(cfg config.SchemaConfig, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}

	aliases := make(map[string]domain.PaymentMethod, len(cfg.PaymentAliases))
	for raw, canonical := range cfg.PaymentAliases {
		key := strings.ToUpper(strings.TrimSpace(raw))
		if key == "" {
			continue
		}
		aliases[key] = domain.PaymentMethod(strings.ToUpper(strings.TrimSpace(canonical)))
	}

	return &Normalizer{
		cfg:     cfg,
		aliases: aliases,
		logger:  logger.With(slog.String("component", "normalizer")),
	}
}

// Normalize reads one export and produces the normalized dataset. The whole
// file fails only when it cannot be decoded or no header resolves; bad rows
// are dropped with a reason and counted in the summary. Transactions keep
// the encounter order of the file, duplicates keep their first occurrence.
func (n *Normalizer) Normalize(ctx context.Context, r io.Reader, filename string) (*domain.Dataset, error) {
	start := time.Now()

	rows, err := ReadTable(r, filename, n.cfg)
	if err != nil {
		return nil, err
	}

	headerIdx, schema, err := FindHeader(rows, n.cfg)
	if err != nil {
		return nil, err
	}

	n.logger.InfoContext(ctx, "schema resolved",
		"file", filename,
		"header_row", headerIdx,
		"columns", schema.Columns(),
	)

	dataset := &domain.Dataset{
		Summary: domain.ValidationSummary{Columns: schema.Columns()},
	}
	seen := make(map[string]struct{})

	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		dataset.Summary.RowsRead++

		if isEmptyRow(row) {
			dataset.Summary.Drop(domain.DropEmptyRow)
			continue
		}

		if len(row) <= schema.RequiredMax() {
			n.dropRow(ctx, i, domain.DropShortRow, row)
			dataset.Summary.Drop(domain.DropShortRow)
			continue
		}

		ts, ok := n.parseTimestamp(schema, row)
		if !ok {
			n.dropRow(ctx, i, domain.DropBadTimestamp, row)
			dataset.Summary.Drop(domain.DropBadTimestamp)
			continue
		}

		amount, ok := parseAmount(schema.Cell(row, FieldAmount))
		if !ok {
			n.dropRow(ctx, i, domain.DropBadAmount, row)
			dataset.Summary.Drop(domain.DropBadAmount)
			continue
		}
		if amount.IsNegative() {
			n.dropRow(ctx, i, domain.DropNegativeAmount, row)
			dataset.Summary.Drop(domain.DropNegativeAmount)
			continue
		}

		tx := domain.Transaction{
			Timestamp: ts,
			Amount:    amount,
			Payment:   domain.NormalizePayment(schema.Cell(row, FieldPayment), n.aliases),
			Employee:  strings.TrimSpace(schema.Cell(row, FieldEmployee)),
			Service:   strings.TrimSpace(schema.Cell(row, FieldService)),
			Ticket:    strings.TrimSpace(schema.Cell(row, FieldTicket)),
		}

		key := tx.Key()
		if _, dup := seen[key]; dup {
			dataset.Summary.Drop(domain.DropDuplicate)
			continue
		}
		seen[key] = struct{}{}

		dataset.Transactions = append(dataset.Transactions, tx)
		dataset.Summary.RowsKept++
	}

	n.logger.InfoContext(ctx, "normalization complete",
		"file", filename,
		"rows_read", dataset.Summary.RowsRead,
		"rows_kept", dataset.Summary.RowsKept,
		"rows_dropped", dataset.Summary.RowsDropped,
		"drop_reasons", dataset.Summary.DropReasons,
		"duration", time.Since(start).String(),
	)

	return dataset, nil
}

// dropRow logs one dropped row at debug level. Large exports can drop
// thousands of rows, so this stays out of the info stream.
func (n *Normalizer) dropRow(ctx context.Context, rowIdx int, reason domain.DropReason, row []string) {
	n.logger.DebugContext(ctx, "row dropped",
		"row", rowIdx,
		"reason", string(reason),
		"cells", len(row),
	)
}

// parseTimestamp extracts the sale time from a row, through either the
// combined timestamp column or the split date and time columns. A resolved
// time column with an empty cell falls back to midnight; an unreadable one
// fails the row.
func (n *Normalizer) parseTimestamp(s *Schema, row []string) (time.Time, bool) {
	if s.Has(FieldTimestamp) {
		cell := strings.TrimSpace(s.Cell(row, FieldTimestamp))
		if cell == "" {
			return time.Time{}, false
		}
		for _, layout := range n.cfg.TimestampLayouts {
			if ts, err := time.Parse(layout, cell); err == nil {
				return ts, true
			}
		}
		// Some exports write a bare date into the timestamp column
		for _, layout := range n.cfg.DateLayouts {
			if ts, err := time.Parse(layout, cell); err == nil {
				return ts, true
			}
		}
		return time.Time{}, false
	}

	dateCell := strings.TrimSpace(s.Cell(row, FieldDate))
	if dateCell == "" {
		return time.Time{}, false
	}

	var day time.Time
	parsed := false
	for _, layout := range n.cfg.DateLayouts {
		if d, err := time.Parse(layout, dateCell); err == nil {
			day = d
			parsed = true
			break
		}
	}
	if !parsed {
		return time.Time{}, false
	}

	timeCell := strings.TrimSpace(s.Cell(row, FieldTime))
	if timeCell == "" {
		return day, true
	}
	for _, layout := range n.cfg.TimeLayouts {
		if t, err := time.Parse(layout, timeCell); err == nil {
			return time.Date(day.Year(), day.Month(), day.Day(),
				t.Hour(), t.Minute(), t.Second(), 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// amountCleaner strips currency symbols and the whitespace variants that
// turn up as thousands separators in register exports.
var amountCleaner = strings.NewReplacer(
	"€", "", "$", "", "EUR", "",
	" ", "", " ", "", " ", "",
)

// parseAmount converts a raw amount cell to a decimal. Both decimal-comma
// and decimal-point notations are accepted; when both separators appear the
// last one is the decimal marker.
func parseAmount(cell string) (decimal.Decimal, bool) {
	v := amountCleaner.Replace(strings.TrimSpace(cell))
	if v == "" {
		return decimal.Decimal{}, false
	}

	dot := strings.LastIndex(v, ".")
	comma := strings.LastIndex(v, ",")
	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot { // 1.234,56
			v = strings.ReplaceAll(v, ".", "")
			v = strings.Replace(v, ",", ".", 1)
		} else { // 1,234.56
			v = strings.ReplaceAll(v, ",", "")
		}
	case comma >= 0: // 12,50
		v = strings.ReplaceAll(v, ",", ".")
	}

	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// isEmptyRow reports whether every cell of the row is blank
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
