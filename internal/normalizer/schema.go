package normalizer

import (
	"fmt"
	"strings"

	"tillpulse/internal/config"
	apierrors "tillpulse/internal/errors"
)

// Field identifies one logical column of a register export
type Field string

const (
	FieldTimestamp Field = "timestamp"
	FieldDate      Field = "date"
	FieldTime      Field = "time"
	FieldAmount    Field = "amount"
	FieldPayment   Field = "payment"
	FieldEmployee  Field = "employee"
	FieldService   Field = "service"
	FieldTicket    Field = "ticket"
)

// fieldOrder is the stable presentation order for resolved columns
var fieldOrder = []Field{
	FieldTimestamp, FieldDate, FieldTime, FieldAmount,
	FieldPayment, FieldEmployee, FieldService, FieldTicket,
}

// Schema maps logical fields to column positions of one export. A field
// missing from the export is simply absent from the map; Cell returns the
// empty string for it so optional columns degrade gracefully.
type Schema struct {
	columns     map[Field]int
	header      []string
	requiredMax int
}

// Column returns the column index of a field and whether it resolved
func (s *Schema) Column(f Field) (int, bool) {
	idx, ok := s.columns[f]
	return idx, ok
}

// Has reports whether the field resolved to a column
func (s *Schema) Has(f Field) bool {
	_, ok := s.columns[f]
	return ok
}

// Cell returns the raw value of a field in the given row, or "" when the
// field did not resolve or the row is too short to reach it.
func (s *Schema) Cell(row []string, f Field) string {
	idx, ok := s.columns[f]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// RequiredMax returns the highest column index among required fields. Rows
// shorter than this cannot carry a timestamp and an amount.
func (s *Schema) RequiredMax() int {
	return s.requiredMax
}

// Columns lists the resolved logical fields in presentation order
func (s *Schema) Columns() []string {
	out := make([]string, 0, len(s.columns))
	for _, f := range fieldOrder {
		if _, ok := s.columns[f]; ok {
			out = append(out, string(f))
		}
	}
	return out
}

// Header returns the raw header row the schema resolved against
func (s *Schema) Header() []string {
	return s.header
}

// ResolveSchema matches one candidate header row against the configured
// synonym lists. Matching is case-insensitive and ignores surrounding
// whitespace and a UTF-8 BOM. The first matching cell wins per field.
// An export must carry an amount column and either a combined timestamp
// column or a date column; everything else is optional.
func ResolveSchema(header []string, cfg config.SchemaConfig) (*Schema, error) {
	synonyms := map[Field][]string{
		FieldTimestamp: cfg.TimestampColumns,
		FieldDate:      cfg.DateColumns,
		FieldTime:      cfg.TimeColumns,
		FieldAmount:    cfg.AmountColumns,
		FieldPayment:   cfg.PaymentColumns,
		FieldEmployee:  cfg.EmployeeColumns,
		FieldService:   cfg.ServiceColumns,
		FieldTicket:    cfg.TicketColumns,
	}

	columns := make(map[Field]int)
	for i, cell := range header {
		label := normalizeHeaderCell(cell)
		if label == "" {
			continue
		}
		for field, labels := range synonyms {
			if _, taken := columns[field]; taken {
				continue
			}
			for _, candidate := range labels {
				if label == strings.ToLower(strings.TrimSpace(candidate)) {
					columns[field] = i
					break
				}
			}
		}
	}

	var missing []string
	if _, ok := columns[FieldAmount]; !ok {
		missing = append(missing, string(FieldAmount))
	}
	_, hasTimestamp := columns[FieldTimestamp]
	_, hasDate := columns[FieldDate]
	if !hasTimestamp && !hasDate {
		missing = append(missing, "timestamp or date")
	}
	if len(missing) > 0 {
		return nil, apierrors.NewSchemaError(
			fmt.Sprintf("cannot resolve columns: %s", strings.Join(missing, ", ")), nil)
	}

	s := &Schema{columns: columns, header: header}
	for _, f := range []Field{FieldTimestamp, FieldDate, FieldAmount} {
		if idx, ok := columns[f]; ok && idx > s.requiredMax {
			s.requiredMax = idx
		}
	}
	return s, nil
}

// headerScanLimit bounds how many leading rows are probed for a header.
// Register exports sometimes open with a title line or shop address.
const headerScanLimit = 10

// FindHeader scans the leading rows of an export for the first row that
// resolves to a usable schema.
func FindHeader(rows [][]string, cfg config.SchemaConfig) (int, *Schema, error) {
	limit := len(rows)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}

	for i := 0; i < limit; i++ {
		schema, err := ResolveSchema(rows[i], cfg)
		if err != nil {
			continue
		}
		return i, schema, nil
	}

	return 0, nil, apierrors.NewParsingError(
		fmt.Sprintf("no usable header row in the first %d rows", limit), nil)
}

// normalizeHeaderCell lowercases a header label, trimming whitespace and a
// leading UTF-8 BOM that Windows re-exports like to prepend.
func normalizeHeaderCell(cell string) string {
	cell = strings.TrimPrefix(cell, "﻿")
	return strings.ToLower(strings.TrimSpace(cell))
}
