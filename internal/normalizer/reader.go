package normalizer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"tillpulse/internal/config"
	apierrors "tillpulse/internal/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadTable decodes an uploaded register export into raw rows. The format
// is chosen by file extension: CSV variants are parsed with delimiter
// sniffing, XLSX workbooks through excelize. Unknown extensions fail with
// an unsupported format error.
func ReadTable(r io.Reader, filename string, cfg config.SchemaConfig) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv", ".txt", "":
		return readCSV(data, cfg)
	case ".xlsx", ".xlsm":
		return readXLSX(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

// readCSV parses CSV bytes into rows. Rows may have ragged lengths; the
// schema layer decides what is usable.
func readCSV(data []byte, cfg config.SchemaConfig) ([][]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	delimiter := sniffDelimiter(data)
	if cfg.Delimiter != "" {
		delimiter = rune(cfg.Delimiter[0])
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, apierrors.NewParsingError("file could not be parsed as CSV", err)
	}
	return rows, nil
}

// readXLSX parses an Excel workbook. Workbooks sometimes carry a cover
// sheet before the data, so every sheet is probed for a usable header and
// the first one that resolves wins. When none resolves the first non-empty
// sheet is returned so the caller reports the schema failure with context.
func readXLSX(data []byte, cfg config.SchemaConfig) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, apierrors.NewParsingError("file could not be parsed as XLSX", err)
	}
	defer f.Close()

	var fallback [][]string
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil || len(rows) == 0 {
			continue
		}
		if _, _, err := FindHeader(rows, cfg); err == nil {
			return rows, nil
		}
		if fallback == nil {
			fallback = rows
		}
	}

	if fallback == nil {
		return nil, apierrors.NewParsingError("workbook has no data sheets", nil)
	}
	return fallback, nil
}

// sniffDelimiter guesses the CSV field separator from the first line.
// French register exports favor semicolons, Anglo ones commas, and the
// odd vendor tabs.
func sniffDelimiter(data []byte) rune {
	line := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		line = data[:idx]
	}

	counts := map[rune]int{',': 0, ';': 0, '\t': 0}
	inQuotes := false
	for _, b := range string(line) {
		switch {
		case b == '"':
			inQuotes = !inQuotes
		case inQuotes:
		default:
			if _, ok := counts[b]; ok {
				counts[b]++
			}
		}
	}

	best := ','
	bestCount := counts[',']
	for _, candidate := range []rune{';', '\t'} {
		if counts[candidate] > bestCount {
			best = candidate
			bestCount = counts[candidate]
		}
	}
	return best
}
