package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillpulse/internal/config"
	"tillpulse/internal/exporter"
	"tillpulse/internal/files"
	"tillpulse/internal/kpi"
	"tillpulse/internal/normalizer"
	"tillpulse/internal/validation"
	"tillpulse/pkg/contracts/domain"
)

const analyzeSampleExport = `timestamp,amount,payment,employee,service
2024-01-01 09:00,10,card,A,wash
2024-01-01 09:00,10,card,A,wash
2024-01-01 14:00,20,cash,B,cut
`

func newTestAnalyzer(t *testing.T, outDir, format string) *analyzer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Default()

	return &analyzer{
		normalizer: normalizer.New(cfg.Schema, logger),
		aggregator: kpi.NewAggregator(logger, cfg.Analytics.TopN),
		reports:    exporter.NewReportExporter(logger),
		logger:     logger,
		outDir:     outDir,
		format:     format,
		topN:       cfg.Analytics.TopN,
	}
}

func writeExport(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func quietValidator() *validation.ExportValidator {
	return validation.NewExportValidator(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestResolveTargets(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "february.csv", analyzeSampleExport)
	oldPath := writeExport(t, dir, "january.csv", analyzeSampleExport)
	writeExport(t, dir, "notes.pdf", "not an export")

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(oldPath, past, past))

	t.Run("single file", func(t *testing.T) {
		targets, err := resolveTargets(quietValidator(), oldPath, false)
		require.NoError(t, err)
		require.Len(t, targets, 1)
		assert.Equal(t, "january.csv", targets[0].Name)
	})

	t.Run("unsupported file", func(t *testing.T) {
		_, err := resolveTargets(quietValidator(), filepath.Join(dir, "notes.pdf"), false)
		assert.Error(t, err)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := resolveTargets(quietValidator(), filepath.Join(dir, "nope.csv"), false)
		assert.Error(t, err)
	})

	t.Run("directory skips non exports", func(t *testing.T) {
		targets, err := resolveTargets(quietValidator(), dir, false)
		require.NoError(t, err)
		require.Len(t, targets, 2)
		assert.Equal(t, "february.csv", targets[0].Name)
		assert.Equal(t, "january.csv", targets[1].Name)
	})

	t.Run("latest picks newest", func(t *testing.T) {
		targets, err := resolveTargets(quietValidator(), dir, true)
		require.NoError(t, err)
		require.Len(t, targets, 1)
		assert.Equal(t, "february.csv", targets[0].Name)
	})
}

func TestAnalyzeFileWritesReports(t *testing.T) {
	inDir := t.TempDir()
	outDir := t.TempDir()
	writeExport(t, inDir, "january.csv", analyzeSampleExport)

	targets, err := resolveTargets(quietValidator(), filepath.Join(inDir, "january.csv"), false)
	require.NoError(t, err)

	a := newTestAnalyzer(t, outDir, "both")
	res := a.analyzeFile(context.Background(), targets[0])
	require.NoError(t, res.err)

	assert.Equal(t, 3, res.summary.RowsRead)
	assert.Equal(t, 2, res.summary.RowsKept)
	assert.Equal(t, "30", res.report.TotalRevenue.String())

	data, err := os.ReadFile(filepath.Join(outDir, "january_report.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"total_revenue": "30"`)

	for _, table := range []string{"summary.csv", "payment_split.csv", "top_services.csv"} {
		_, err := os.Stat(filepath.Join(outDir, "january", table))
		assert.NoError(t, err, table)
	}
}

func TestAnalyzeFileReportsNormalizeFailure(t *testing.T) {
	inDir := t.TempDir()
	writeExport(t, inDir, "broken.csv", "no usable header here\n")

	targets, err := resolveTargets(quietValidator(), filepath.Join(inDir, "broken.csv"), false)
	require.NoError(t, err)

	a := newTestAnalyzer(t, t.TempDir(), "json")
	res := a.analyzeFile(context.Background(), targets[0])
	assert.Error(t, res.err)
}

func TestRunKeepsInputOrder(t *testing.T) {
	inDir := t.TempDir()
	for _, name := range []string{"a.csv", "b.csv", "c.csv", "d.csv"} {
		writeExport(t, inDir, name, analyzeSampleExport)
	}

	targets, err := resolveTargets(quietValidator(), inDir, false)
	require.NoError(t, err)
	require.Len(t, targets, 4)

	a := newTestAnalyzer(t, t.TempDir(), "json")
	results := a.run(context.Background(), targets, 2)

	require.Len(t, results, 4)
	for i, res := range results {
		assert.Equal(t, targets[i].Name, res.file.Name)
		assert.NoError(t, res.err)
	}
}

func TestPrintRunSummary(t *testing.T) {
	results := []fileResult{
		{
			file:    files.FileInfo{Name: "january.csv"},
			summary: domain.ValidationSummary{RowsKept: 2, RowsDropped: 1},
			report:  &kpi.Report{TotalRevenue: decimal.NewFromInt(30)},
		},
		{
			file: files.FileInfo{Name: "broken.csv"},
			err:  errors.New("normalize: no header"),
		},
	}

	var buf bytes.Buffer
	failed := printRunSummary(&buf, results, 120*time.Millisecond)

	assert.Equal(t, 1, failed)
	out := buf.String()
	assert.Contains(t, out, "ok    january.csv")
	assert.Contains(t, out, "FAIL  broken.csv")
	assert.Contains(t, out, "1 analyzed, 1 failed, 2 rows kept, 1 dropped")
}
