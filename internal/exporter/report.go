package exporter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"tillpulse/internal/errors"
	"tillpulse/internal/kpi"
	"tillpulse/pkg/contracts/domain"
)

// reportFormatVersion tags exported JSON documents so downstream tooling
// can detect layout changes
const reportFormatVersion = "tillpulse_report_v1"

// ReportDocument assembles the exported report document. The same shape is
// written to disk by WriteJSON and served by the export endpoint.
func ReportDocument(report *kpi.Report, insights *kpi.Insights, summary domain.ValidationSummary) map[string]interface{} {
	return map[string]interface{}{
		"format":       reportFormatVersion,
		"generated_at": time.Now().UTC().Format(time.RFC3339),
		"validation":   summary,
		"report":       report,
		"insights":     insights,
	}
}

// ReportExporter renders computed reports as JSON documents and CSV tables
type ReportExporter struct {
	logger    *slog.Logger
	csvWriter *CSVWriter
}

// NewReportExporter creates a new report exporter
func NewReportExporter(logger *slog.Logger) *ReportExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportExporter{
		logger:    logger,
		csvWriter: NewCSVWriter(),
	}
}

// WriteJSON writes the report, its insights and the validation summary to a
// single JSON document
func (e *ReportExporter) WriteJSON(ctx context.Context, path string, report *kpi.Report, insights *kpi.Insights, summary domain.ValidationSummary) error {
	e.logger.InfoContext(ctx, "writing report JSON",
		slog.String("path", path),
		slog.Int("transactions", report.Transactions))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewStorageError("failed to create directory for JSON output", err)
	}

	doc := ReportDocument(report, insights, summary)

	file, err := os.Create(path)
	if err != nil {
		return errors.NewStorageError("failed to create JSON report file", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return errors.NewStorageError("failed to encode report to JSON", err)
	}

	return nil
}

// WriteCSV writes the report tables as CSV files under dir: summary.csv,
// payment_split.csv, revenue_by_hour.csv, revenue_by_day.csv,
// revenue_by_weekday.csv, top_services.csv and employees.csv.
func (e *ReportExporter) WriteCSV(ctx context.Context, dir string, report *kpi.Report) error {
	e.logger.InfoContext(ctx, "writing report CSV tables",
		slog.String("dir", dir),
		slog.Int("transactions", report.Transactions))

	tables := []struct {
		filename string
		headers  []string
		records  [][]string
	}{
		{"summary.csv", []string{"Metric", "Value"}, e.summaryRows(report)},
		{"payment_split.csv", []string{"Method", "Revenue", "Transactions", "RevenueShare", "CountShare"}, e.paymentRows(report)},
		{"revenue_by_hour.csv", []string{"Hour", "Revenue", "Transactions"}, e.hourRows(report)},
		{"revenue_by_day.csv", []string{"Date", "Revenue", "Transactions"}, e.dayRows(report)},
		{"revenue_by_weekday.csv", []string{"Weekday", "Revenue", "Transactions"}, e.weekdayRows(report)},
		{"top_services.csv", []string{"Service", "Revenue", "Transactions"}, e.serviceRows(report)},
		{"employees.csv", []string{"Employee", "Revenue", "Transactions", "AverageBasket"}, e.employeeRows(report)},
	}

	for _, table := range tables {
		path := filepath.Join(dir, table.filename)
		if err := e.csvWriter.WriteSimpleCSV(path, table.headers, table.records); err != nil {
			return fmt.Errorf("failed to write %s: %w", table.filename, err)
		}
	}

	return nil
}

func (e *ReportExporter) summaryRows(report *kpi.Report) [][]string {
	rows := [][]string{
		{"TotalRevenue", formatDecimal(report.TotalRevenue)},
		{"Transactions", formatInt(report.Transactions)},
		{"AverageBasket", formatDecimal(report.AverageBasket)},
	}
	if report.Period != nil {
		rows = append(rows,
			[]string{"FirstSale", report.Period.First.Format("2006-01-02 15:04:05")},
			[]string{"LastSale", report.Period.Last.Format("2006-01-02 15:04:05")},
			[]string{"ActiveDays", formatInt(report.Period.Days)},
		)
	}
	return rows
}

func (e *ReportExporter) paymentRows(report *kpi.Report) [][]string {
	rows := make([][]string, 0, len(report.PaymentSplit))
	for _, p := range report.PaymentSplit {
		rows = append(rows, []string{
			string(p.Method),
			formatDecimal(p.Revenue),
			formatInt(p.Transactions),
			formatPercent(p.RevenueShare),
			formatPercent(p.CountShare),
		})
	}
	return rows
}

func (e *ReportExporter) hourRows(report *kpi.Report) [][]string {
	rows := make([][]string, 0, len(report.RevenueByHour))
	for _, b := range report.RevenueByHour {
		rows = append(rows, []string{
			formatInt(b.Hour),
			formatDecimal(b.Revenue),
			formatInt(b.Transactions),
		})
	}
	return rows
}

func (e *ReportExporter) dayRows(report *kpi.Report) [][]string {
	rows := make([][]string, 0, len(report.RevenueByDay))
	for _, d := range report.RevenueByDay {
		rows = append(rows, []string{
			d.Date,
			formatDecimal(d.Revenue),
			formatInt(d.Transactions),
		})
	}
	return rows
}

func (e *ReportExporter) weekdayRows(report *kpi.Report) [][]string {
	rows := make([][]string, 0, len(report.RevenueByWeekday))
	for _, w := range report.RevenueByWeekday {
		rows = append(rows, []string{
			w.Weekday,
			formatDecimal(w.Revenue),
			formatInt(w.Transactions),
		})
	}
	return rows
}

func (e *ReportExporter) serviceRows(report *kpi.Report) [][]string {
	rows := make([][]string, 0, len(report.TopServices))
	for _, s := range report.TopServices {
		rows = append(rows, []string{
			s.Service,
			formatDecimal(s.Revenue),
			formatInt(s.Transactions),
		})
	}
	return rows
}

func (e *ReportExporter) employeeRows(report *kpi.Report) [][]string {
	rows := make([][]string, 0, len(report.Employees))
	for _, emp := range report.Employees {
		rows = append(rows, []string{
			emp.Employee,
			formatDecimal(emp.Revenue),
			formatInt(emp.Transactions),
			formatDecimal(emp.AverageBasket),
		})
	}
	return rows
}
