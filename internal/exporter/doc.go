// Package exporter provides CSV and JSON export functionality for TillPulse.
//
// This package contains three main components:
//
// CSVWriter: Core CSV writing with headers, streaming and an optional UTF-8
// BOM prefix so Excel opens the files correctly.
//
// ReportExporter: Renders a computed report as a single JSON document or as
// a set of per-table CSV files (summary, payment split, hourly and daily
// revenue, service ranking, employee performance).
//
// TransactionExporter: Writes the normalized transaction table, either to a
// file or straight into an HTTP response.
//
// Example usage:
//
//	reports := exporter.NewReportExporter(logger)
//	err := reports.WriteJSON(ctx, "out/report.json", report, insights, ds.Summary)
//
//	transactions := exporter.NewTransactionExporter()
//	err = transactions.ExportFile("out/transactions.csv", ds.Transactions)
package exporter
