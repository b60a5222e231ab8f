// Package normalizer turns raw register exports into typed transaction
// tables. It handles the complete ingestion path from bytes to a clean
// domain.Dataset ready for KPI computation.
//
// # Architecture
//
// The package is organized into three parts:
//
// 1. Reader: decodes CSV (with delimiter sniffing) and XLSX workbooks
// 2. Schema: locates the header row and maps logical fields to columns
// 3. Normalizer: converts rows, dropping the unusable ones with a reason
//
// # Data Flow
//
// The typical flow through this package:
//
//	Upload bytes → Reader → raw rows → Schema → Normalizer → domain.Dataset
//
// # Error Handling
//
// A file that cannot be decoded at all, or whose header cannot be resolved,
// fails with a single input-format error. Individual rows never fail the
// whole file: each bad row is counted in the ValidationSummary under its
// drop reason and processing continues.
package normalizer
