package exporter

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// formatDecimal formats a currency amount with exactly 2 decimal places.
// This ensures values like 13.4 appear as 13.40 in CSV.
func formatDecimal(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// formatPercent formats a share percentage with 2 decimal places
func formatPercent(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

// formatInt formats an int value for CSV output
func formatInt(i int) string {
	return strconv.Itoa(i)
}
