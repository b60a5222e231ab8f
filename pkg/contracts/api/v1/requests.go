// Package api contains API contract definitions for TillPulse.
// Version v1 represents the current stable API version.
package api

import (
	"tillpulse/pkg/contracts/domain"
)

// ReportQuery carries the filter and shaping parameters of a report request.
// All fields are optional; the zero query reports over the whole session.
type ReportQuery struct {
	Filter domain.Filter `json:"filter"`
	TopN   int           `json:"top,omitempty" validate:"omitempty,min=1,max=100"`
}

// TransactionsQuery selects a preview page of the normalized table
type TransactionsQuery struct {
	Filter domain.Filter `json:"filter"`
	Limit  int           `json:"limit,omitempty" validate:"omitempty,min=1,max=500"`
	Offset int           `json:"offset,omitempty" validate:"omitempty,min=0"`
}

// ExportQuery selects the download format for a session export
type ExportQuery struct {
	Filter domain.Filter `json:"filter"`
	Format string        `json:"format" validate:"oneof=csv json"`
}
