package kpi

import (
	"fmt"
	"sort"
	"strings"

	"tillpulse/pkg/contracts/domain"
)

// maxInsightHours caps the peak and quiet hour lists
const maxInsightHours = 3

// noDataMessage is the single insight shown when a filter selects nothing
const noDataMessage = "No data for the selected filters."

// Insights are the automatic reading of a report: the strongest and
// quietest hours, the card versus cash revenue mix, and the leading service
// and employee, with ready-to-display summary lines.
type Insights struct {
	PeakHours   []HourBucket    `json:"peak_hours,omitempty"`
	QuietHours  []HourBucket    `json:"quiet_hours,omitempty"`
	CardShare   float64         `json:"card_share"`
	CashShare   float64         `json:"cash_share"`
	TopService  *ServiceRevenue `json:"top_service,omitempty"`
	TopEmployee *EmployeeStats  `json:"top_employee,omitempty"`
	Messages    []string        `json:"messages"`
}

// BuildInsights derives the automatic reading of a report. Like Compute it
// is pure and never fails; an empty report produces the no-data message.
func BuildInsights(r *Report) *Insights {
	if r == nil || r.Transactions == 0 {
		return &Insights{Messages: []string{noDataMessage}}
	}

	in := &Insights{Messages: []string{}}

	// Hours with no sales carry nothing an operator can act on, so the
	// rankings only consider hours that actually traded.
	active := make([]HourBucket, 0, len(r.RevenueByHour))
	for _, b := range r.RevenueByHour {
		if b.Transactions > 0 {
			active = append(active, b)
		}
	}
	in.PeakHours = rankHours(active, func(a, b HourBucket) bool {
		return a.Revenue.GreaterThan(b.Revenue)
	})
	in.QuietHours = rankHours(active, func(a, b HourBucket) bool {
		return a.Revenue.LessThan(b.Revenue)
	})
	if len(in.PeakHours) > 0 {
		in.Messages = append(in.Messages, fmt.Sprintf("Peak hours: %s", formatHours(in.PeakHours)))
	}
	if len(in.QuietHours) > 0 {
		in.Messages = append(in.Messages, fmt.Sprintf("Quiet hours: %s", formatHours(in.QuietHours)))
	}

	for _, p := range r.PaymentSplit {
		switch p.Method {
		case domain.PaymentCard:
			in.CardShare = p.RevenueShare
		case domain.PaymentCash:
			in.CashShare = p.RevenueShare
		}
	}
	if in.CardShare > 0 || in.CashShare > 0 {
		in.Messages = append(in.Messages,
			fmt.Sprintf("Revenue mix: card %.1f%%, cash %.1f%%", in.CardShare, in.CashShare))
	}

	if len(r.TopServices) > 0 {
		top := r.TopServices[0]
		in.TopService = &top
		in.Messages = append(in.Messages,
			fmt.Sprintf("Top service: %s (%s)", top.Service, top.Revenue.StringFixed(2)))
	}

	for _, e := range r.Employees {
		if e.Employee == "" {
			continue
		}
		top := e
		in.TopEmployee = &top
		in.Messages = append(in.Messages,
			fmt.Sprintf("Top employee by revenue: %s (%s)", top.Employee, top.Revenue.StringFixed(2)))
		break
	}

	in.Messages = append(in.Messages,
		"Suggestion: staff up for the peak hours and run promotions in the quiet hours.")

	return in
}

// rankHours returns up to maxInsightHours buckets under the given ordering,
// earlier hours first on revenue ties.
func rankHours(active []HourBucket, before func(a, b HourBucket) bool) []HourBucket {
	ranked := make([]HourBucket, len(active))
	copy(ranked, active)
	sort.Slice(ranked, func(i, j int) bool {
		if !ranked[i].Revenue.Equal(ranked[j].Revenue) {
			return before(ranked[i], ranked[j])
		}
		return ranked[i].Hour < ranked[j].Hour
	})
	if len(ranked) > maxInsightHours {
		ranked = ranked[:maxInsightHours]
	}
	return ranked
}

func formatHours(buckets []HourBucket) string {
	parts := make([]string, len(buckets))
	for i, b := range buckets {
		parts[i] = fmt.Sprintf("%02d:00", b.Hour)
	}
	return strings.Join(parts, ", ")
}
