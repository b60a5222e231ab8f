package kpi

import (
	"time"

	"github.com/shopspring/decimal"

	"tillpulse/pkg/contracts/domain"
)

// Report is the full indicator set computed over a normalized transaction
// table. It is derived, read-only data: recompute it whenever the table or
// the active filter changes. All revenue figures are exact decimal sums of
// the source amounts, so the split tables partition TotalRevenue without
// floating-point drift.
type Report struct {
	Period           *Period          `json:"period,omitempty"`
	TotalRevenue     decimal.Decimal  `json:"total_revenue"`
	Transactions     int              `json:"transactions"`
	AverageBasket    decimal.Decimal  `json:"average_basket"`
	PaymentSplit     []PaymentSlice   `json:"payment_split"`
	RevenueByHour    [24]HourBucket   `json:"revenue_by_hour"`
	RevenueByDay     []DayRevenue     `json:"revenue_by_day"`
	RevenueByWeekday []WeekdayRevenue `json:"revenue_by_weekday"`
	TopServices      []ServiceRevenue `json:"top_services"`
	Employees        []EmployeeStats  `json:"employees"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

// Period describes the span of sales a report covers
type Period struct {
	First time.Time `json:"first"`
	Last  time.Time `json:"last"`
	Days  int       `json:"days"`
}

// PaymentSlice is the revenue and volume of one payment method. Shares are
// percentages of the report totals, rounded to two places.
type PaymentSlice struct {
	Method       domain.PaymentMethod `json:"method"`
	Revenue      decimal.Decimal      `json:"revenue"`
	Transactions int                  `json:"transactions"`
	RevenueShare float64              `json:"revenue_share"`
	CountShare   float64              `json:"count_share"`
}

// HourBucket is the revenue of one hour of day. Reports always carry all 24
// buckets so charts can plot the full axis.
type HourBucket struct {
	Hour         int             `json:"hour"`
	Revenue      decimal.Decimal `json:"revenue"`
	Transactions int             `json:"transactions"`
}

// DayRevenue is the revenue of one calendar date (2006-01-02)
type DayRevenue struct {
	Date         string          `json:"date"`
	Revenue      decimal.Decimal `json:"revenue"`
	Transactions int             `json:"transactions"`
}

// WeekdayRevenue is the revenue of one weekday. Reports carry all seven in
// Monday through Sunday order.
type WeekdayRevenue struct {
	Weekday      string          `json:"weekday"`
	Revenue      decimal.Decimal `json:"revenue"`
	Transactions int             `json:"transactions"`
}

// ServiceRevenue is the summed revenue of one service label
type ServiceRevenue struct {
	Service      string          `json:"service"`
	Revenue      decimal.Decimal `json:"revenue"`
	Transactions int             `json:"transactions"`
}

// EmployeeStats is the performance of one employee
type EmployeeStats struct {
	Employee      string          `json:"employee"`
	Revenue       decimal.Decimal `json:"revenue"`
	Transactions  int             `json:"transactions"`
	AverageBasket decimal.Decimal `json:"average_basket"`
}
