// Package kpi computes the dashboard indicators of TillPulse: revenue
// totals, payment splits, time-of-day and calendar breakdowns, service
// rankings and employee performance. Computation is a single pass over a
// normalized table with no hidden state; the same table and options always
// produce the same report.
package kpi

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"tillpulse/pkg/contracts/domain"
)

// defaultTopN bounds the service ranking when no length is configured
const defaultTopN = 5

var hundred = decimal.NewFromInt(100)

// Aggregator computes Reports from normalized transaction tables
type Aggregator struct {
	logger *slog.Logger
	topN   int
}

// NewAggregator creates an aggregator. topN is the default length of the
// service ranking; individual requests may override it.
func NewAggregator(logger *slog.Logger, topN int) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	if topN <= 0 {
		topN = defaultTopN
	}
	return &Aggregator{logger: logger, topN: topN}
}

// bucket accumulates one group of a split table
type bucket struct {
	revenue      decimal.Decimal
	transactions int
}

func accumulate(groups map[string]*bucket, key string, amount decimal.Decimal) {
	b, ok := groups[key]
	if !ok {
		b = &bucket{revenue: decimal.Zero}
		groups[key] = b
	}
	b.revenue = b.revenue.Add(amount)
	b.transactions++
}

// Compute builds the full report for a dataset. It never fails: a nil or
// empty dataset yields a zero-valued report, and the divide-by-zero cases
// (average basket, shares) default to zero. topN overrides the configured
// service ranking length when positive.
func (a *Aggregator) Compute(ctx context.Context, ds *domain.Dataset, topN int) *Report {
	if topN <= 0 {
		topN = a.topN
	}

	report := newZeroReport()
	if ds.Empty() {
		return report
	}

	payments := make(map[string]*bucket)
	days := make(map[string]*bucket)
	services := make(map[string]*bucket)
	employees := make(map[string]*bucket)

	total := decimal.Zero
	var first, last time.Time

	for i := range ds.Transactions {
		tx := &ds.Transactions[i]

		total = total.Add(tx.Amount)
		accumulate(payments, string(tx.Payment), tx.Amount)
		accumulate(days, tx.Day(), tx.Amount)
		accumulate(services, tx.Service, tx.Amount)
		accumulate(employees, tx.Employee, tx.Amount)

		h := tx.Hour()
		report.RevenueByHour[h].Revenue = report.RevenueByHour[h].Revenue.Add(tx.Amount)
		report.RevenueByHour[h].Transactions++

		w := mondayIndex(tx.Weekday())
		report.RevenueByWeekday[w].Revenue = report.RevenueByWeekday[w].Revenue.Add(tx.Amount)
		report.RevenueByWeekday[w].Transactions++

		if first.IsZero() || tx.Timestamp.Before(first) {
			first = tx.Timestamp
		}
		if tx.Timestamp.After(last) {
			last = tx.Timestamp
		}
	}

	count := len(ds.Transactions)
	report.TotalRevenue = total
	report.Transactions = count
	report.AverageBasket = total.DivRound(decimal.NewFromInt(int64(count)), 2)
	report.Period = &Period{First: first, Last: last, Days: len(days)}
	report.PaymentSplit = paymentSplit(payments, total, count)
	report.RevenueByDay = revenueByDay(days)
	report.TopServices = topServices(services, topN)
	report.Employees = employeeStats(employees)

	a.logger.DebugContext(ctx, "report computed",
		slog.Int("transactions", count),
		slog.String("total_revenue", total.String()),
		slog.Int("days", len(days)),
		slog.Int("top_n", topN))

	return report
}

// newZeroReport returns a report with every table present and zero-valued,
// so empty datasets render as flat charts rather than missing data.
func newZeroReport() *Report {
	r := &Report{
		TotalRevenue:     decimal.Zero,
		AverageBasket:    decimal.Zero,
		PaymentSplit:     []PaymentSlice{},
		RevenueByDay:     []DayRevenue{},
		RevenueByWeekday: make([]WeekdayRevenue, 7),
		TopServices:      []ServiceRevenue{},
		Employees:        []EmployeeStats{},
		GeneratedAt:      time.Now().UTC(),
	}
	for h := range r.RevenueByHour {
		r.RevenueByHour[h] = HourBucket{Hour: h, Revenue: decimal.Zero}
	}
	for i := range r.RevenueByWeekday {
		// time.Monday is 1; the dashboard week runs Monday through Sunday
		r.RevenueByWeekday[i] = WeekdayRevenue{
			Weekday: time.Weekday((i + 1) % 7).String(),
			Revenue: decimal.Zero,
		}
	}
	return r
}

// mondayIndex maps a weekday to its position in a Monday-first week
func mondayIndex(w time.Weekday) int {
	return (int(w) + 6) % 7
}

// percentOf returns part over total as a percentage rounded to two places,
// zero when the total is zero.
func percentOf(part, total decimal.Decimal) float64 {
	if total.IsZero() {
		return 0
	}
	share, _ := part.Mul(hundred).Div(total).Round(2).Float64()
	return share
}

func paymentSplit(groups map[string]*bucket, total decimal.Decimal, count int) []PaymentSlice {
	split := make([]PaymentSlice, 0, len(groups))
	for method, b := range groups {
		split = append(split, PaymentSlice{
			Method:       domain.PaymentMethod(method),
			Revenue:      b.revenue,
			Transactions: b.transactions,
			RevenueShare: percentOf(b.revenue, total),
			CountShare:   percentOf(decimal.NewFromInt(int64(b.transactions)), decimal.NewFromInt(int64(count))),
		})
	}
	sort.Slice(split, func(i, j int) bool {
		if !split[i].Revenue.Equal(split[j].Revenue) {
			return split[i].Revenue.GreaterThan(split[j].Revenue)
		}
		return split[i].Method < split[j].Method
	})
	return split
}

func revenueByDay(groups map[string]*bucket) []DayRevenue {
	dates := make([]string, 0, len(groups))
	for date := range groups {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	days := make([]DayRevenue, 0, len(dates))
	for _, date := range dates {
		b := groups[date]
		days = append(days, DayRevenue{Date: date, Revenue: b.revenue, Transactions: b.transactions})
	}
	return days
}

// topServices ranks service labels by revenue, ties broken by label.
// Rows with no service label count toward the report totals but are not
// ranked, matching how the register export treats unlabeled lines.
func topServices(groups map[string]*bucket, n int) []ServiceRevenue {
	ranked := make([]ServiceRevenue, 0, len(groups))
	for service, b := range groups {
		if service == "" {
			continue
		}
		ranked = append(ranked, ServiceRevenue{
			Service:      service,
			Revenue:      b.revenue,
			Transactions: b.transactions,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if !ranked[i].Revenue.Equal(ranked[j].Revenue) {
			return ranked[i].Revenue.GreaterThan(ranked[j].Revenue)
		}
		return ranked[i].Service < ranked[j].Service
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// employeeStats ranks employees by revenue. Unattributed rows keep their
// empty identifier so the split still sums to the report total.
func employeeStats(groups map[string]*bucket) []EmployeeStats {
	stats := make([]EmployeeStats, 0, len(groups))
	for employee, b := range groups {
		stats = append(stats, EmployeeStats{
			Employee:      employee,
			Revenue:       b.revenue,
			Transactions:  b.transactions,
			AverageBasket: b.revenue.DivRound(decimal.NewFromInt(int64(b.transactions)), 2),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if !stats[i].Revenue.Equal(stats[j].Revenue) {
			return stats[i].Revenue.GreaterThan(stats[j].Revenue)
		}
		return stats[i].Employee < stats[j].Employee
	})
	return stats
}
