package kpi

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillpulse/pkg/contracts/domain"
)

func testAggregator(topN int) *Aggregator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAggregator(logger, topN)
}

func tx(t *testing.T, ts, amount string, method domain.PaymentMethod, employee, service string) domain.Transaction {
	t.Helper()
	when, err := time.Parse("2006-01-02 15:04", ts)
	require.NoError(t, err)
	return domain.Transaction{
		Timestamp: when,
		Amount:    decimal.RequireFromString(amount),
		Payment:   method,
		Employee:  employee,
		Service:   service,
	}
}

func dataset(txs ...domain.Transaction) *domain.Dataset {
	return &domain.Dataset{
		Transactions: txs,
		Summary:      domain.ValidationSummary{RowsRead: len(txs), RowsKept: len(txs)},
	}
}

func TestCompute_BasicReport(t *testing.T) {
	agg := testAggregator(5)
	ds := dataset(
		tx(t, "2024-01-01 09:00", "10", domain.PaymentCard, "A", "wash"),
		tx(t, "2024-01-01 14:00", "20", domain.PaymentCash, "B", "cut"),
	)

	report := agg.Compute(context.Background(), ds, 0)

	assert.Equal(t, 2, report.Transactions)
	assert.Equal(t, "30", report.TotalRevenue.String())
	assert.Equal(t, "15", report.AverageBasket.String())
	assert.False(t, report.GeneratedAt.IsZero())

	require.Len(t, report.PaymentSplit, 2)
	cash := report.PaymentSplit[0]
	assert.Equal(t, domain.PaymentCash, cash.Method)
	assert.Equal(t, "20", cash.Revenue.String())
	assert.Equal(t, 1, cash.Transactions)
	assert.InDelta(t, 66.67, cash.RevenueShare, 0.001)
	assert.InDelta(t, 50.0, cash.CountShare, 0.001)
	card := report.PaymentSplit[1]
	assert.Equal(t, domain.PaymentCard, card.Method)
	assert.Equal(t, "10", card.Revenue.String())
	assert.InDelta(t, 33.33, card.RevenueShare, 0.001)

	assert.Equal(t, "10", report.RevenueByHour[9].Revenue.String())
	assert.Equal(t, 1, report.RevenueByHour[9].Transactions)
	assert.Equal(t, "20", report.RevenueByHour[14].Revenue.String())
	assert.True(t, report.RevenueByHour[0].Revenue.IsZero())
	assert.True(t, report.RevenueByHour[23].Revenue.IsZero())

	require.Len(t, report.RevenueByDay, 1)
	assert.Equal(t, "2024-01-01", report.RevenueByDay[0].Date)
	assert.Equal(t, "30", report.RevenueByDay[0].Revenue.String())
	assert.Equal(t, 2, report.RevenueByDay[0].Transactions)

	// 2024-01-01 is a Monday
	assert.Equal(t, "Monday", report.RevenueByWeekday[0].Weekday)
	assert.Equal(t, "30", report.RevenueByWeekday[0].Revenue.String())
	assert.True(t, report.RevenueByWeekday[6].Revenue.IsZero())

	require.Len(t, report.TopServices, 2)
	assert.Equal(t, "cut", report.TopServices[0].Service)
	assert.Equal(t, "20", report.TopServices[0].Revenue.String())
	assert.Equal(t, "wash", report.TopServices[1].Service)

	require.Len(t, report.Employees, 2)
	assert.Equal(t, "B", report.Employees[0].Employee)
	assert.Equal(t, "20", report.Employees[0].Revenue.String())
	assert.Equal(t, "20", report.Employees[0].AverageBasket.String())
	assert.Equal(t, "A", report.Employees[1].Employee)

	require.NotNil(t, report.Period)
	assert.Equal(t, 9, report.Period.First.Hour())
	assert.Equal(t, 14, report.Period.Last.Hour())
	assert.Equal(t, 1, report.Period.Days)
}

func TestCompute_EmptyDataset(t *testing.T) {
	tests := []struct {
		name string
		ds   *domain.Dataset
	}{
		{name: "empty dataset", ds: dataset()},
		{name: "nil dataset", ds: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := testAggregator(5).Compute(context.Background(), tt.ds, 0)

			require.NotNil(t, report)
			assert.Equal(t, 0, report.Transactions)
			assert.True(t, report.TotalRevenue.IsZero())
			assert.True(t, report.AverageBasket.IsZero())
			assert.Empty(t, report.PaymentSplit)
			assert.Empty(t, report.RevenueByDay)
			assert.Empty(t, report.TopServices)
			assert.Empty(t, report.Employees)
			assert.Nil(t, report.Period)

			for h, b := range report.RevenueByHour {
				assert.Equal(t, h, b.Hour)
				assert.True(t, b.Revenue.IsZero())
			}
			require.Len(t, report.RevenueByWeekday, 7)
			assert.Equal(t, "Monday", report.RevenueByWeekday[0].Weekday)
			assert.Equal(t, "Sunday", report.RevenueByWeekday[6].Weekday)
		})
	}
}

func TestCompute_PartitionSums(t *testing.T) {
	agg := testAggregator(5)
	ds := dataset(
		tx(t, "2024-03-04 09:15", "19.99", domain.PaymentCard, "alice", "cut"),
		tx(t, "2024-03-04 09:45", "0.01", domain.PaymentCash, "bob", "wash"),
		tx(t, "2024-03-05 11:00", "35.50", domain.PaymentCard, "alice", "color"),
		tx(t, "2024-03-05 11:30", "12.30", domain.PaymentCheck, "carol", "cut"),
		tx(t, "2024-03-06 16:05", "7.77", domain.PaymentCash, "bob", "beard"),
		tx(t, "2024-03-09 18:20", "120.00", domain.PaymentTransfer, "alice", "color"),
		tx(t, "2024-03-09 18:40", "0.00", domain.PaymentUnknown, "", ""),
	)

	report := agg.Compute(context.Background(), ds, 10)
	total := report.TotalRevenue

	sum := decimal.Zero
	for _, p := range report.PaymentSplit {
		sum = sum.Add(p.Revenue)
	}
	assert.True(t, sum.Equal(total), "payment split sums to %s, want %s", sum, total)

	sum = decimal.Zero
	for _, e := range report.Employees {
		sum = sum.Add(e.Revenue)
	}
	assert.True(t, sum.Equal(total), "employee split sums to %s, want %s", sum, total)

	sum = decimal.Zero
	for _, b := range report.RevenueByHour {
		sum = sum.Add(b.Revenue)
	}
	assert.True(t, sum.Equal(total), "hour buckets sum to %s, want %s", sum, total)

	sum = decimal.Zero
	for _, d := range report.RevenueByDay {
		sum = sum.Add(d.Revenue)
	}
	assert.True(t, sum.Equal(total), "day rows sum to %s, want %s", sum, total)

	sum = decimal.Zero
	for _, w := range report.RevenueByWeekday {
		sum = sum.Add(w.Revenue)
	}
	assert.True(t, sum.Equal(total), "weekday rows sum to %s, want %s", sum, total)
}

func TestCompute_AverageBasketRounding(t *testing.T) {
	agg := testAggregator(5)
	ds := dataset(
		tx(t, "2024-01-01 09:00", "10", domain.PaymentCard, "A", "wash"),
		tx(t, "2024-01-01 10:00", "10", domain.PaymentCard, "A", "wash"),
		tx(t, "2024-01-01 11:00", "0.05", domain.PaymentCash, "B", "cut"),
	)

	report := agg.Compute(context.Background(), ds, 0)

	assert.Equal(t, "6.68", report.AverageBasket.String())

	// basket x count reproduces the total within 2-decimal rounding
	diff := report.AverageBasket.Mul(decimal.NewFromInt(3)).Sub(report.TotalRevenue).Abs()
	assert.True(t, diff.LessThanOrEqual(decimal.NewFromFloat(0.015)), "diff %s", diff)
}

func TestCompute_TopServices(t *testing.T) {
	ds := dataset(
		tx(t, "2024-01-01 09:00", "50", domain.PaymentCard, "A", "color"),
		tx(t, "2024-01-01 10:00", "30", domain.PaymentCard, "A", "wash"),
		tx(t, "2024-01-01 11:00", "30", domain.PaymentCash, "B", "cut"),
		tx(t, "2024-01-01 12:00", "10", domain.PaymentCash, "B", "brush"),
		tx(t, "2024-01-01 13:00", "10", domain.PaymentCard, "A", "beard"),
		tx(t, "2024-01-01 14:00", "5", domain.PaymentCash, "B", ""),
	)

	tests := []struct {
		name         string
		defaultTopN  int
		topN         int
		wantServices []string
	}{
		{
			name:         "explicit n truncates",
			defaultTopN:  5,
			topN:         3,
			wantServices: []string{"color", "cut", "wash"},
		},
		{
			name:         "zero n falls back to configured default",
			defaultTopN:  2,
			topN:         0,
			wantServices: []string{"color", "cut"},
		},
		{
			name:         "n larger than distinct services",
			defaultTopN:  5,
			topN:         50,
			wantServices: []string{"color", "cut", "wash", "beard", "brush"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := testAggregator(tt.defaultTopN).Compute(context.Background(), ds, tt.topN)

			require.Len(t, report.TopServices, len(tt.wantServices))
			for i, want := range tt.wantServices {
				assert.Equal(t, want, report.TopServices[i].Service)
			}

			// the unlabeled row never ranks but still counts
			assert.Equal(t, "135", report.TotalRevenue.String())
		})
	}
}

func TestCompute_TopServiceTiesBreakByLabel(t *testing.T) {
	agg := testAggregator(5)
	ds := dataset(
		tx(t, "2024-01-01 09:00", "30", domain.PaymentCard, "A", "wash"),
		tx(t, "2024-01-01 10:00", "30", domain.PaymentCard, "A", "cut"),
		tx(t, "2024-01-01 11:00", "30", domain.PaymentCard, "A", "beard"),
	)

	report := agg.Compute(context.Background(), ds, 0)

	require.Len(t, report.TopServices, 3)
	assert.Equal(t, "beard", report.TopServices[0].Service)
	assert.Equal(t, "cut", report.TopServices[1].Service)
	assert.Equal(t, "wash", report.TopServices[2].Service)
}

func TestCompute_ZeroRevenueShares(t *testing.T) {
	agg := testAggregator(5)
	ds := dataset(
		tx(t, "2024-01-01 09:00", "0", domain.PaymentCard, "A", "wash"),
		tx(t, "2024-01-01 10:00", "0.00", domain.PaymentCash, "B", "cut"),
	)

	report := agg.Compute(context.Background(), ds, 0)

	assert.Equal(t, 2, report.Transactions)
	assert.True(t, report.TotalRevenue.IsZero())
	assert.True(t, report.AverageBasket.IsZero())
	require.Len(t, report.PaymentSplit, 2)
	for _, p := range report.PaymentSplit {
		assert.Zero(t, p.RevenueShare)
		assert.InDelta(t, 50.0, p.CountShare, 0.001)
	}
}

func TestCompute_UnattributedEmployeeKept(t *testing.T) {
	agg := testAggregator(5)
	ds := dataset(
		tx(t, "2024-01-01 09:00", "40", domain.PaymentCard, "alice", "cut"),
		tx(t, "2024-01-01 10:00", "15", domain.PaymentCash, "", "wash"),
	)

	report := agg.Compute(context.Background(), ds, 0)

	require.Len(t, report.Employees, 2)
	assert.Equal(t, "alice", report.Employees[0].Employee)
	assert.Equal(t, "", report.Employees[1].Employee)
	assert.Equal(t, "15", report.Employees[1].Revenue.String())
}

func TestCompute_DaysSortedChronologically(t *testing.T) {
	agg := testAggregator(5)
	ds := dataset(
		tx(t, "2024-02-10 09:00", "5", domain.PaymentCard, "A", "wash"),
		tx(t, "2024-01-03 09:00", "5", domain.PaymentCard, "A", "wash"),
		tx(t, "2024-01-20 09:00", "5", domain.PaymentCard, "A", "wash"),
	)

	report := agg.Compute(context.Background(), ds, 0)

	require.Len(t, report.RevenueByDay, 3)
	assert.Equal(t, "2024-01-03", report.RevenueByDay[0].Date)
	assert.Equal(t, "2024-01-20", report.RevenueByDay[1].Date)
	assert.Equal(t, "2024-02-10", report.RevenueByDay[2].Date)

	require.NotNil(t, report.Period)
	assert.Equal(t, 3, report.Period.Days)
	assert.Equal(t, "2024-01-03", report.Period.First.Format("2006-01-02"))
	assert.Equal(t, "2024-02-10", report.Period.Last.Format("2006-01-02"))
}

func TestCompute_WeekdayOrdering(t *testing.T) {
	agg := testAggregator(5)
	// 2024-01-01 is a Monday, 2024-01-07 a Sunday
	ds := dataset(
		tx(t, "2024-01-01 09:00", "10", domain.PaymentCard, "A", "wash"),
		tx(t, "2024-01-07 09:00", "20", domain.PaymentCash, "B", "cut"),
	)

	report := agg.Compute(context.Background(), ds, 0)

	want := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
	require.Len(t, report.RevenueByWeekday, len(want))
	for i, name := range want {
		assert.Equal(t, name, report.RevenueByWeekday[i].Weekday)
	}
	assert.Equal(t, "10", report.RevenueByWeekday[0].Revenue.String())
	assert.Equal(t, "20", report.RevenueByWeekday[6].Revenue.String())
}

func TestCompute_Deterministic(t *testing.T) {
	agg := testAggregator(5)
	ds := dataset(
		tx(t, "2024-01-01 09:00", "12.34", domain.PaymentCard, "A", "wash"),
		tx(t, "2024-01-02 10:00", "56.78", domain.PaymentCash, "B", "cut"),
		tx(t, "2024-01-03 11:00", "9.99", domain.PaymentCheck, "C", "color"),
	)

	first := agg.Compute(context.Background(), ds, 0)
	second := agg.Compute(context.Background(), ds, 0)

	assert.Equal(t, first.PaymentSplit, second.PaymentSplit)
	assert.Equal(t, first.RevenueByDay, second.RevenueByDay)
	assert.Equal(t, first.TopServices, second.TopServices)
	assert.Equal(t, first.Employees, second.Employees)
}
