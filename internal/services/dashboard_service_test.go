package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillpulse/internal/config"
	"tillpulse/internal/errors"
	"tillpulse/internal/kpi"
	"tillpulse/internal/normalizer"
	api "tillpulse/pkg/contracts/api/v1"
	"tillpulse/pkg/contracts/domain"
)

const sampleExport = `timestamp,amount,payment,employee,service
2024-01-01 09:00,10,card,A,wash
2024-01-01 09:00,10,card,A,wash
2024-01-01 14:00,20,cash,B,cut
`

func testDashboardService(t *testing.T, mutate func(*config.Config)) *DashboardService {
	t.Helper()

	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	norm := normalizer.New(cfg.Schema, logger)
	agg := kpi.NewAggregator(logger, cfg.Analytics.TopN)
	return NewDashboardService(cfg, logger, norm, agg, nil)
}

func uploadExport(t *testing.T, svc *DashboardService, name, content string) *SessionInfo {
	t.Helper()

	info, err := svc.CreateSession(context.Background(), strings.NewReader(content), name, int64(len(content)))
	require.NoError(t, err)
	return info
}

func TestCreateSession(t *testing.T) {
	svc := testDashboardService(t, nil)

	info := uploadExport(t, svc, "export.csv", sampleExport)

	_, err := uuid.Parse(info.ID)
	assert.NoError(t, err)
	assert.Equal(t, "export.csv", info.Filename)
	assert.Equal(t, 2, info.Rows)
	assert.Equal(t, 3, info.Validation.RowsRead)
	assert.Equal(t, 2, info.Validation.RowsKept)
	assert.Equal(t, 1, info.Validation.Dropped(domain.DropDuplicate))
	assert.False(t, info.CreatedAt.IsZero())
	assert.Equal(t, 1, svc.SessionCount())
}

func TestCreateSession_StripsUploadPath(t *testing.T) {
	svc := testDashboardService(t, nil)

	info := uploadExport(t, svc, "exports/january/export.csv", sampleExport)

	assert.Equal(t, "export.csv", info.Filename)
}

func TestCreateSession_RejectsUnreadableUpload(t *testing.T) {
	svc := testDashboardService(t, nil)

	_, err := svc.CreateSession(context.Background(), strings.NewReader("no usable header here"), "broken.csv", 21)

	require.Error(t, err)
	assert.Equal(t, 0, svc.SessionCount())
}

func TestCreateSession_SessionLimit(t *testing.T) {
	svc := testDashboardService(t, func(cfg *config.Config) {
		cfg.Analytics.MaxSessions = 1
	})

	uploadExport(t, svc, "first.csv", sampleExport)

	_, err := svc.CreateSession(context.Background(), strings.NewReader(sampleExport), "second.csv", int64(len(sampleExport)))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrSessionLimit)
	assert.Equal(t, 1, svc.SessionCount())
}

func TestSession_NotFound(t *testing.T) {
	svc := testDashboardService(t, nil)

	_, err := svc.Session(context.Background(), "00000000-0000-0000-0000-000000000000")

	require.Error(t, err)
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
}

func TestReport(t *testing.T) {
	svc := testDashboardService(t, nil)
	info := uploadExport(t, svc, "export.csv", sampleExport)

	result, err := svc.Report(context.Background(), info.ID, api.ReportQuery{})
	require.NoError(t, err)

	assert.Equal(t, info.ID, result.SessionID)
	require.NotNil(t, result.Report)
	require.NotNil(t, result.Insights)
	assert.Equal(t, 2, result.Report.Transactions)
	assert.True(t, result.Report.TotalRevenue.Equal(decimal.NewFromInt(30)))
	assert.True(t, result.Report.AverageBasket.Equal(decimal.NewFromInt(15)))
}

func TestReport_FilterApplied(t *testing.T) {
	svc := testDashboardService(t, nil)
	info := uploadExport(t, svc, "export.csv", sampleExport)

	query := api.ReportQuery{Filter: domain.Filter{Payments: []domain.PaymentMethod{domain.PaymentCash}}}
	result, err := svc.Report(context.Background(), info.ID, query)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Report.Transactions)
	assert.True(t, result.Report.TotalRevenue.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, query.Filter, result.Filter)
}

func TestLiveReport(t *testing.T) {
	svc := testDashboardService(t, nil)
	info := uploadExport(t, svc, "export.csv", sampleExport)

	result, err := svc.LiveReport(context.Background(), info.ID, api.ReportQuery{TopN: 1})
	require.NoError(t, err)

	require.Len(t, result.Report.TopServices, 1)
	assert.Equal(t, "cut", result.Report.TopServices[0].Service)
}

func TestTransactions_Paging(t *testing.T) {
	rows := []string{"timestamp,amount,payment,employee,service"}
	for i := 0; i < 10; i++ {
		rows = append(rows, fmt.Sprintf("2024-01-01 09:%02d,10,card,A,wash", i))
	}

	svc := testDashboardService(t, func(cfg *config.Config) {
		cfg.Analytics.PreviewPageSize = 4
		cfg.Analytics.MaxPageSize = 6
	})
	info := uploadExport(t, svc, "export.csv", strings.Join(rows, "\n"))

	tests := []struct {
		name       string
		query      api.TransactionsQuery
		wantLimit  int
		wantOffset int
		wantRows   int
	}{
		{
			name:      "default limit",
			query:     api.TransactionsQuery{},
			wantLimit: 4,
			wantRows:  4,
		},
		{
			name:      "explicit limit",
			query:     api.TransactionsQuery{Limit: 2},
			wantLimit: 2,
			wantRows:  2,
		},
		{
			name:      "limit clamped to max",
			query:     api.TransactionsQuery{Limit: 50},
			wantLimit: 6,
			wantRows:  6,
		},
		{
			name:       "offset into table",
			query:      api.TransactionsQuery{Limit: 6, Offset: 8},
			wantLimit:  6,
			wantOffset: 8,
			wantRows:   2,
		},
		{
			name:       "offset past end",
			query:      api.TransactionsQuery{Offset: 99},
			wantLimit:  4,
			wantOffset: 10,
			wantRows:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.Transactions(context.Background(), info.ID, tt.query)
			require.NoError(t, err)

			assert.Equal(t, 10, page.Total)
			assert.Equal(t, tt.wantLimit, page.Limit)
			assert.Equal(t, tt.wantOffset, page.Offset)
			assert.Len(t, page.Transactions, tt.wantRows)
		})
	}
}

func TestTransactions_FilterApplied(t *testing.T) {
	svc := testDashboardService(t, nil)
	info := uploadExport(t, svc, "export.csv", sampleExport)

	page, err := svc.Transactions(context.Background(), info.ID, api.TransactionsQuery{
		Filter: domain.Filter{Employees: []string{"B"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Transactions, 1)
	assert.Equal(t, "B", page.Transactions[0].Employee)
}

func TestExportCSV(t *testing.T) {
	svc := testDashboardService(t, nil)
	info := uploadExport(t, svc, "export.csv", sampleExport)

	var buf bytes.Buffer
	err := svc.ExportCSV(context.Background(), info.ID, domain.Filter{}, &buf)
	require.NoError(t, err)

	data := buf.Bytes()
	require.True(t, bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}))

	records, err := csv.NewReader(bytes.NewReader(data[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Timestamp", records[0][0])
	assert.Equal(t, "wash", records[1][6])
	assert.Equal(t, "cut", records[2][6])
}

func TestDeleteSession(t *testing.T) {
	svc := testDashboardService(t, nil)
	info := uploadExport(t, svc, "export.csv", sampleExport)

	require.NoError(t, svc.DeleteSession(context.Background(), info.ID))
	assert.Equal(t, 0, svc.SessionCount())

	err := svc.DeleteSession(context.Background(), info.ID)
	require.Error(t, err)
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
}

func TestListSessions_NewestFirst(t *testing.T) {
	svc := testDashboardService(t, nil)

	first := uploadExport(t, svc, "first.csv", sampleExport)
	time.Sleep(5 * time.Millisecond)
	second := uploadExport(t, svc, "second.csv", sampleExport)

	infos := svc.ListSessions(context.Background())
	require.Len(t, infos, 2)
	assert.Equal(t, second.ID, infos[0].ID)
	assert.Equal(t, first.ID, infos[1].ID)
}

func TestSweepExpired(t *testing.T) {
	svc := testDashboardService(t, func(cfg *config.Config) {
		cfg.Analytics.SessionTTL = time.Hour
	})

	stale := uploadExport(t, svc, "stale.csv", sampleExport)
	fresh := uploadExport(t, svc, "fresh.csv", sampleExport)

	svc.mu.Lock()
	svc.sessions[stale.ID].LastUsed = time.Now().Add(-2 * time.Hour)
	svc.mu.Unlock()

	removed := svc.sweepExpired(time.Now())

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, svc.SessionCount())
	_, err := svc.Session(context.Background(), fresh.ID)
	assert.NoError(t, err)
	_, err = svc.Session(context.Background(), stale.ID)
	assert.Error(t, err)
}

func TestSweepExpired_TouchKeepsSessionAlive(t *testing.T) {
	svc := testDashboardService(t, func(cfg *config.Config) {
		cfg.Analytics.SessionTTL = time.Hour
	})

	info := uploadExport(t, svc, "export.csv", sampleExport)

	svc.mu.Lock()
	svc.sessions[info.ID].LastUsed = time.Now().Add(-2 * time.Hour)
	svc.mu.Unlock()

	_, err := svc.Session(context.Background(), info.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, svc.sweepExpired(time.Now()))
	assert.Equal(t, 1, svc.SessionCount())
}
