package services

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tillpulse/internal/config"
	"tillpulse/internal/errors"
	"tillpulse/internal/exporter"
	"tillpulse/internal/infrastructure"
	"tillpulse/internal/kpi"
	"tillpulse/internal/normalizer"
	api "tillpulse/pkg/contracts/api/v1"
	"tillpulse/pkg/contracts/domain"
)

// Session is one uploaded export and the state derived from it. The
// dataset is immutable after creation; only LastUsed changes, under the
// service lock.
type Session struct {
	ID        string
	Filename  string
	CreatedAt time.Time
	LastUsed  time.Time
	Dataset   *domain.Dataset
}

// SessionInfo is the client-facing description of a session
type SessionInfo struct {
	ID         string                   `json:"id"`
	Filename   string                   `json:"filename"`
	CreatedAt  time.Time                `json:"created_at"`
	LastUsedAt time.Time                `json:"last_used_at"`
	Rows       int                      `json:"rows"`
	Validation domain.ValidationSummary `json:"validation"`
}

// ReportResult bundles a computed report with its insights and the filter
// that produced it
type ReportResult struct {
	SessionID string        `json:"session_id"`
	Filter    domain.Filter `json:"filter"`
	Report    *kpi.Report   `json:"report"`
	Insights  *kpi.Insights `json:"insights"`
}

// TransactionsPage is one page of a session's normalized table
type TransactionsPage struct {
	SessionID    string               `json:"session_id"`
	Total        int                  `json:"total"`
	Limit        int                  `json:"limit"`
	Offset       int                  `json:"offset"`
	Transactions []domain.Transaction `json:"transactions"`
}

// DashboardService owns the session store and runs the normalize/report
// pipeline for the web dashboard
type DashboardService struct {
	cfg        *config.Config
	logger     *slog.Logger
	normalizer *normalizer.Normalizer
	aggregator *kpi.Aggregator
	exporter   *exporter.TransactionExporter
	metrics    *infrastructure.DashboardMetrics

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewDashboardService creates the dashboard service. metrics may be nil in
// tests and offline tools.
func NewDashboardService(cfg *config.Config, logger *slog.Logger, norm *normalizer.Normalizer, agg *kpi.Aggregator, metrics *infrastructure.DashboardMetrics) *DashboardService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DashboardService{
		cfg:        cfg,
		logger:     logger,
		normalizer: norm,
		aggregator: agg,
		exporter:   exporter.NewTransactionExporter(),
		metrics:    metrics,
		sessions:   make(map[string]*Session),
	}
}

// Start launches the session janitor. It stops when ctx is canceled.
func (s *DashboardService) Start(ctx context.Context) {
	interval := s.cfg.Analytics.SessionTTL / 4
	if interval < time.Minute {
		interval = time.Minute
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := s.sweepExpired(time.Now()); removed > 0 {
					infrastructure.RecordSessionChange(ctx, s.metrics, -int64(removed))
					s.logger.Info("expired sessions swept",
						slog.Int("count", removed),
						slog.Duration("ttl", s.cfg.Analytics.SessionTTL))
				}
			}
		}
	}()
}

// CreateSession normalizes an uploaded export and stores it as a new
// session. size is the upload size in bytes as reported by the request.
func (s *DashboardService) CreateSession(ctx context.Context, r io.Reader, filename string, size int64) (*SessionInfo, error) {
	if err := s.checkCapacity(); err != nil {
		return nil, err
	}

	start := time.Now()
	ds, err := s.normalizer.Normalize(ctx, r, filename)
	infrastructure.RecordUpload(ctx, s.metrics, uploadFormat(filename), size, err)
	if err != nil {
		s.logger.WarnContext(ctx, "upload rejected",
			slog.String("filename", filename),
			slog.String("error", err.Error()))
		return nil, err
	}
	infrastructure.RecordNormalize(ctx, s.metrics, ds.Summary.RowsKept, dropCounts(ds.Summary), time.Since(start))

	session := &Session{
		ID:        uuid.New().String(),
		Filename:  filepath.Base(filename),
		CreatedAt: time.Now(),
		LastUsed:  time.Now(),
		Dataset:   ds,
	}

	s.mu.Lock()
	if len(s.sessions) >= s.cfg.Analytics.MaxSessions {
		s.mu.Unlock()
		return nil, errors.ErrSessionLimit
	}
	s.sessions[session.ID] = session
	s.mu.Unlock()

	infrastructure.RecordSessionChange(ctx, s.metrics, 1)
	s.logger.InfoContext(ctx, "session created",
		slog.String("session_id", session.ID),
		slog.String("filename", session.Filename),
		slog.Int("rows_kept", ds.Summary.RowsKept),
		slog.Int("rows_dropped", ds.Summary.RowsDropped),
		slog.Duration("duration", time.Since(start)))

	return s.sessionInfo(session), nil
}

// Session returns the metadata of one session
func (s *DashboardService) Session(ctx context.Context, id string) (*SessionInfo, error) {
	session, err := s.touch(id)
	if err != nil {
		return nil, err
	}
	return s.sessionInfo(session), nil
}

// ListSessions returns all live sessions, newest first
func (s *DashboardService) ListSessions(ctx context.Context) []*SessionInfo {
	s.mu.RLock()
	infos := make([]*SessionInfo, 0, len(s.sessions))
	for _, session := range s.sessions {
		infos = append(infos, s.sessionInfo(session))
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.After(infos[j].CreatedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos
}

// DeleteSession removes a session and frees its table
func (s *DashboardService) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return errors.SessionNotFoundError(id)
	}

	infrastructure.RecordSessionChange(ctx, s.metrics, -1)
	s.logger.InfoContext(ctx, "session deleted", slog.String("session_id", id))
	return nil
}

// SessionCount returns the number of live sessions
func (s *DashboardService) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Report applies the query filter to a session's table and computes a
// fresh report with insights
func (s *DashboardService) Report(ctx context.Context, id string, query api.ReportQuery) (*ReportResult, error) {
	return s.report(ctx, id, query, "api")
}

// LiveReport is Report for the websocket channel; it only differs in how
// the computation is attributed in metrics
func (s *DashboardService) LiveReport(ctx context.Context, id string, query api.ReportQuery) (*ReportResult, error) {
	return s.report(ctx, id, query, "live")
}

func (s *DashboardService) report(ctx context.Context, id string, query api.ReportQuery, trigger string) (*ReportResult, error) {
	session, err := s.touch(id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	filtered := &domain.Dataset{
		Transactions: query.Filter.Apply(session.Dataset.Transactions),
		Summary:      session.Dataset.Summary,
	}
	report := s.aggregator.Compute(ctx, filtered, query.TopN)
	insights := kpi.BuildInsights(report)
	infrastructure.RecordReport(ctx, s.metrics, trigger, time.Since(start))

	return &ReportResult{
		SessionID: id,
		Filter:    query.Filter,
		Report:    report,
		Insights:  insights,
	}, nil
}

// Transactions returns one page of a session's normalized table after
// filtering. Limits are clamped to the configured page sizes.
func (s *DashboardService) Transactions(ctx context.Context, id string, query api.TransactionsQuery) (*TransactionsPage, error) {
	session, err := s.touch(id)
	if err != nil {
		return nil, err
	}

	filtered := query.Filter.Apply(session.Dataset.Transactions)

	limit := query.Limit
	if limit <= 0 {
		limit = s.cfg.Analytics.PreviewPageSize
	}
	if limit > s.cfg.Analytics.MaxPageSize {
		limit = s.cfg.Analytics.MaxPageSize
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > len(filtered) {
		offset = len(filtered)
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}

	page := make([]domain.Transaction, end-offset)
	copy(page, filtered[offset:end])

	return &TransactionsPage{
		SessionID:    id,
		Total:        len(filtered),
		Limit:        limit,
		Offset:       offset,
		Transactions: page,
	}, nil
}

// ExportCSV streams a session's filtered table as CSV to w
func (s *DashboardService) ExportCSV(ctx context.Context, id string, filter domain.Filter, w io.Writer) error {
	session, err := s.touch(id)
	if err != nil {
		return err
	}

	filtered := filter.Apply(session.Dataset.Transactions)
	s.logger.InfoContext(ctx, "exporting session table",
		slog.String("session_id", id),
		slog.Int("rows", len(filtered)))

	return s.exporter.Write(w, filtered, true)
}

// touch looks up a session and refreshes its idle timer
func (s *DashboardService) touch(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, errors.SessionNotFoundError(id)
	}
	session.LastUsed = time.Now()
	return session, nil
}

// checkCapacity fails fast before normalization work when the store is
// full; CreateSession re-checks under the write lock before inserting.
func (s *DashboardService) checkCapacity() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.sessions) >= s.cfg.Analytics.MaxSessions {
		return errors.ErrSessionLimit
	}
	return nil
}

// sweepExpired removes sessions idle past the TTL and returns how many
// were removed
func (s *DashboardService) sweepExpired(now time.Time) int {
	ttl := s.cfg.Analytics.SessionTTL

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if now.Sub(session.LastUsed) > ttl {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *DashboardService) sessionInfo(session *Session) *SessionInfo {
	return &SessionInfo{
		ID:         session.ID,
		Filename:   session.Filename,
		CreatedAt:  session.CreatedAt,
		LastUsedAt: session.LastUsed,
		Rows:       len(session.Dataset.Transactions),
		Validation: session.Dataset.Summary,
	}
}

// uploadFormat derives the metrics label from the uploaded filename
func uploadFormat(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return "unknown"
	}
	return ext
}

func dropCounts(summary domain.ValidationSummary) map[string]int {
	if len(summary.DropReasons) == 0 {
		return nil
	}
	counts := make(map[string]int, len(summary.DropReasons))
	for reason, n := range summary.DropReasons {
		counts[string(reason)] = n
	}
	return counts
}
