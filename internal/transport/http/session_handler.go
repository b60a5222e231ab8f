package http

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"tillpulse/internal/config"
	apierrors "tillpulse/internal/errors"
	"tillpulse/internal/exporter"
	"tillpulse/internal/middleware"
	"tillpulse/internal/services"
	api "tillpulse/pkg/contracts/api/v1"
	"tillpulse/pkg/contracts/domain"
)

// uploadFieldName is the multipart form field carrying the export file
const uploadFieldName = "file"

// SessionHandler handles upload session HTTP requests with RFC 7807 errors
type SessionHandler struct {
	service      *services.DashboardService
	cfg          *config.Config
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	params       *middleware.QueryParamValidator
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(service *services.DashboardService, cfg *config.Config, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *SessionHandler {
	return &SessionHandler{
		service:      service,
		cfg:          cfg,
		logger:       logger.With(slog.String("component", "session_handler")),
		errorHandler: errorHandler,
		params:       middleware.NewQueryParamValidator(logger, errorHandler),
	}
}

// Routes returns the session routes
func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.CreateSession)
	r.Get("/", h.ListSessions)

	r.Route("/{sessionID}", func(r chi.Router) {
		r.Use(h.SessionCtx)
		r.Get("/", h.GetSession)
		r.Delete("/", h.DeleteSession)
		r.Get("/report", h.GetReport)
		r.Get("/transactions", h.GetTransactions)
		r.Get("/export", h.Export)
	})

	return r
}

// SessionCtx middleware validates the session ID format before handlers run
func (h *SessionHandler) SessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		if _, err := uuid.Parse(id); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("sessionID", "Session ID must be a valid UUID"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CreateSession handles POST /api/sessions. The export arrives either as a
// multipart form with a "file" field or as a raw body with an optional
// ?filename= hint.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	h.logger.InfoContext(r.Context(), "upload received",
		slog.String("request_id", reqID),
		slog.String("content_type", r.Header.Get("Content-Type")),
		slog.Int64("content_length", r.ContentLength),
	)

	if r.ContentLength > h.cfg.Security.MaxUploadBytes {
		h.errorHandler.HandleError(w, r, apierrors.PayloadTooLargeError(h.cfg.Security.MaxUploadBytes))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Security.MaxUploadBytes)

	var info *services.SessionInfo
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		file, header, err := r.FormFile(uploadFieldName)
		if err != nil {
			h.handleUploadError(w, r, err)
			return
		}
		defer file.Close()

		info, err = h.service.CreateSession(r.Context(), file, header.Filename, header.Size)
		if err != nil {
			h.handleUploadError(w, r, err)
			return
		}
	} else {
		filename := r.URL.Query().Get("filename")
		if filename == "" {
			filename = "upload.csv"
		}

		var err error
		info, err = h.service.CreateSession(r.Context(), r.Body, filename, r.ContentLength)
		if err != nil {
			h.handleUploadError(w, r, err)
			return
		}
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   info,
	})
}

// handleUploadError maps body-size overflows to a 413 problem and passes
// everything else to the central handler
func (h *SessionHandler) handleUploadError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.WarnContext(r.Context(), "upload failed",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("error", err.Error()),
	)

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		h.errorHandler.HandleError(w, r, apierrors.PayloadTooLargeError(h.cfg.Security.MaxUploadBytes))
		return
	}
	h.errorHandler.HandleError(w, r, err)
}

// ListSessions handles GET /api/sessions
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	infos := h.service.ListSessions(r.Context())

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   infos,
		"count":  len(infos),
	})
}

// GetSession handles GET /api/sessions/{sessionID}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	info, err := h.service.Session(r.Context(), id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   info,
	})
}

// DeleteSession handles DELETE /api/sessions/{sessionID}
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	if err := h.service.DeleteSession(r.Context(), id); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.NoContent(w, r)
}

// GetReport handles GET /api/sessions/{sessionID}/report
func (h *SessionHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	top, ok := h.params.ValidateInt(w, r, "top", 1, 100, 0)
	if !ok {
		return
	}
	filter, ok := h.parseFilter(w, r)
	if !ok {
		return
	}

	result, err := h.service.Report(r.Context(), id, api.ReportQuery{Filter: filter, TopN: top})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   result,
	})
}

// GetTransactions handles GET /api/sessions/{sessionID}/transactions
func (h *SessionHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	limit, ok := h.params.ValidateInt(w, r, "limit", 1, h.cfg.Analytics.MaxPageSize, 0)
	if !ok {
		return
	}
	offset, ok := h.params.ValidateInt(w, r, "offset", 0, 1<<30, 0)
	if !ok {
		return
	}
	filter, ok := h.parseFilter(w, r)
	if !ok {
		return
	}

	page, err := h.service.Transactions(r.Context(), id, api.TransactionsQuery{
		Filter: filter,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   page,
	})
}

// Export handles GET /api/sessions/{sessionID}/export. format=csv streams
// the filtered table as an attachment, format=json serves the full report
// document.
func (h *SessionHandler) Export(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())
	id := chi.URLParam(r, "sessionID")

	format, ok := h.params.ValidateEnum(w, r, "format", []string{"csv", "json"}, "csv")
	if !ok {
		return
	}
	filter, ok := h.parseFilter(w, r)
	if !ok {
		return
	}

	h.logger.InfoContext(r.Context(), "export requested",
		slog.String("request_id", reqID),
		slog.String("session_id", id),
		slog.String("format", format),
	)

	// Resolve the session before touching response headers so a missing
	// session still gets a clean problem response.
	info, err := h.service.Session(r.Context(), id)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(id, "csv")))

		if err := h.service.ExportCSV(r.Context(), id, filter, w); err != nil {
			// Response is already streaming, all we can do is log
			h.logger.ErrorContext(r.Context(), "export stream failed",
				slog.String("request_id", reqID),
				slog.String("session_id", id),
				slog.String("error", err.Error()),
			)
		}

	case "json":
		result, err := h.service.Report(r.Context(), id, api.ReportQuery{Filter: filter})
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(id, "json")))
		render.JSON(w, r, exporter.ReportDocument(result.Report, result.Insights, info.Validation))
	}
}

// parseFilter builds the transaction filter from query parameters. Slice
// parameters accept repeated keys and comma-separated values.
func (h *SessionHandler) parseFilter(w http.ResponseWriter, r *http.Request) (domain.Filter, bool) {
	q := r.URL.Query()

	filter := domain.Filter{
		From:   strings.TrimSpace(q.Get("from")),
		To:     strings.TrimSpace(q.Get("to")),
		Ticket: strings.TrimSpace(q.Get("ticket")),
	}

	for _, field := range []struct {
		name  string
		value string
	}{
		{"from", filter.From},
		{"to", filter.To},
	} {
		if field.value == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", field.value); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation(field.name,
				fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field.name)))
			return domain.Filter{}, false
		}
	}

	for _, v := range splitList(q["payments"]) {
		filter.Payments = append(filter.Payments, domain.PaymentMethod(strings.ToUpper(v)))
	}
	filter.Employees = splitList(q["employees"])
	filter.Services = splitList(q["services"])

	return filter, true
}

// splitList flattens repeated query values and comma-separated lists into
// one trimmed slice
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// exportFilename derives a stable download name from the session ID
func exportFilename(sessionID, ext string) string {
	short := sessionID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("tillpulse_%s.%s", short, ext)
}
