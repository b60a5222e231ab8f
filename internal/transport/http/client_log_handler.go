package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"tillpulse/internal/errors"
)

// maxClientLogBytes caps browser log submissions
const maxClientLogBytes = 16 * 1024

// ClientLogHandler receives log entries from the dashboard frontend and
// forwards them into the server log
type ClientLogHandler struct {
	logger *slog.Logger
}

// NewClientLogHandler creates a new client log handler
func NewClientLogHandler(logger *slog.Logger) *ClientLogHandler {
	return &ClientLogHandler{
		logger: logger.With(slog.String("handler", "client_log")),
	}
}

// ClientLogRequest represents a log entry sent by the frontend
type ClientLogRequest struct {
	Level   string                 `json:"level"`
	Message string                 `json:"message"`
	Page    string                 `json:"page,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Handle processes POST /api/logs
func (h *ClientLogHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxClientLogBytes)

	var req ClientLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, errors.NewValidationError("Invalid log entry format"))
		return
	}
	if req.Message == "" {
		errors.WriteError(w, errors.NewValidationError("Log message is required"))
		return
	}

	level := slog.LevelInfo
	switch req.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	attrs := []slog.Attr{slog.String("client_page", req.Page)}
	if req.Data != nil {
		attrs = append(attrs, slog.Any("data", req.Data))
	}
	h.logger.LogAttrs(r.Context(), level, "frontend: "+req.Message, attrs...)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{"status": "success"})
}
