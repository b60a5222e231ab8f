// Package websocket implements the live dashboard channel. Each connection
// is a filtered view of one upload session: the client sends filter frames,
// the server answers with freshly computed report frames. There is no hub
// and no broadcast, sockets never share state.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"tillpulse/internal/infrastructure"
	"tillpulse/internal/services"
	api "tillpulse/pkg/contracts/api/v1"
	"tillpulse/pkg/contracts/events"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Filter frames carry
	// multiselect lists, so this is roomier than a ping-only channel.
	maxMessageSize = 8192
)

// Live upgrades dashboard connections and runs their pumps. It satisfies
// services.ConnectionCounter.
type Live struct {
	service  *services.DashboardService
	metrics  *infrastructure.DashboardMetrics
	logger   *slog.Logger
	upgrader websocket.Upgrader

	connected atomic.Int64
}

// NewLive creates the live channel handler. allowedOrigins is matched
// against the Origin header on upgrade; requests without an Origin header
// are treated as same-origin and allowed.
func NewLive(service *services.DashboardService, metrics *infrastructure.DashboardMetrics, allowedOrigins []string, logger *slog.Logger) *Live {
	if logger == nil {
		logger = slog.Default()
	}

	l := &Live{
		service: service,
		metrics: metrics,
		logger:  logger.With(slog.String("component", "websocket.live")),
	}
	l.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			l.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
	return l
}

// Count returns the number of connected clients
func (l *Live) Count() int {
	return int(l.connected.Load())
}

// Handle upgrades GET /ws/sessions/{sessionID} and serves the connection
// until the peer goes away or the session disappears
func (l *Live) Handle(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if _, err := uuid.Parse(sessionID); err != nil {
		http.Error(w, "session ID must be a valid UUID", http.StatusBadRequest)
		return
	}

	// Resolve the session before upgrading so a stale dashboard tab gets a
	// plain 404 instead of a dropped socket
	if _, err := l.service.Session(r.Context(), sessionID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.logger.ErrorContext(r.Context(), "websocket upgrade failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return
	}

	traceID := infrastructure.TraceIDFromContext(r.Context())
	client := &liveClient{
		live:      l,
		conn:      conn,
		sessionID: sessionID,
		traceID:   traceID,
		send:      make(chan []byte, 16),
		logger: l.logger.With(
			slog.String("session_id", sessionID),
			slog.String("remote_addr", conn.RemoteAddr().String()),
		),
		connectedAt: time.Now(),
	}

	l.connected.Add(1)
	infrastructure.RecordWebSocketChange(r.Context(), l.metrics, 1)
	client.logger.Info("live client connected")

	client.enqueue(events.NewMessage(events.MessageTypeHello, traceID, map[string]interface{}{
		"session_id": sessionID,
	}))

	go client.writePump()
	go client.readPump()
}

// liveClient is one dashboard connection
type liveClient struct {
	live      *Live
	conn      *websocket.Conn
	sessionID string
	traceID   string
	send      chan []byte
	logger    *slog.Logger

	connectedAt time.Time
}

// inboundMessage mirrors the envelope with a raw payload so each type can
// decode its own data
type inboundMessage struct {
	Type events.MessageType `json:"type"`
	Data json.RawMessage    `json:"data"`
}

// enqueue marshals a frame onto the send channel, dropping it when the
// writer is backed up
func (c *liveClient) enqueue(msg events.Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal frame",
			slog.String("type", string(msg.Type)),
			slog.String("error", err.Error()))
		return
	}
	select {
	case c.send <- payload:
	default:
		c.logger.Warn("send buffer full, dropping frame", slog.String("type", string(msg.Type)))
	}
}

// readPump pumps filter frames from the connection into report computations
func (c *liveClient) readPump() {
	defer func() {
		c.live.connected.Add(-1)
		infrastructure.RecordWebSocketChange(context.Background(), c.live.metrics, -1)
		close(c.send)
		c.conn.Close()
		c.logger.Info("live client disconnected",
			slog.Duration("connection_duration", time.Since(c.connectedAt)))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("unexpected websocket close", slog.String("error", err.Error()))
			}
			return
		}
		c.handleFrame(payload)
	}
}

// handleFrame decodes one client frame and answers it
func (c *liveClient) handleFrame(payload []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		c.sendError("BAD_FRAME", "frame is not valid JSON")
		return
	}

	switch msg.Type {
	case events.MessageTypeFilter:
		var req events.FilterRequest
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				c.sendError("BAD_FILTER", "filter payload is malformed")
				return
			}
		}
		c.sendReport(req)

	default:
		c.sendError("UNKNOWN_TYPE", "unsupported message type: "+string(msg.Type))
	}
}

// sendReport computes a fresh filtered report and enqueues it
func (c *liveClient) sendReport(req events.FilterRequest) {
	ctx := context.Background()

	result, err := c.live.service.LiveReport(ctx, c.sessionID, api.ReportQuery{
		Filter: req.Filter,
		TopN:   req.TopN,
	})
	if err != nil {
		c.logger.Warn("live report failed", slog.String("error", err.Error()))
		c.sendError("SESSION_GONE", "session is no longer available")
		return
	}

	c.enqueue(events.NewMessage(events.MessageTypeReport, c.traceID, result))
}

func (c *liveClient) sendError(code, message string) {
	c.enqueue(events.NewMessage(events.MessageTypeError, c.traceID, events.ErrorPayload{
		Code:    code,
		Message: message,
	}))
}

// writePump pumps frames from the send channel to the connection and keeps
// the ping ticker running
func (c *liveClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logger.Debug("write failed", slog.String("error", err.Error()))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
