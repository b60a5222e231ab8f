// Package http implements the HTTP handlers of the TillPulse dashboard.
// It is a thin layer between transport and business logic: handlers parse
// and validate requests, call the service layer and format responses.
//
// # Architecture Principles
//
// Handlers in this package follow these principles:
//
//	1. Thin handlers - minimal logic, delegate to services
//	2. HTTP-only concerns - request parsing, response formatting
//	3. Error transformation - convert service errors to HTTP responses
//	4. No business logic - all logic belongs in the service layer
//
// # Surfaces
//
// Three handlers cover the API:
//
//	SessionHandler   - upload sessions under /api/sessions: create, list,
//	                   inspect, delete, filtered reports, table preview
//	                   pages and CSV/JSON export downloads
//	HealthHandler    - /api/healthz (liveness, readiness, stats) and
//	                   /api/version
//	ClientLogHandler - /api/logs, forwards frontend log entries into the
//	                   server log
//
// Each handler exposes Routes() chi.Router and is mounted by the app
// container. Responses use go-chi/render with a {status, data} envelope;
// downloads stream directly to the ResponseWriter.
//
// # Error Handling
//
// All errors pass through errors.ErrorHandler and come back as RFC 7807
// problem documents:
//
//	{
//	    "type": "https://tillpulse.local/errors/validation_error",
//	    "title": "Validation Error",
//	    "status": 400,
//	    "detail": "from must be a date in YYYY-MM-DD format",
//	    "instance": "/api/sessions/42/report"
//	}
//
// # Request Flow
//
//	HTTP Request → Chi Router → Middleware → Handler → DashboardService
//	                                              ↓
//	HTTP Response ← render.JSON / problem ←──────┘
package http
