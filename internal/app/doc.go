// Package app wires the TillPulse dashboard server together and manages its
// lifecycle, from configuration loading through graceful shutdown.
//
// # Initialization Flow
//
// NewApplication builds the server in a fixed order:
//
//	1. Load configuration from files and environment
//	2. Initialize logging and OpenTelemetry
//	3. Build the service layer (normalizer, aggregator, dashboard, health)
//	4. Assemble the chi router with middleware and handlers
//	5. Create the HTTP server
//
// # Router Layout
//
// The router keeps three zones with different middleware:
//
//	- /ws/sessions/{id} runs before the middleware group, the WebSocket
//	  upgrade needs an unwrapped ResponseWriter
//	- /api and the embedded frontend run inside the full group (tracing,
//	  logging, recovery, security headers, CORS, rate limiting)
//	- /metrics is registered outside the group so Prometheus scrapes skip
//	  request logging and rate limits
//
// # Usage
//
// The main entry point is typically:
//
//	application, err := app.NewApplication(frontendFS)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Run blocks until SIGINT or SIGTERM, then drains active requests within the
// configured shutdown timeout and flushes telemetry. A failed listener
// cancels the run context so the same path executes. The package never calls
// os.Exit(), exit codes stay with main.
package app
