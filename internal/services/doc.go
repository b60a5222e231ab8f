// Package services implements the business logic layer of TillPulse. It
// sits between the HTTP handlers and the normalizer/aggregator core, so
// business rules stay centralized and testable.
//
// # Architecture
//
// Services follow these principles:
//
//	1. Context propagation for cancellation and tracing
//	2. Dependency injection for loose coupling
//	3. Domain-focused methods that encapsulate business rules
//	4. Cross-cutting concerns (logging, metrics) handled once, here
//
// # Available Services
//
//	- DashboardService: session lifecycle, report computation, table
//	  preview and export
//	- HealthService: system health and version reporting
//
// # Concurrency
//
// A session's dataset is immutable once created; filters select, they
// never mutate. The only shared mutable state is the session map itself,
// guarded by an RWMutex, and a janitor goroutine that sweeps idle
// sessions past their TTL.
//
// # Error Handling
//
// Services return the application error types from internal/errors;
// handlers pass them to the central error handler which renders RFC 7807
// problem responses.
package services
