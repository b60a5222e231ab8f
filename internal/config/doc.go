// Package config provides centralized configuration management for the
// TillPulse dashboard and its command line tools. It handles loading
// configuration from multiple sources, validation, and a type-safe API for
// accessing configuration values throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file
//	3. Built-in defaults (lowest priority)
//
// The file is the first match among tillpulse.yaml, config.yaml and
// configs/config.yaml in the working directory. The offline tools use
// LoadFile instead, which reads one explicit file and skips the environment.
//
// # Environment Variables
//
// All environment variables follow the pattern TILLPULSE_<SECTION>_<FIELD>:
//
//	TILLPULSE_SERVER_PORT=8080
//	TILLPULSE_SERVER_OPEN_BROWSER=true
//	TILLPULSE_SECURITY_ALLOWED_ORIGINS=http://localhost:8080
//	TILLPULSE_LOGGING_LEVEL=info
//	TILLPULSE_ANALYTICS_TOP_N=5
//
// # Register Schema
//
// The Schema section describes how to read a point of sale export: which
// header labels map to which record field, which timestamp layouts to try,
// the CSV delimiter and extra payment label aliases. The defaults cover the
// English and French labels seen in real exports, so most installations need
// no schema configuration at all. A salon whose till writes German headers
// would configure:
//
//	schema:
//	  amount_columns: [betrag, summe]
//	  payment_aliases:
//	    TWINT: CARD
//	    BAR: CASH
//
// # Validation
//
// Load and LoadFile validate the assembled configuration with struct tags
// and reject out-of-range values (ports, timeouts, log levels, page sizes)
// before the application starts.
package config
