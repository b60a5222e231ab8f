package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Schema    SchemaConfig    `yaml:"schema" envconfig:"SCHEMA"`
	Analytics AnalyticsConfig `yaml:"analytics" envconfig:"ANALYTICS"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gt=0"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	OpenBrowser     bool          `yaml:"open_browser" envconfig:"OPEN_BROWSER"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" validate:"min=1"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	MaxUploadBytes int64           `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" validate:"gt=0"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gt=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gt=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format      string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output      string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=stdout file both"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// SchemaConfig describes how to read a register export: which header labels
// carry which field and which layouts timestamps come in. Register vendors
// disagree on all of this, so the whole mapping is configuration.
type SchemaConfig struct {
	TimestampColumns []string `yaml:"timestamp_columns" envconfig:"TIMESTAMP_COLUMNS" validate:"min=1"`
	DateColumns      []string `yaml:"date_columns" envconfig:"DATE_COLUMNS" validate:"min=1"`
	TimeColumns      []string `yaml:"time_columns" envconfig:"TIME_COLUMNS" validate:"min=1"`
	AmountColumns    []string `yaml:"amount_columns" envconfig:"AMOUNT_COLUMNS" validate:"min=1"`
	PaymentColumns   []string `yaml:"payment_columns" envconfig:"PAYMENT_COLUMNS" validate:"min=1"`
	EmployeeColumns  []string `yaml:"employee_columns" envconfig:"EMPLOYEE_COLUMNS" validate:"min=1"`
	ServiceColumns   []string `yaml:"service_columns" envconfig:"SERVICE_COLUMNS" validate:"min=1"`
	TicketColumns    []string `yaml:"ticket_columns" envconfig:"TICKET_COLUMNS"`

	TimestampLayouts []string `yaml:"timestamp_layouts" envconfig:"TIMESTAMP_LAYOUTS" validate:"min=1"`
	DateLayouts      []string `yaml:"date_layouts" envconfig:"DATE_LAYOUTS" validate:"min=1"`
	TimeLayouts      []string `yaml:"time_layouts" envconfig:"TIME_LAYOUTS" validate:"min=1"`

	// Delimiter forces the CSV field separator; empty means sniff , vs ;
	Delimiter string `yaml:"delimiter" envconfig:"DELIMITER" validate:"omitempty,len=1"`

	// PaymentAliases extends the built-in raw label to canonical method map
	PaymentAliases map[string]string `yaml:"payment_aliases" envconfig:"PAYMENT_ALIASES"`
}

// AnalyticsConfig contains KPI computation configuration
type AnalyticsConfig struct {
	TopN            int           `yaml:"top_n" envconfig:"TOP_N" validate:"min=1,max=100"`
	SessionTTL      time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL" validate:"gt=0"`
	MaxSessions     int           `yaml:"max_sessions" envconfig:"MAX_SESSIONS" validate:"min=1"`
	PreviewPageSize int           `yaml:"preview_page_size" envconfig:"PREVIEW_PAGE_SIZE" validate:"min=1"`
	MaxPageSize     int           `yaml:"max_page_size" envconfig:"MAX_PAGE_SIZE" validate:"min=1"`
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in that order of precedence (env wins).
func Load() (*Config, error) {
	cfg := Default()

	configFile := getConfigFilePath()
	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFile builds the configuration from defaults plus one explicit YAML
// file, skipping the environment. Used by the offline tools.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays YAML file values onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate normalizes derived fields and checks the struct tags
func (c *Config) validate() error {
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/tillpulse.log"
	}
	if c.Analytics.MaxPageSize < c.Analytics.PreviewPageSize {
		c.Analytics.MaxPageSize = c.Analytics.PreviewPageSize
	}

	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}
	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	for _, location := range ConfigFileLocations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return "" // No config file found, use env vars only
}

// PaymentAliasOverrides converts the configured alias map into the domain
// representation used by the normalizer
func (c *SchemaConfig) PaymentAliasOverrides() map[string]string {
	if len(c.PaymentAliases) == 0 {
		return nil
	}
	out := make(map[string]string, len(c.PaymentAliases))
	for k, v := range c.PaymentAliases {
		out[k] = v
	}
	return out
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			OpenBrowser:     false,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			MaxUploadBytes: 32 << 20, // 32MB
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Output:      "both",
			FilePath:    "logs/tillpulse.log",
			Development: false,
		},
		Schema: SchemaConfig{
			TimestampColumns: append([]string(nil), DefaultTimestampColumns...),
			DateColumns:      append([]string(nil), DefaultDateColumns...),
			TimeColumns:      append([]string(nil), DefaultTimeColumns...),
			AmountColumns:    append([]string(nil), DefaultAmountColumns...),
			PaymentColumns:   append([]string(nil), DefaultPaymentColumns...),
			EmployeeColumns:  append([]string(nil), DefaultEmployeeColumns...),
			ServiceColumns:   append([]string(nil), DefaultServiceColumns...),
			TicketColumns:    append([]string(nil), DefaultTicketColumns...),
			TimestampLayouts: append([]string(nil), DefaultTimestampLayouts...),
			DateLayouts:      append([]string(nil), DefaultDateLayouts...),
			TimeLayouts:      append([]string(nil), DefaultTimeLayouts...),
		},
		Analytics: AnalyticsConfig{
			TopN:            5,
			SessionTTL:      2 * time.Hour,
			MaxSessions:     32,
			PreviewPageSize: 100,
			MaxPageSize:     500,
		},
	}
}
