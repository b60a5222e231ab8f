package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, 1<<20, cfg.Server.MaxHeaderBytes)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.False(t, cfg.Server.OpenBrowser)

	assert.Equal(t, []string{"http://localhost:8080"}, cfg.Security.AllowedOrigins)
	assert.True(t, cfg.Security.EnableCORS)
	assert.Equal(t, int64(32<<20), cfg.Security.MaxUploadBytes)
	assert.True(t, cfg.Security.RateLimit.Enabled)
	assert.Equal(t, 100.0, cfg.Security.RateLimit.RPS)
	assert.Equal(t, 50, cfg.Security.RateLimit.Burst)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "both", cfg.Logging.Output)
	assert.Equal(t, "logs/tillpulse.log", cfg.Logging.FilePath)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 5, cfg.Analytics.TopN)
	assert.Equal(t, 2*time.Hour, cfg.Analytics.SessionTTL)
	assert.Equal(t, 32, cfg.Analytics.MaxSessions)
	assert.Equal(t, 100, cfg.Analytics.PreviewPageSize)
	assert.Equal(t, 500, cfg.Analytics.MaxPageSize)

	// The schema ships usable header and layout lists out of the box.
	assert.Contains(t, cfg.Schema.TimestampColumns, "dt_iso")
	assert.Contains(t, cfg.Schema.AmountColumns, "montant")
	assert.Contains(t, cfg.Schema.PaymentColumns, "paiement")
	assert.Contains(t, cfg.Schema.TimestampLayouts, "2006-01-02T15:04:05")
	assert.Contains(t, cfg.Schema.DateLayouts, "02/01/2006")
	assert.Empty(t, cfg.Schema.Delimiter)
	assert.Empty(t, cfg.Schema.PaymentAliases)
}

func TestDefaultReturnsFreshCopies(t *testing.T) {
	first := Default()
	first.Schema.AmountColumns[0] = "mutated"

	second := Default()
	assert.NotEqual(t, "mutated", second.Schema.AmountColumns[0])
}

// chdirTemp moves the working directory away from the repository so Load
// does not pick up a real config file.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(orig) })
	return dir
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	chdirTemp(t)

	t.Setenv("TILLPULSE_SERVER_PORT", "9090")
	t.Setenv("TILLPULSE_SERVER_OPEN_BROWSER", "true")
	t.Setenv("TILLPULSE_SECURITY_ALLOWED_ORIGINS", "http://localhost:9090,https://till.example.com")
	t.Setenv("TILLPULSE_SECURITY_RATE_LIMIT_ENABLED", "false")
	t.Setenv("TILLPULSE_LOGGING_LEVEL", "debug")
	t.Setenv("TILLPULSE_LOGGING_OUTPUT", "stdout")
	t.Setenv("TILLPULSE_ANALYTICS_TOP_N", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Server.OpenBrowser)
	assert.Equal(t, []string{"http://localhost:9090", "https://till.example.com"}, cfg.Security.AllowedOrigins)
	assert.False(t, cfg.Security.RateLimit.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, 10, cfg.Analytics.TopN)

	// Untouched sections keep their defaults.
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadPicksUpConfigFile(t *testing.T) {
	dir := chdirTemp(t)

	content := `server:
  port: 7070
logging:
  level: warn
analytics:
  top_n: 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tillpulse.yaml"), []byte(content), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 3, cfg.Analytics.TopN)
}

func TestLoadEnvironmentWinsOverFile(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tillpulse.yaml"),
		[]byte("server:\n  port: 7070\n"), 0644))
	t.Setenv("TILLPULSE_SERVER_PORT", "9191")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestLoadValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port zero", "TILLPULSE_SERVER_PORT", "0"},
		{"port too high", "TILLPULSE_SERVER_PORT", "70000"},
		{"bad log level", "TILLPULSE_LOGGING_LEVEL", "verbose"},
		{"bad log format", "TILLPULSE_LOGGING_FORMAT", "xml"},
		{"negative rate limit", "TILLPULSE_SECURITY_RATE_LIMIT_RPS", "-1"},
		{"top n too large", "TILLPULSE_ANALYTICS_TOP_N", "500"},
		{"multi byte delimiter", "TILLPULSE_SCHEMA_DELIMITER", ";;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirTemp(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "validation")
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	content := `schema:
  delimiter: ";"
  payment_aliases:
    TWINT: CARD
    BAR: CASH
analytics:
  top_n: 7
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, ";", cfg.Schema.Delimiter)
	assert.Equal(t, "CARD", cfg.Schema.PaymentAliases["TWINT"])
	assert.Equal(t, "CASH", cfg.Schema.PaymentAliases["BAR"])
	assert.Equal(t, 7, cfg.Analytics.TopN)

	// Defaults survive underneath the overlay.
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config from file")
}

func TestLoadFileMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0644))

	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestValidateDerivedFields(t *testing.T) {
	cfg := Default()
	cfg.Logging.FilePath = ""
	cfg.Analytics.PreviewPageSize = 200
	cfg.Analytics.MaxPageSize = 50

	require.NoError(t, cfg.validate())

	assert.Equal(t, "logs/tillpulse.log", cfg.Logging.FilePath)
	assert.Equal(t, 200, cfg.Analytics.MaxPageSize)
}

func TestPaymentAliasOverrides(t *testing.T) {
	schema := &SchemaConfig{}
	assert.Nil(t, schema.PaymentAliasOverrides())

	schema.PaymentAliases = map[string]string{"twint": "CARD"}
	out := schema.PaymentAliasOverrides()
	require.NotNil(t, out)
	assert.Equal(t, "CARD", out["twint"])

	// The returned map is a copy.
	out["twint"] = "CASH"
	assert.Equal(t, "CARD", schema.PaymentAliases["twint"])
}
