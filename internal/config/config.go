package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/17chuhai-dev/zinses-rechner-optimization/internal/calculator"
)

type Config struct {
	// HTTP Server
	Port string

	// Calculation limits
	MaxPrincipal      decimal.Decimal
	MaxMonthlyPayment decimal.Decimal
	MaxAnnualRate     decimal.Decimal
	MaxYears          int

	// Result cache
	CacheBackend  string // "memory" or "redis"
	CacheSize     int
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Rate limiting
	RateLimitPerMinute int

	// CORS
	AllowedOrigins []string

	// Database (consent and audit data)
	SQLiteDBPath string

	// AMQP (audit event bus)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Audit worker
	AuditRetention time.Duration
	SweepInterval  time.Duration

	// Google Sheets export
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		MaxPrincipal:      getEnvDecimal("MAX_PRINCIPAL", decimal.NewFromInt(10_000_000)),
		MaxMonthlyPayment: getEnvDecimal("MAX_MONTHLY_PAYMENT", decimal.NewFromInt(50_000)),
		MaxAnnualRate:     getEnvDecimal("MAX_ANNUAL_RATE", decimal.NewFromInt(20)),
		MaxYears:          getEnvInt("MAX_YEARS", 50),

		CacheBackend:  getEnv("CACHE_BACKEND", "memory"),
		CacheSize:     getEnvInt("CACHE_SIZE", 1000),
		CacheTTL:      getEnvDuration("CACHE_TTL", 5*time.Minute),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"https://zinses-rechner.de"}),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/zinses.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "zinses"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "audit_events"),

		AuditRetention: getEnvDuration("AUDIT_RETENTION", 365*24*time.Hour),
		SweepInterval:  getEnvDuration("SWEEP_INTERVAL", time.Hour),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:       getEnv("GOOGLE_SHEET_NAME", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),
	}

	return cfg
}

// Limits returns the calculation limits as the engine expects them.
func (c *Config) Limits() calculator.Limits {
	return calculator.Limits{
		MaxPrincipal:      c.MaxPrincipal,
		MaxMonthlyPayment: c.MaxMonthlyPayment,
		MaxAnnualRate:     c.MaxAnnualRate,
		MaxYears:          c.MaxYears,
	}
}

// SheetsConfigured reports whether the Google Sheets export target can be
// constructed from this configuration.
func (c *Config) SheetsConfigured() bool {
	return c.GoogleSpreadsheetID != "" && c.GoogleSheetName != "" &&
		(c.GoogleCredentialsFile != "" || c.GoogleCredentialsJSON != "")
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate calculation limits
	if !c.MaxPrincipal.IsPositive() {
		errors = append(errors, fmt.Sprintf("invalid max principal %s: must be positive", c.MaxPrincipal))
	}
	if c.MaxMonthlyPayment.IsNegative() {
		errors = append(errors, fmt.Sprintf("invalid max monthly payment %s: must not be negative", c.MaxMonthlyPayment))
	}
	if !c.MaxAnnualRate.IsPositive() {
		errors = append(errors, fmt.Sprintf("invalid max annual rate %s: must be positive", c.MaxAnnualRate))
	}
	if c.MaxYears < 1 {
		errors = append(errors, fmt.Sprintf("invalid max years %d: must be at least 1", c.MaxYears))
	}

	// Validate cache backend
	validBackends := []string{"memory", "redis"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.CacheBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid cache backend '%s': must be one of %v", c.CacheBackend, validBackends))
	}

	if c.CacheBackend == "redis" && c.RedisAddr == "" {
		errors = append(errors, "Redis address cannot be empty when using redis cache backend")
	}

	if c.CacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
	}
	if c.CacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	// Validate SQLite path
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		// Check if directory exists or can be created
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}

		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate retention settings
	if c.AuditRetention < 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid audit retention %v: must be at least 24 hours", c.AuditRetention))
	}
	if c.SweepInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid sweep interval %v: must be at least 1 minute", c.SweepInterval))
	}

	// Validate Google Sheets export if partially configured
	sheetsFields := c.GoogleSpreadsheetID != "" || c.GoogleSheetName != "" ||
		c.GoogleCredentialsFile != "" || c.GoogleCredentialsJSON != ""
	if sheetsFields && !c.SheetsConfigured() {
		errors = append(errors, "incomplete Google Sheets configuration: spreadsheet ID, sheet name and credentials are all required")
	}
	if c.GoogleCredentialsFile != "" {
		if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
		}
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
