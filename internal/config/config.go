package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"budgetly/internal/log"
)

// Mail transports.
const (
	MailTransportLog   = "log"
	MailTransportBrevo = "brevo"
	MailTransportAMQP  = "amqp"
)

// Data backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

const minJWTSecretLength = 16

type Config struct {
	// HTTP Server
	Port      string
	ClientURL string

	// Storage
	DataBackend  string
	SQLiteDBPath string
	DatabaseURL  string

	// Timezone anchors month boundaries.
	Timezone string

	// Auth
	JWTSecret    string
	JWTIssuer    string
	JWTTTL       time.Duration
	ResetCodeTTL time.Duration

	// Mail
	MailTransport string
	MailFrom      string
	MailFromName  string
	BrevoAPIKey   string
	BrevoAPIURL   string
	MailTimeout   time.Duration

	// AMQP
	AMQPURL           string
	AMQPExchange      string
	AMQPMailQueue     string
	AMQPActivityQueue string

	// Google Sheets activity export (worker)
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Rate limiting
	RedisURL               string
	RateLimitPerMinute     int
	AuthRateLimitPerMinute int

	// Summary cache
	SummaryCacheSize int
	SummaryCacheTTL  time.Duration

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8081"),
		ClientURL: getEnv("CLIENT_URL", "http://localhost:5173"),

		DataBackend:  getEnv("DATA_BACKEND", BackendSQLite),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/budgetly.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		Timezone: getEnv("TIMEZONE", "UTC"),

		JWTSecret:    getEnv("JWT_SECRET", ""),
		JWTIssuer:    getEnv("JWT_ISSUER", "budgetly"),
		JWTTTL:       getEnvDuration("JWT_TTL", 7*24*time.Hour),
		ResetCodeTTL: getEnvDuration("RESET_CODE_TTL", 15*time.Minute),

		MailTransport: getEnv("MAIL_TRANSPORT", MailTransportLog),
		MailFrom:      getEnv("MAIL_FROM", ""),
		MailFromName:  getEnv("MAIL_FROM_NAME", "Expense Tracker"),
		BrevoAPIKey:   getEnv("BREVO_API_KEY", ""),
		BrevoAPIURL:   getEnv("BREVO_API_URL", "https://api.brevo.com/v3/smtp/email"),
		MailTimeout:   getEnvDuration("MAIL_TIMEOUT", 10*time.Second),

		AMQPURL:           getEnv("AMQP_URL", ""),
		AMQPExchange:      getEnv("AMQP_EXCHANGE", "budgetly"),
		AMQPMailQueue:     getEnv("AMQP_MAIL_QUEUE", "password_reset_mail"),
		AMQPActivityQueue: getEnv("AMQP_ACTIVITY_QUEUE", "expense_activity"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:     getEnv("GOOGLE_SHEET_NAME", "Activity"),

		RedisURL:               getEnv("REDIS_URL", ""),
		RateLimitPerMinute:     getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		AuthRateLimitPerMinute: getEnvInt("AUTH_RATE_LIMIT_PER_MINUTE", 10),

		SummaryCacheSize: getEnvInt("SUMMARY_CACHE_SIZE", 1000),
		SummaryCacheTTL:  getEnvDuration("SUMMARY_CACHE_TTL", 5*time.Minute),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Location resolves Timezone; call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SummaryCacheEnabled reports whether summaries may be cached in process.
// Invalidation is local to one process, so a shared postgres store, which
// may serve several replicas, always reads through.
func (c *Config) SummaryCacheEnabled() bool {
	return c.SummaryCacheSize > 0 && c.DataBackend != BackendPostgres
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{BackendSQLite, BackendPostgres, BackendMemory}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		}
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	if len(c.JWTSecret) < minJWTSecretLength {
		errors = append(errors, fmt.Sprintf("JWT_SECRET must be at least %d characters", minJWTSecretLength))
	}
	if c.JWTTTL <= 0 {
		errors = append(errors, fmt.Sprintf("invalid JWT TTL %v: must be positive", c.JWTTTL))
	}
	if c.ResetCodeTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid reset code TTL %v: must be at least 1 minute", c.ResetCodeTTL))
	}
	if c.MailTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid mail timeout %v: must be positive", c.MailTimeout))
	}

	switch c.MailTransport {
	case MailTransportLog:
	case MailTransportBrevo:
		if c.BrevoAPIKey == "" {
			errors = append(errors, "BREVO_API_KEY is required when MAIL_TRANSPORT=brevo")
		}
		if c.MailFrom == "" {
			errors = append(errors, "MAIL_FROM is required when MAIL_TRANSPORT=brevo")
		}
	case MailTransportAMQP:
		if c.AMQPURL == "" {
			errors = append(errors, "AMQP_URL is required when MAIL_TRANSPORT=amqp")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid mail transport '%s': must be one of log, brevo, amqp", c.MailTransport))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPMailQueue == "" || c.AMQPActivityQueue == "" {
			errors = append(errors, "AMQP queue names cannot be empty when AMQP URL is provided")
		}
	}

	if c.RedisURL != "" {
		if parsedURL, err := url.Parse(c.RedisURL); err != nil || (parsedURL.Scheme != "redis" && parsedURL.Scheme != "rediss") {
			errors = append(errors, fmt.Sprintf("invalid Redis URL '%s': must use redis:// or rediss://", c.RedisURL))
		}
	}
	if c.RateLimitPerMinute < 0 || c.AuthRateLimitPerMinute < 0 {
		errors = append(errors, "rate limits cannot be negative")
	}

	if c.SummaryCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid summary cache size %d: must be at least 1", c.SummaryCacheSize))
	}
	if c.SummaryCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid summary cache TTL %v: cannot be negative", c.SummaryCacheTTL))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateWorker checks the subset of settings cmd/budgetly-worker reads.
func (c *Config) ValidateWorker() error {
	var errors []string

	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the worker")
	} else if parsedURL, err := url.Parse(c.AMQPURL); err != nil || (parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps") {
		errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': must use amqp:// or amqps://", c.AMQPURL))
	}
	if c.AMQPExchange == "" || c.AMQPMailQueue == "" || c.AMQPActivityQueue == "" {
		errors = append(errors, "AMQP exchange and queue names cannot be empty")
	}
	if c.BrevoAPIKey != "" && c.MailFrom == "" {
		errors = append(errors, "MAIL_FROM is required when BREVO_API_KEY is set")
	}
	if c.MailTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid mail timeout %v: must be positive", c.MailTimeout))
	}
	if c.ResetCodeTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid reset code TTL %v: must be at least 1 minute", c.ResetCodeTTL))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
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
