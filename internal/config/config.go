// Package config loads the portal's settings from the environment.
// Every field has an env tag; defaults are applied for unset values and the
// result is validated once at startup.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Audit    AuditConfig
	Links    LinksConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout stays 0 so import progress streams are not cut off.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds PostgreSQL pool settings.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// AutoMigrate applies the embedded schema on startup.
	AutoMigrate bool `env:"DB_AUTO_MIGRATE" default:"true"`
}

// ImportConfig holds CSV import settings shared by the curriculum and
// student importers and the cross-cohort copy.
type ImportConfig struct {
	// MaxFileSize is the largest accepted CSV upload in bytes (default: 5MB).
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"5242880"`

	// MaxConcurrent caps imports running at the same time across all cohorts.
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"3"`

	// MaxWaitTime is how long a new import waits for a free slot.
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"10s"`

	// Timeout bounds a single import run.
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"10m"`

	// ResultTTL is how long a finished job's result stays retrievable.
	ResultTTL time.Duration `env:"IMPORT_RESULT_TTL" default:"5m"`

	// CurriculumPolicy is what the curriculum importer does when a creation
	// call fails: "continue" records it and moves on like the student
	// importer, "abort" stops at the first failure.
	CurriculumPolicy string `env:"IMPORT_CURRICULUM_POLICY" default:"continue"`
}

// RateLimitConfig holds per-IP request limits.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMinute int  `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// ImportLimit applies to import and copy endpoints.
	ImportLimit int `env:"RATE_LIMIT_IMPORT" default:"10"`

	// RedeemLimit applies to login and the public invite registration form.
	RedeemLimit int `env:"RATE_LIMIT_REDEEM" default:"20"`
}

// SecurityConfig holds authentication and header settings.
type SecurityConfig struct {
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
	EnableCSP      bool     `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAuth protects /admin and /api. Disable only for local development.
	RequireAuth bool `env:"REQUIRE_AUTH" default:"true"`

	// APIKeys are accepted in the X-API-Key header by /api routes.
	APIKeys []string `env:"API_KEYS"`

	// AdminUser is the login name for password sign-in.
	AdminUser string `env:"ADMIN_USER" default:"admin"`

	// AdminPasswordHash is a bcrypt hash (see `bootcampctl hash-password`).
	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`

	// SessionSecret signs the admin session cookie. At least 32 bytes.
	SessionSecret string `env:"SESSION_SECRET"`

	// CSRFKey authenticates CSRF tokens on admin forms. Exactly 32 bytes.
	CSRFKey string `env:"CSRF_KEY"`

	// SecureCookies marks cookies Secure; turn on behind TLS.
	SecureCookies bool `env:"SECURE_COOKIES" default:"false"`

	SessionMaxAge time.Duration `env:"SESSION_MAX_AGE" default:"12h"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is text or json.
	Format string `env:"LOG_FORMAT" default:"text"`
}

// AuditConfig holds audit log retention settings.
type AuditConfig struct {
	Enabled       bool          `env:"AUDIT_ENABLED" default:"true"`
	RetentionDays int           `env:"AUDIT_RETENTION_DAYS" default:"365"`
	CheckInterval time.Duration `env:"AUDIT_CHECK_INTERVAL" default:"24h"`
}

// LinksConfig holds values used to build learner-facing links.
type LinksConfig struct {
	// BaseURL prefixes register and join links shown to admins.
	BaseURL string `env:"PUBLIC_BASE_URL" default:"http://localhost:8080"`

	SupportEmail string `env:"SUPPORT_EMAIL" default:"support@example.com"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// SessionAuthEnabled reports whether password login is configured.
func (c *SecurityConfig) SessionAuthEnabled() bool {
	return c.AdminPasswordHash != "" && c.SessionSecret != ""
}
