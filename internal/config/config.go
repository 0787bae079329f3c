// Package config provides centralized configuration management for the application.
// Values come from struct-tag defaults, then an optional YAML file named by
// CONFIG_FILE, then environment variables. Everything is validated on startup
// to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Store        StoreConfig        `yaml:"store"`
	Upload       UploadConfig       `yaml:"upload"`
	Distribution DistributionConfig `yaml:"distribution"`
	Normalize    NormalizeConfig    `yaml:"normalize"`
	Persist      PersistConfig      `yaml:"persist"`
	Security     SecurityConfig     `yaml:"security"`
	Rate         RateLimitConfig    `yaml:"rate"`
	Logging      LoggingConfig      `yaml:"logging"`
	Sweep        SweepConfig        `yaml:"sweep"`
	Watch        WatchConfig        `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `yaml:"host" env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `yaml:"port" env:"SERVER_PORT" envAlt:"PORT" default:"8080"`

	ReadTimeout  time.Duration `yaml:"readTimeout" env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `yaml:"writeTimeout" env:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout  time.Duration `yaml:"idleTimeout" env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including the upload drain (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for non-upload requests (default: 60s)
	RequestTimeout time.Duration `yaml:"requestTimeout" env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Driver is postgres, sqlite or memory (default: postgres)
	Driver string `yaml:"driver" env:"STORE_DRIVER" default:"postgres"`

	// URL is the PostgreSQL connection string, required for the postgres driver.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `yaml:"url" env:"DATABASE_URL" envAlt:"DB_URL"`

	// SQLitePath is the database file for the sqlite driver
	SQLitePath string `yaml:"sqlitePath" env:"SQLITE_PATH" default:"data/listingest.db"`

	MaxConns        int           `yaml:"maxConns" env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `yaml:"minConns" env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `yaml:"maxConnLifetime" env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"maxConnIdleTime" env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// UploadConfig holds upload intake settings.
type UploadConfig struct {
	// MaxFileSize is the maximum accepted file size in bytes (default: 5MiB)
	MaxFileSize int64 `yaml:"maxFileSize" env:"UPLOAD_MAX_FILE_SIZE" default:"5242880"`

	// MaxConcurrent is the maximum number of parallel ingestions (default: 5)
	MaxConcurrent int `yaml:"maxConcurrent" env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an ingestion slot (default: 30s)
	MaxWaitTime time.Duration `yaml:"maxWaitTime" env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds one ingestion; older open attempts are swept as abandoned (default: 5m)
	Timeout time.Duration `yaml:"timeout" env:"UPLOAD_TIMEOUT" default:"5m"`
}

// DistributionConfig holds task distribution settings.
type DistributionConfig struct {
	// TargetPoolSize is how many workers share one upload; <= 0 uses all (default: 5)
	TargetPoolSize int `yaml:"targetPoolSize" env:"DISTRIBUTION_TARGET_POOL_SIZE" default:"5"`
}

// NormalizeConfig holds field normalization settings.
type NormalizeConfig struct {
	// CountryCode is prefixed to 10-digit phone numbers (default: 1)
	CountryCode string `yaml:"countryCode" env:"PHONE_COUNTRY_CODE" default:"1"`

	// StrictWidth rejects CSV rows whose width differs from the header (default: true)
	StrictWidth bool `yaml:"strictWidth" env:"CSV_STRICT_WIDTH" default:"true"`

	// Failure policies per record kind and fallible field:
	// drop (skip the row) or reject (fail the file)
	TaskPhonePolicy     string `yaml:"taskPhonePolicy" env:"TASK_PHONE_POLICY" default:"drop"`
	ContactPhonePolicy  string `yaml:"contactPhonePolicy" env:"CONTACT_PHONE_POLICY" default:"drop"`
	ContactEmailPolicy  string `yaml:"contactEmailPolicy" env:"CONTACT_EMAIL_POLICY" default:"drop"`
	ContactStatusPolicy string `yaml:"contactStatusPolicy" env:"CONTACT_STATUS_POLICY" default:"drop"`
}

// PersistConfig holds persistence behaviour.
type PersistConfig struct {
	// Atomic commits each upload in a single transaction (default: false)
	Atomic bool `yaml:"atomic" env:"PERSIST_ATOMIC" default:"false"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// RequireAPIKey enables X-API-Key authentication on /api routes (default: false)
	RequireAPIKey bool `yaml:"requireApiKey" env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of owner:key pairs
	APIKeys []string `yaml:"apiKeys" env:"API_KEYS"`

	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `yaml:"trustedProxies" env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `yaml:"enableCsp" env:"SECURITY_ENABLE_CSP" default:"true"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled" env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `yaml:"requestsPerMinute" env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for upload endpoints (default: 10)
	UploadLimit int `yaml:"uploadLimit" env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `yaml:"level" env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `yaml:"format" env:"LOG_FORMAT" default:"text"`
}

// SweepConfig holds the abandoned-upload sweeper settings.
type SweepConfig struct {
	Enabled  bool          `yaml:"enabled" env:"SWEEP_ENABLED" default:"true"`
	Interval time.Duration `yaml:"interval" env:"SWEEP_INTERVAL" default:"1m"`
}

// WatchConfig holds drop-directory settings for the watcher.
type WatchConfig struct {
	// Dir is the directory to watch; empty disables the watcher in the server
	Dir string `yaml:"dir" env:"WATCH_DIR"`

	// Kind is the record kind ingested from the directory (default: tasks)
	Kind string `yaml:"kind" env:"WATCH_KIND" default:"tasks"`

	// Owner is recorded on attempts created by the watcher (default: watcher)
	Owner string `yaml:"owner" env:"WATCH_OWNER" default:"watcher"`

	// Debounce is how long a file must be quiet before it is ingested (default: 500ms)
	Debounce time.Duration `yaml:"debounce" env:"WATCH_DEBOUNCE" default:"500ms"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
