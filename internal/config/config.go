// Package config provides centralized configuration management for the service.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server      ServerConfig
	CKAN        CKANConfig
	Recombinant RecombinantConfig
	Upload      UploadConfig
	Database    DatabaseConfig
	Archive     ArchiveConfig
	Security    SecurityConfig
	Logging     LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration for writing a response (default: 2m)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 5m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"5m"`
}

// CKANConfig holds the action API connection.
type CKANConfig struct {
	// URL is the portal root, e.g. https://open.canada.ca/data (required)
	URL string `env:"CKAN_URL" required:"true"`

	// APIKey is used when a request carries no token of its own.
	APIKey string `env:"CKAN_API_KEY"`

	// Timeout bounds a single action call (default: 60s)
	Timeout time.Duration `env:"CKAN_TIMEOUT" default:"60s"`
}

// RecombinantConfig holds the table descriptors and portal wording.
type RecombinantConfig struct {
	// Tables lists descriptor files, comma separated (required)
	Tables []string `env:"RECOMBINANT_TABLES" required:"true"`

	// Locales are the offered template languages; the first is the default.
	Locales []string `env:"RECOMBINANT_LOCALES" default:"en,fr"`

	// ContactEmail is named in upload error messages.
	ContactEmail string `env:"RECOMBINANT_CONTACT_EMAIL" default:"open-ouvert@tbs-sct.gc.ca"`

	// Debug returns raw workbook decoding errors to the uploader.
	Debug bool `env:"RECOMBINANT_DEBUG" default:"false"`
}

// UploadConfig holds workbook upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed workbook size in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`
}

// DatabaseConfig holds the upload history database. History is disabled
// when URL is empty.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a history database is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// ArchiveConfig selects where rejected workbooks are kept.
type ArchiveConfig struct {
	// Driver is one of none, fs, s3, memory (default: none)
	Driver string `env:"ARCHIVE_DRIVER" default:"none"`

	// FSRoot is the directory used by the fs driver.
	FSRoot string `env:"ARCHIVE_FS_ROOT"`

	S3Bucket          string `env:"ARCHIVE_S3_BUCKET"`
	S3Region          string `env:"ARCHIVE_S3_REGION" default:"us-east-1"`
	S3Endpoint        string `env:"ARCHIVE_S3_ENDPOINT"`
	S3PathStyle       bool   `env:"ARCHIVE_S3_PATH_STYLE" default:"false"`
	S3AccessKeyID     string `env:"ARCHIVE_S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"ARCHIVE_S3_SECRET_ACCESS_KEY"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
