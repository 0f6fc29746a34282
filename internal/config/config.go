// Package config loads process configuration from the environment.
package config

import "time"

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config is the full configuration of the ledger binaries.
type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Google  GoogleConfig
	Auth    AuthConfig
	Audit   AuditConfig
	Logging LoggingConfig
	Ledger  LedgerConfig
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int           `env:"PORT" envAlt:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// StoreConfig selects where sheets and schemas are kept.
type StoreConfig struct {
	Backend     string `env:"STORE_BACKEND" default:"memory"`
	DatabaseURL string `env:"DATABASE_URL"`
	MaxConns    int32  `env:"DB_MAX_CONNS" default:"10"`
	MinConns    int32  `env:"DB_MIN_CONNS" default:"1"`
	AutoMigrate bool   `env:"DB_AUTO_MIGRATE" default:"false"`
}

// GoogleConfig configures the Sheets client used when a request carries no
// user token.
type GoogleConfig struct {
	CredentialsFile string `env:"GOOGLE_CREDENTIALS_FILE" envAlt:"GOOGLE_APPLICATION_CREDENTIALS"`
	ApplicationName string `env:"GOOGLE_APPLICATION_NAME" default:"sheetledger"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string        `env:"JWT_SECRET"`
	Issuer    string        `env:"JWT_ISSUER" default:"sheetledger"`
	TokenTTL  time.Duration `env:"JWT_TOKEN_TTL" default:"24h"`
	Disabled  bool          `env:"AUTH_DISABLED" default:"false"`
	// LocalOwner owns every request while auth is disabled.
	LocalOwner string `env:"AUTH_LOCAL_OWNER" default:"local"`
}

// AuditConfig configures where write audit entries go. Without a project
// they are only logged.
type AuditConfig struct {
	ProjectID    string        `env:"AUDIT_BQ_PROJECT" envAlt:"GOOGLE_CLOUD_PROJECT"`
	DatasetID    string        `env:"AUDIT_BQ_DATASET" default:"sheetledger"`
	Table        string        `env:"AUDIT_BQ_TABLE" default:"sheet_write_audit"`
	QueueSize    int           `env:"AUDIT_QUEUE_SIZE" default:"100"`
	Workers      int           `env:"AUDIT_WORKERS" default:"2"`
	RetryBackoff time.Duration `env:"AUDIT_RETRY_BACKOFF" default:"1s"`
}

// Enabled reports whether entries are shipped to BigQuery.
func (a AuditConfig) Enabled() bool {
	return a.ProjectID != ""
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL" default:"info"`
	Format string `env:"LOG_FORMAT" default:"console"`
}

// LedgerConfig tunes the ledger service.
type LedgerConfig struct {
	DefaultPerPage    int `env:"LEDGER_DEFAULT_PER_PAGE" default:"50"`
	MaxPerPage        int `env:"LEDGER_MAX_PER_PAGE" default:"500"`
	DetectConcurrency int `env:"LEDGER_DETECT_CONCURRENCY" default:"4"`
}
