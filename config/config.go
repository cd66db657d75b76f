package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Development defaults; Validate rejects them in production.
	defaultHMACSecret = "change-me-in-production"
	defaultIPSalt     = "rotate-quarterly"
)

// Config represents the complete application configuration. It is built once at
// startup and never mutated afterwards.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	AuditDatabase *DatabaseConfig // Optional: separate DB for the privacy audit trail. When nil, audit uses main DB.
	Ingest        IngestConfig
	Privacy       PrivacyConfig
	Geo           GeoConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// IngestConfig holds the HTTP boundary settings of the ingest API
type IngestConfig struct {
	SourceApp    string   // app_id every event must carry
	AllowedHosts []string // trusted Host header values, "*" allows any
	CORSOrigins  []string
	CollectPII   bool // enables guest profile storage
	StoreRawIP   bool // raw-IP mode: store the address instead of prefix + hash
}

// PrivacyConfig holds secrets and policies of the privacy pipeline
type PrivacyConfig struct {
	HMACSecret             string
	IPSalt                 string
	TokenSecret            string
	TokenTTL               time.Duration
	DefaultRetentionDays   int
	SensitiveKeys          []string
	PersistTimeout         time.Duration
	WebhookMaxSkew         time.Duration // 0 disables timestamp checks
	RetentionPurgeInterval time.Duration // 0 disables the purge job
}

// GeoConfig holds the coarse geolocation lookup settings
type GeoConfig struct {
	Enabled bool
	BaseURL string
	Timeout time.Duration
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or text
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	hmacSecret := getEnv("HMAC_SECRET", defaultHMACSecret)

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Database:      loadDatabaseConfig(),
		AuditDatabase: loadAuditDatabaseConfig(),
		Ingest: IngestConfig{
			SourceApp:    getEnv("SOURCE_APP", "CBC-Agent"),
			AllowedHosts: getEnvAsList("ALLOWED_HOSTS", []string{"localhost", "127.0.0.1"}),
			CORSOrigins:  getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000"}),
			CollectPII:   getEnvAsBool("COLLECT_PII", false),
			StoreRawIP:   getEnvAsBool("STORE_RAW_IP", false),
		},
		Privacy: PrivacyConfig{
			HMACSecret:             hmacSecret,
			IPSalt:                 getEnv("IP_SALT", defaultIPSalt),
			TokenSecret:            getEnv("PRIVACY_TOKEN_SECRET", hmacSecret),
			TokenTTL:               getEnvAsDuration("PRIVACY_TOKEN_TTL", 15*time.Minute),
			DefaultRetentionDays:   getEnvAsInt("DEFAULT_RETENTION_DAYS", 365),
			SensitiveKeys:          getEnvAsList("SENSITIVE_KEYS", []string{"name", "email", "phone", "address", "ssn", "government_id", "credit_card"}),
			PersistTimeout:         getEnvAsDuration("PERSIST_TIMEOUT", 5*time.Second),
			WebhookMaxSkew:         getEnvAsDuration("WEBHOOK_MAX_SKEW", 0),
			RetentionPurgeInterval: getEnvAsDuration("RETENTION_PURGE_INTERVAL", 24*time.Hour),
		},
		Geo: GeoConfig{
			Enabled: getEnvAsBool("GEO_ENABLED", false),
			BaseURL: getEnv("GEO_BASE_URL", ""),
			Timeout: getEnvAsDuration("GEO_TIMEOUT", 500*time.Millisecond),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	// Database validation (DATABASE_URL or DB_* vars)
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.Ingest.SourceApp == "" {
		return fmt.Errorf("source app is required")
	}
	if c.Privacy.HMACSecret == "" {
		return fmt.Errorf("HMAC secret is required")
	}
	if c.Privacy.IPSalt == "" {
		return fmt.Errorf("IP salt is required")
	}
	if c.Privacy.PersistTimeout <= 0 {
		return fmt.Errorf("persist timeout must be positive")
	}
	if c.Privacy.DefaultRetentionDays <= 0 {
		return fmt.Errorf("default retention days must be positive")
	}

	// Shipped secrets must be replaced in production
	if c.IsProduction() {
		if c.Privacy.HMACSecret == defaultHMACSecret {
			return fmt.Errorf("HMAC_SECRET must be changed in production")
		}
		if c.Privacy.IPSalt == defaultIPSalt {
			return fmt.Errorf("IP_SALT must be changed in production")
		}
	}

	if c.Geo.Enabled && c.Geo.BaseURL == "" {
		return fmt.Errorf("geo base URL is required when geo lookups are enabled")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "analytics"),
		Password:        getEnv("DB_PASSWORD", "analytics"),
		Database:        getEnv("DB_NAME", "guest_analytics"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// loadAuditDatabaseConfig loads audit DB config from DATABASE_URL_AUDIT.
// Returns nil when not set (audit uses main DB).
func loadAuditDatabaseConfig() *DatabaseConfig {
	dbURL := getEnv("DATABASE_URL_AUDIT", "")
	if dbURL == "" {
		return nil
	}
	return &DatabaseConfig{
		ConnectionString: dbURL,
		MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8001)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8001
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated value, dropping blank items
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
