package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"

	"github.com/cbc-agent/analytics-ingest/config"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database connection pool
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.LogString()))

	return NewDBFromConn(db, logger), nil
}

// NewDBFromConn wraps an already opened pool
func NewDBFromConn(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{
		DB:     db,
		logger: logger,
	}
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

const eventsSchema = `
	-- Privacy-transformed events
	CREATE TABLE IF NOT EXISTS events (
		id UUID PRIMARY KEY,
		event_type VARCHAR(100) NOT NULL,
		ts TIMESTAMPTZ NOT NULL,
		session_id VARCHAR(255) NOT NULL DEFAULT '',
		guest_id VARCHAR(255) NOT NULL DEFAULT '',
		schema_version VARCHAR(20) NOT NULL,
		app_version VARCHAR(50) NOT NULL DEFAULT '',
		device JSONB,
		payload JSONB NOT NULL DEFAULT '{}'::jsonb,
		ip_data JSONB,
		raw_ip VARCHAR(64),
		geo JSONB,
		retention_days INTEGER NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		received_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Guest consent state, keyed by pseudonymous id
	CREATE TABLE IF NOT EXISTS guests (
		pseudonymous_id VARCHAR(255) PRIMARY KEY,
		consent_given BOOLEAN NOT NULL DEFAULT FALSE,
		consent_purposes TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Directly identifying data, only with consent and PII collection enabled
	CREATE TABLE IF NOT EXISTS guest_profiles (
		guest_id VARCHAR(255) PRIMARY KEY,
		name VARCHAR(255),
		email VARCHAR(255),
		phone VARCHAR(50),
		country VARCHAR(100),
		member_id VARCHAR(100),
		preferred_contact_method VARCHAR(20),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_events_event_type ON events(event_type);
	CREATE INDEX IF NOT EXISTS idx_events_guest_id ON events(guest_id);
	CREATE INDEX IF NOT EXISTS idx_events_received_at ON events(received_at);
	CREATE INDEX IF NOT EXISTS idx_events_expires_at ON events(expires_at);
`

const auditSchema = `
	-- Privacy-rights audit trail
	CREATE TABLE IF NOT EXISTS privacy_audit_log (
		id UUID PRIMARY KEY,
		guest_id VARCHAR(255) NOT NULL DEFAULT '',
		action VARCHAR(50) NOT NULL,
		details JSONB,
		request_id VARCHAR(255) NOT NULL DEFAULT '',
		timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_privacy_audit_log_guest_id ON privacy_audit_log(guest_id);
	CREATE INDEX IF NOT EXISTS idx_privacy_audit_log_timestamp ON privacy_audit_log(timestamp);
`

// InitSchema initializes the database schema, including the audit trail
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, eventsSchema+auditSchema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info("database schema initialized successfully")
	return nil
}

// InitAuditSchema initializes only the audit trail. Use for the separate audit
// database when DATABASE_URL_AUDIT is set.
func (db *DB) InitAuditSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, auditSchema); err != nil {
		return fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	db.logger.Info("audit schema initialized successfully")
	return nil
}
