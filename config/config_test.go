package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default configuration",
			envVars: map[string]string{
				"ENVIRONMENT": "development",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "development", cfg.Environment)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8001, cfg.Server.Port)
				assert.False(t, cfg.Server.TLS.Enabled)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Nil(t, cfg.AuditDatabase)

				assert.Equal(t, "CBC-Agent", cfg.Ingest.SourceApp)
				assert.Equal(t, []string{"localhost", "127.0.0.1"}, cfg.Ingest.AllowedHosts)
				assert.Equal(t, []string{"http://localhost:3000"}, cfg.Ingest.CORSOrigins)
				assert.False(t, cfg.Ingest.CollectPII)
				assert.False(t, cfg.Ingest.StoreRawIP)

				assert.Equal(t, "change-me-in-production", cfg.Privacy.HMACSecret)
				assert.Equal(t, "rotate-quarterly", cfg.Privacy.IPSalt)
				assert.Equal(t, cfg.Privacy.HMACSecret, cfg.Privacy.TokenSecret)
				assert.Equal(t, 15*time.Minute, cfg.Privacy.TokenTTL)
				assert.Equal(t, 365, cfg.Privacy.DefaultRetentionDays)
				assert.Contains(t, cfg.Privacy.SensitiveKeys, "government_id")
				assert.Equal(t, 5*time.Second, cfg.Privacy.PersistTimeout)
				assert.Zero(t, cfg.Privacy.WebhookMaxSkew)
				assert.Equal(t, 24*time.Hour, cfg.Privacy.RetentionPurgeInterval)

				assert.False(t, cfg.Geo.Enabled)
				assert.Equal(t, 500*time.Millisecond, cfg.Geo.Timeout)

				assert.Equal(t, "info", cfg.Observability.LogLevel)
				assert.True(t, cfg.Observability.MetricsEnabled)
			},
		},
		{
			name: "privacy overrides",
			envVars: map[string]string{
				"COLLECT_PII":            "true",
				"STORE_RAW_IP":           "true",
				"HMAC_SECRET":            "webhook-secret",
				"PRIVACY_TOKEN_SECRET":   "token-secret",
				"IP_SALT":                "salt-q4",
				"SENSITIVE_KEYS":         "name, loyalty_id ,,",
				"DEFAULT_RETENTION_DAYS": "90",
				"WEBHOOK_MAX_SKEW":       "5m",
				"PERSIST_TIMEOUT":        "2s",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Ingest.CollectPII)
				assert.True(t, cfg.Ingest.StoreRawIP)
				assert.Equal(t, "webhook-secret", cfg.Privacy.HMACSecret)
				assert.Equal(t, "token-secret", cfg.Privacy.TokenSecret)
				assert.Equal(t, "salt-q4", cfg.Privacy.IPSalt)
				assert.Equal(t, []string{"name", "loyalty_id"}, cfg.Privacy.SensitiveKeys)
				assert.Equal(t, 90, cfg.Privacy.DefaultRetentionDays)
				assert.Equal(t, 5*time.Minute, cfg.Privacy.WebhookMaxSkew)
				assert.Equal(t, 2*time.Second, cfg.Privacy.PersistTimeout)
			},
		},
		{
			name: "custom timeouts and pool settings",
			envVars: map[string]string{
				"SERVER_READ_TIMEOUT":  "60s",
				"SERVER_WRITE_TIMEOUT": "90s",
				"DB_MAX_OPEN_CONNS":    "50",
				"DB_MAX_IDLE_CONNS":    "10",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
				assert.Equal(t, 50, cfg.Database.MaxOpenConns)
				assert.Equal(t, 10, cfg.Database.MaxIdleConns)
			},
		},
		{
			name: "DATABASE_URL takes precedence",
			envVars: map[string]string{
				"DATABASE_URL":       "postgres://u:p@db.internal:5433/analytics?sslmode=require",
				"DATABASE_URL_AUDIT": "postgres://u:p@audit.internal/audit",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "postgres://u:p@db.internal:5433/analytics?sslmode=require", cfg.Database.DSN())
				assert.Equal(t, "host=db.internal port=5433 database=analytics", cfg.Database.LogString())
				require.NotNil(t, cfg.AuditDatabase)
				assert.Equal(t, "host=audit.internal port=5432 database=audit", cfg.AuditDatabase.LogString())
			},
		},
		{
			name: "geo configuration",
			envVars: map[string]string{
				"GEO_ENABLED":  "true",
				"GEO_BASE_URL": "http://geo.internal",
				"GEO_TIMEOUT":  "250ms",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Geo.Enabled)
				assert.Equal(t, "http://geo.internal", cfg.Geo.BaseURL)
				assert.Equal(t, 250*time.Millisecond, cfg.Geo.Timeout)
			},
		},
		{
			name: "PORT env var takes precedence over SERVER_PORT",
			envVars: map[string]string{
				"PORT":        "9443",
				"SERVER_PORT": "9000",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9443, cfg.Server.Port)
			},
		},
		{
			name: "SERVER_PORT env var when PORT not set",
			envVars: map[string]string{
				"SERVER_PORT": "9000",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9000, cfg.Server.Port)
			},
		},
		{
			name: "production with rotated secrets",
			envVars: map[string]string{
				"ENVIRONMENT": "production",
				"HMAC_SECRET": "prod-secret",
				"IP_SALT":     "prod-salt",
			},
			wantErr: false,
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsProduction())
				assert.False(t, cfg.IsDevelopment())
			},
		},
		{
			name: "production with default HMAC secret",
			envVars: map[string]string{
				"ENVIRONMENT": "production",
				"IP_SALT":     "prod-salt",
			},
			wantErr: true,
		},
		{
			name: "production with default IP salt",
			envVars: map[string]string{
				"ENVIRONMENT": "production",
				"HMAC_SECRET": "prod-secret",
			},
			wantErr: true,
		},
		{
			name: "geo enabled without base URL",
			envVars: map[string]string{
				"GEO_ENABLED": "true",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for k, v := range tt.envVars {
				os.Setenv(k, v)
			}

			cfg, err := New(context.Background())

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Environment: "development",
		Database: DatabaseConfig{
			Host:     "localhost",
			User:     "user",
			Database: "db",
		},
		Ingest: IngestConfig{SourceApp: "CBC-Agent"},
		Privacy: PrivacyConfig{
			HMACSecret:           "secret",
			IPSalt:               "salt",
			PersistTimeout:       time.Second,
			DefaultRetentionDays: 365,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid development config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "missing database host",
			mutate:  func(c *Config) { c.Database.Host = "" },
			wantErr: true,
			errMsg:  "database configuration required",
		},
		{
			name:    "missing database user",
			mutate:  func(c *Config) { c.Database.User = "" },
			wantErr: true,
			errMsg:  "database user is required",
		},
		{
			name:    "missing source app",
			mutate:  func(c *Config) { c.Ingest.SourceApp = "" },
			wantErr: true,
			errMsg:  "source app is required",
		},
		{
			name:    "missing salt",
			mutate:  func(c *Config) { c.Privacy.IPSalt = "" },
			wantErr: true,
			errMsg:  "IP salt is required",
		},
		{
			name:    "non-positive persist timeout",
			mutate:  func(c *Config) { c.Privacy.PersistTimeout = 0 },
			wantErr: true,
			errMsg:  "persist timeout",
		},
		{
			name:    "missing log level",
			mutate:  func(c *Config) { c.Observability.LogLevel = "" },
			wantErr: true,
			errMsg:  "log level is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errMsg != "" {
					assert.Contains(t, err.Error(), tt.errMsg)
				}
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_IsProduction(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		want        bool
	}{
		{"production", "production", true},
		{"prod", "prod", true},
		{"development", "development", false},
		{"staging", "staging", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Environment: tt.environment}
			assert.Equal(t, tt.want, cfg.IsProduction())
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		Database: "testdb",
		SSLMode:  "disable",
	}

	expected := "host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=disable"
	assert.Equal(t, expected, cfg.DSN())
	assert.NotContains(t, cfg.LogString(), "testpass")
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{
		Host: "0.0.0.0",
		Port: 8001,
	}

	assert.Equal(t, "0.0.0.0:8001", cfg.Address())
}

func TestGetEnvAsList(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{"single", "a", []string{"a"}},
		{"trimmed", " a , b ", []string{"a", "b"}},
		{"blank items dropped", "a,,b,", []string{"a", "b"}},
		{"only separators", ",,", []string{"default"}},
		{"empty value", "", []string{"default"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv("TEST_LIST", tt.value)
			}
			assert.Equal(t, tt.want, getEnvAsList("TEST_LIST", []string{"default"}))
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue int
		want         int
	}{
		{"valid int", "42", 10, 42},
		{"empty value", "", 10, 10},
		{"invalid int", "not-a-number", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv("TEST_INT", tt.value)
			}
			assert.Equal(t, tt.want, getEnvAsInt("TEST_INT", tt.defaultValue))
		})
	}
}

func TestGetEnvAsBool(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		want         bool
	}{
		{"true", "true", false, true},
		{"false", "false", true, false},
		{"empty value", "", true, true},
		{"invalid bool", "not-a-bool", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()
			if tt.value != "" {
				os.Setenv("TEST_BOOL", tt.value)
			}
			assert.Equal(t, tt.want, getEnvAsBool("TEST_BOOL", tt.defaultValue))
		})
	}
}
