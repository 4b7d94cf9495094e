package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"CONFIG_FILE", "ENVIRONMENT", "STORAGE_BACKEND", "SQLITE_PATH", "TABLE_NAME",
		"DYNAMODB_TABLE", "EVENT_BUS_NAME", "JWT_SECRET", "RESERVATION_TTL", "DRAFT_TTL",
		"MAX_MEMOS_PER_POINT", "ALLOWED_ORIGINS", "AWS_LAMBDA_FUNCTION_NAME", "IS_LAMBDA",
		"SEED_POINTS", "IP_RATE_LIMIT", "USER_RATE_LIMIT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, BackendDynamoDB, cfg.StorageBackend)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsLambda)
	assert.Equal(t, 5*time.Minute, cfg.MemoPolicy().ReservationTTL)
}

func TestLoadConfig_FileThenEnvironment(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: staging
storage_backend: sqlite
sqlite_path: /tmp/memo.db
reservation_ttl: 20m
max_memos_per_point: 30
allowed_origins: ["https://app.example.com"]
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("MAX_MEMOS_PER_POINT", "40")
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "memo-api")
	t.Setenv("SEED_POINTS", "point-1,point-2")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.StorageBackend)
	assert.Equal(t, "/tmp/memo.db", cfg.SQLitePath)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.AllowedOrigins)
	assert.True(t, cfg.IsLambda)
	assert.Equal(t, []string{"point-1", "point-2"}, cfg.SeedPoints)
	assert.Equal(t, 100, cfg.IPRateLimit)

	policy := cfg.MemoPolicy()
	assert.Equal(t, 20*time.Minute, policy.ReservationTTL)
	assert.Equal(t, 40, policy.MaxMemosPerPoint)
	assert.Equal(t, 72*time.Hour, policy.DraftTTL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "unknown backend", mutate: func(c *Config) { c.StorageBackend = "postgres" }, wantErr: true},
		{name: "memory in production", mutate: func(c *Config) {
			c.Environment = "production"
			c.StorageBackend = BackendMemory
			c.JWTSecret = "secret"
			c.EventBusName = "bus"
		}, wantErr: true},
		{name: "production without secret", mutate: func(c *Config) {
			c.Environment = "production"
			c.EventBusName = "bus"
		}, wantErr: true},
		{name: "production", mutate: func(c *Config) {
			c.Environment = "production"
			c.JWTSecret = "secret"
			c.EventBusName = "bus"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_BadFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := LoadConfig()
	assert.Error(t, err)
}
