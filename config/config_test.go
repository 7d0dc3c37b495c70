package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/tournaments?sslmode=disable")
	t.Setenv("JWT_SECRET_KEY", "secret")
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		setRequired(t)
		t.Setenv("SERVER_PORT", "")
		t.Setenv("LOG_LEVEL", "")
		t.Setenv("CORS_ALLOWED_ORIGINS", "")
		t.Setenv("STATUS_SCHEDULE", "")
		t.Setenv("RESULTS_CACHE_TTL", "")
		t.Setenv("RATE_LIMIT_RPS", "")
		t.Setenv("RATE_LIMIT_BURST", "")
		t.Setenv("R2_ACCOUNT_ID", "")
		t.Setenv("DB_MAX_OPEN_CONNS", "")
		t.Setenv("DB_MAX_IDLE_CONNS", "")
		t.Setenv("DB_CONN_MAX_LIFETIME", "")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.ServerPort)
		assert.Equal(t, 25, cfg.DBMaxOpenConns)
		assert.Equal(t, 25, cfg.DBMaxIdleConns)
		assert.Equal(t, 5*time.Minute, cfg.DBConnMaxLifetime)
		assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
		assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
		assert.Equal(t, "@every 30s", cfg.StatusSchedule)
		assert.Equal(t, 5*time.Minute, cfg.ResultsCacheTTL)
		assert.Equal(t, 10, cfg.RateLimitRPS)
		assert.Equal(t, 20, cfg.RateLimitBurst)
		assert.False(t, cfg.PublishingEnabled())
	})

	t.Run("explicit values", func(t *testing.T) {
		setRequired(t)
		t.Setenv("SERVER_PORT", "9090")
		t.Setenv("LOG_LEVEL", "debug")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
		t.Setenv("RESULTS_CACHE_TTL", "90s")
		t.Setenv("DB_MAX_OPEN_CONNS", "10")
		t.Setenv("DB_MAX_IDLE_CONNS", "")
		t.Setenv("DB_CONN_MAX_LIFETIME", "1h")
		t.Setenv("R2_ACCOUNT_ID", "acc")
		t.Setenv("R2_ACCESS_KEY_ID", "key")
		t.Setenv("R2_SECRET_ACCESS_KEY", "secret")
		t.Setenv("R2_BUCKET_NAME", "results")
		t.Setenv("R2_PUBLIC_BASE_URL", "https://cdn.example")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 9090, cfg.ServerPort)
		assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
		assert.Equal(t, 90*time.Second, cfg.ResultsCacheTTL)
		assert.Equal(t, 10, cfg.DBMaxOpenConns)
		assert.Equal(t, 10, cfg.DBMaxIdleConns)
		assert.Equal(t, time.Hour, cfg.DBConnMaxLifetime)
		assert.True(t, cfg.PublishingEnabled())
	})

	t.Run("missing database url", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		t.Setenv("JWT_SECRET_KEY", "secret")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_URL")
	})

	t.Run("missing jwt key", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://x")
		t.Setenv("JWT_SECRET_KEY", "")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT_SECRET_KEY")
	})

	invalid := []struct {
		name, key, value string
	}{
		{"port not a number", "SERVER_PORT", "abc"},
		{"port out of range", "SERVER_PORT", "70000"},
		{"unknown log level", "LOG_LEVEL", "loud"},
		{"bad ttl", "RESULTS_CACHE_TTL", "soon"},
		{"negative ttl", "RESULTS_CACHE_TTL", "-1m"},
		{"zero rps", "RATE_LIMIT_RPS", "0"},
		{"zero pool", "DB_MAX_OPEN_CONNS", "0"},
		{"bad lifetime", "DB_CONN_MAX_LIFETIME", "forever"},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
