package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, 24*time.Hour, cfg.OrphanMaxAge)
	assert.Equal(t, "@every 12h", cfg.OrphanCleanupSchedule)
	assert.Equal(t, "dev-secret", cfg.JWTSecret)
	assert.True(t, cfg.IsDevelopment())
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("ALLOWED_ORIGINS", "https://a.test, https://b.test")
	t.Setenv("RATE_LIMIT_JOIN", "10s")
	t.Setenv("EVENT_BUFFER_SIZE", "64")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, 10*time.Second, cfg.RateLimitJoin)
	assert.Equal(t, 64, cfg.EventBufferSize)
	assert.False(t, cfg.IsDevelopment())
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"APP_ENV": "development", "DB_DRIVER": "mysql"}},
		{"missing secret in production", map[string]string{"APP_ENV": "production", "JWT_SECRET": ""}},
		{"bad duration", map[string]string{"APP_ENV": "development", "JWT_TTL": "soon"}},
		{"zero buffer", map[string]string{"APP_ENV": "development", "EVENT_BUFFER_SIZE": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}
