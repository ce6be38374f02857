package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setMinimalEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("AUTH_PROVIDER", "local")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE_PROVIDER", "gcs")
	t.Setenv("GCS_BUCKET", "bucket")
	t.Setenv("EMAIL_PROVIDER", "disabled")
}

func TestFromEnvDefaults(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Server.MaxUploads)
	assert.Equal(t, int64(5<<20), cfg.Server.MaxUploadSize)
	assert.Equal(t, 100, cfg.RateLimit.Requests)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Contains(t, cfg.Server.CORSOrigins, "http://localhost:5173")
	assert.True(t, cfg.Storage.GCSPublicRead)
}

func TestFromEnvOverrides(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("APP_ENV", "Production")
	t.Setenv("PUBLIC_BASE_URL", "https://events.example.com/")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("TASK_WORKERS", "not-a-number")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "https://events.example.com", cfg.Server.PublicBaseURL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 4, cfg.Tasks.Workers)
}

func TestFromEnvRejectsIncompleteProviders(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"local auth without secret", "JWT_SECRET", ""},
		{"unknown store", "STORE_DRIVER", "postgres"},
		{"unknown auth", "AUTH_PROVIDER", "ldap"},
		{"firebase without project", "AUTH_PROVIDER", "firebase"},
		{"cloudinary without credentials", "STORAGE_PROVIDER", "cloudinary"},
		{"smtp without credentials", "EMAIL_PROVIDER", "smtp"},
		{"resend without key", "EMAIL_PROVIDER", "resend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setMinimalEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestSMTPSenderDefaultsToUsername(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("EMAIL_PROVIDER", "smtp")
	t.Setenv("SMTP_USERNAME", "mailer@example.com")
	t.Setenv("SMTP_PASSWORD", "app-password")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "mailer@example.com", cfg.Email.From)
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
}

func TestNewLoggerFallsBackToInfo(t *testing.T) {
	logger := newLogger(LoggingConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
}
