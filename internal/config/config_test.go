package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("UPLOAD_ACCESS_FILE", "")
	t.Setenv("APP_ENV", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, defaultHTTPAddr, cfg.HTTPAddr)
	assert.Equal(t, defaultDatabaseURL, cfg.DatabaseURL)
	assert.Equal(t, 360*time.Second, cfg.PutTimeout)
	assert.Equal(t, 30*24*time.Hour, cfg.ShareTimeout)
	assert.Equal(t, "@every 10m", cfg.CleanupSchedule)
	assert.False(t, cfg.WebserverDownload)
	assert.False(t, cfg.IsProduction())

	// Without an access file every identity is denied.
	require.Len(t, cfg.Rules, 1)
	assert.Nil(t, cfg.Rules[0].Limits)
}

func TestFromEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	access := filepath.Join(dir, "access.yaml")
	require.NoError(t, os.WriteFile(access, []byte(`
rules:
  - match: "@example\\.com$"
    limits:
      max_file_size: 10MiB
`), 0o600))

	t.Setenv("UPLOAD_ACCESS_FILE", access)
	t.Setenv("UPLOAD_PUT_TIMEOUT", "120")
	t.Setenv("UPLOAD_SHARE_TIMEOUT", "48h")
	t.Setenv("UPLOAD_FORCE_HTTPS", "yes")
	t.Setenv("UPLOAD_URL_BASE", "https://files.example.com")
	t.Setenv("CLEANUP_SCHEDULE", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, 120*time.Second, cfg.PutTimeout)
	assert.Equal(t, 48*time.Hour, cfg.ShareTimeout)
	assert.True(t, cfg.ForceHTTPS)
	assert.Empty(t, cfg.CleanupSchedule)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
	require.Len(t, cfg.Rules, 1)
	require.NotNil(t, cfg.Rules[0].Limits)
	assert.Equal(t, int64(10<<20), *cfg.Rules[0].Limits.MaxFileSize)

	settings := cfg.SlotSettings()
	assert.Equal(t, "https://files.example.com", settings.URLBase)
	assert.Equal(t, 120*time.Second, settings.PutTimeout)
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"bad duration":          {"UPLOAD_PUT_TIMEOUT": "soon"},
		"share not after put":   {"UPLOAD_PUT_TIMEOUT": "1h", "UPLOAD_SHARE_TIMEOUT": "30m"},
		"bad log level":         {"LOG_LEVEL": "loud"},
		"bad path length":       {"UPLOAD_MAX_PATH_LENGTH": "0"},
		"prod without acl file": {"APP_ENV": "prod"},
		"missing access file":   {"UPLOAD_ACCESS_FILE": "/nonexistent/access.yaml"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("UPLOAD_ACCESS_FILE", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}
