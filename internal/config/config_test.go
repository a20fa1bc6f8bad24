package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = strings.Repeat("k", 32)

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("TICKET_SIGNING_KEY", testSecret)
	t.Setenv("PORT", "9000")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_MAX_CONNS", "7")
	t.Setenv("TICKET_MAX_AGE", "72h")
	t.Setenv("REQUEST_TIMEOUT", "2s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("ENABLE_METRICS", "false")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "db", cfg.Database.Host)
	assert.Equal(t, int32(7), cfg.Database.MaxConns)
	assert.Equal(t, 72*time.Hour, cfg.Token.MaxAge)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.EnableMetrics)
	assert.Equal(t, time.Duration(0), cfg.AuthzCacheTTL)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
port: "7070"
environment: production
authz_cache_ttl: 2s
redis:
  url: redis://cache:6379/0
token:
  signing_key: ` + testSecret + `
  signing_key_id: 4
database:
  name: checkin
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 2*time.Second, cfg.AuthzCacheTTL)
	assert.Equal(t, uint8(4), cfg.Token.SigningKeyID)
	assert.Equal(t, "checkin", cfg.Database.Name)
	// Unset keys keep their defaults.
	assert.Equal(t, "localhost", cfg.Database.Host)
}

func TestLoad_RequiresSigningKey(t *testing.T) {
	t.Setenv("TICKET_SIGNING_KEY", "too-short")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate_CacheNeedsRedis(t *testing.T) {
	cfg := Default()
	cfg.Token.SigningKey = testSecret
	cfg.AuthzCacheTTL = time.Second
	assert.Error(t, cfg.Validate())

	cfg.Redis.URL = "localhost:6379"
	assert.NoError(t, cfg.Validate())
}

func TestDatabase_DSN(t *testing.T) {
	d := Default().Database
	assert.Equal(t, "host=localhost port=5432 user=postgres password=postgres dbname=ticketcheckin sslmode=disable", d.DSN())
}
